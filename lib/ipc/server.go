// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
)

// Handler processes one request. Implementations must be safe for
// concurrent calls; each client connection is served on its own
// goroutine.
type Handler func(Request) Response

// Server accepts client connections on a Unix socket and dispatches
// requests to a Handler. Connections are persistent: a client may
// send any number of requests and receives responses in order.
type Server struct {
	handler  Handler
	logger   *slog.Logger
	listener net.Listener

	mu     sync.Mutex
	closed bool
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// Serve listens on the Unix socket at path. A stale socket file from
// a previous run is removed first. The socket is owner-only: the
// admin surface must not be reachable by other local users.
func Serve(path string, handler Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restricting socket permissions: %w", err)
	}

	server := &Server{
		handler:  handler,
		logger:   logger,
		listener: listener,
		conns:    make(map[net.Conn]struct{}),
	}
	server.wg.Add(1)
	go server.acceptLoop()

	logger.Info("admin socket listening", "path", path)
	return server, nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.isClosed() {
				s.logger.Error("accepting connection", "error", err)
			}
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	decoder := decMode.NewDecoder(conn)
	encoder := encMode.NewEncoder(conn)
	for {
		var request Request
		if err := decoder.Decode(&request); err != nil {
			if !errors.Is(err, io.EOF) && !s.isClosed() {
				s.logger.Warn("decoding request", "error", err)
			}
			return
		}

		response := s.dispatch(request)
		if err := encoder.Encode(response); err != nil {
			if !s.isClosed() {
				s.logger.Warn("encoding response", "error", err)
			}
			return
		}
	}
}

// dispatch runs the handler with panic isolation: one bad request
// must not take the admin surface down.
func (s *Server) dispatch(request Request) (response Response) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("handler panicked", "op", request.Op, "panic", recovered)
			response = Deny("internal error")
		}
	}()
	return s.handler(request)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting, closes every live connection, and waits for
// the connection goroutines to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	err := s.listener.Close()
	s.wg.Wait()
	return err
}
