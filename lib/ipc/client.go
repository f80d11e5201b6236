// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"fmt"
	"net"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Client is a connection to the daemon's admin socket. Safe for
// concurrent use; calls are serialized on the single connection.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	encoder *cbor.Encoder
	decoder *cbor.Decoder
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	return &Client{
		conn:    conn,
		encoder: encMode.NewEncoder(conn),
		decoder: decMode.NewDecoder(conn),
	}, nil
}

// Call sends one request and waits for its response. payload may be
// nil for operations without a body.
func (c *Client) Call(op, token string, payload any) (Response, error) {
	request := Request{Op: op, Token: token}
	if payload != nil {
		encoded, err := Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("encoding payload: %w", err)
		}
		request.Payload = encoded
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.encoder.Encode(request); err != nil {
		return Response{}, fmt.Errorf("sending request: %w", err)
	}
	var response Response
	if err := c.decoder.Decode(&response); err != nil {
		return Response{}, fmt.Errorf("reading response: %w", err)
	}
	return response, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
