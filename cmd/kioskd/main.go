// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Kioskd is the kiosk enforcement daemon. It loads the policy stack,
// grabs the keyboard, starts the process guard, and serves admin
// requests over a unix socket.
//
// On startup:
//  1. Loads configuration (flag, then $KIOSK_CONFIG, then defaults).
//  2. Opens the state database and audit trail.
//  3. Bootstraps the admin credential on first run and prints it once.
//  4. Installs keyboard interception and starts process monitoring.
//  5. Serves the admin socket until SIGINT/SIGTERM or an approved exit.
//
// In production mode any enforcement component that fails to start
// aborts the daemon; in development mode it degrades with a warning.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/MMI122/RestrictedIDE/lib/clock"
	"github.com/MMI122/RestrictedIDE/lib/config"
	"github.com/MMI122/RestrictedIDE/lib/ipc"
	"github.com/MMI122/RestrictedIDE/lib/service"
	"github.com/MMI122/RestrictedIDE/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		environment string
		logLevel    string
		logFormat   string
		showVersion bool
	)

	pflag.StringVar(&configPath, "config", "", "path to the YAML configuration file (default: $KIOSK_CONFIG, then built-in defaults)")
	pflag.StringVar(&environment, "environment", "", "override the configured environment (development or production)")
	pflag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pflag.StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("kioskd %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfiguration(configPath)
	if err != nil {
		return err
	}
	if environment != "" {
		cfg.Environment = config.Environment(environment)
	}

	logger, err := buildLogger(logLevel, logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	manager, err := service.New(cfg, clock.System(), logger)
	if err != nil {
		return fmt.Errorf("building service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Initialize(ctx); err != nil {
		manager.Shutdown(true)
		return fmt.Errorf("initializing enforcement: %w", err)
	}
	defer manager.Shutdown(manager.ExitApproved())

	if manager.BootstrapCredential != "" {
		// Printed exactly once, never logged or stored in plaintext.
		fmt.Fprintf(os.Stderr, "First run: admin credential is %q — record it now, it will not be shown again.\n",
			manager.BootstrapCredential)
	}

	server, err := ipc.Serve(cfg.Paths.Socket, manager.Handler(), logger)
	if err != nil {
		return fmt.Errorf("serving admin socket: %w", err)
	}
	defer server.Close()

	logger.Info("kioskd running",
		"environment", cfg.Environment, "socket", cfg.Paths.Socket)

	<-ctx.Done()
	if !manager.ExitApproved() {
		logger.Warn("terminating on signal without admin exit approval")
	}
	return nil
}

func loadConfiguration(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

func buildLogger(level, format string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	options := &slog.HandlerOptions{Level: slogLevel}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, options)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, options)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}
