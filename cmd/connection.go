// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/controller"
	"github.com/johncarey70/seymour/pkg/seymour/transport"
)

// errNoLink is returned when neither a port nor a URL is configured.
var errNoLink = errors.New("either --port or --url must be specified")

// GetPassword retrieves the WebSocket password from the environment or
// configuration, or prompts for it.
func GetPassword() (string, error) {
	if pw := os.Getenv("SEYMOUR_PASSWORD"); pw != "" {
		return pw, nil
	}
	if cfg != nil && cfg.WebSocket.Password != "" {
		return cfg.WebSocket.Password, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// connInfo describes the configured link for banners.
func connInfo() string {
	if cfg.WebSocket.URL != "" {
		return fmt.Sprintf("WebSocket: %s", cfg.WebSocket.URL)
	}
	return fmt.Sprintf("Serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud)
}

// newDialer returns a dialer for the configured link. The WebSocket
// password is resolved once, up front, so reconnects never prompt.
func newDialer() (controller.Dialer, error) {
	if ws := cfg.WebSocket; ws.URL != "" {
		password := ""
		if ws.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		opts := transport.WebSocketOptions{
			Username:      ws.Username,
			Password:      password,
			SkipSSLVerify: ws.SkipSSLVerify,
		}
		return func(ctx context.Context) (transport.Connection, error) {
			return transport.OpenWebSocket(ctx, ws.URL, opts)
		}, nil
	}

	if port, baud := cfg.Serial.Port, cfg.Serial.Baud; port != "" {
		return func(context.Context) (transport.Connection, error) {
			return transport.OpenSerial(port, baud)
		}, nil
	}

	return nil, errNoLink
}

// OpenConnection opens the raw byte stream for the diagnostic commands.
func OpenConnection(ctx context.Context) (transport.Connection, string, error) {
	dial, err := newDialer()
	if err != nil {
		return nil, "", err
	}
	conn, err := dial(ctx)
	if err != nil {
		return nil, "", err
	}
	return conn, connInfo(), nil
}

// newController builds a controller for the configured link.
func newController(onUpdate controller.UpdateFunc) (*controller.Controller, error) {
	dial, err := newDialer()
	if err != nil {
		return nil, err
	}
	ccfg := cfg.Controller()
	ccfg.Dial = dial
	ccfg.Logger = logrus.NewEntry(logger)
	return controller.NewWithConfig(ccfg, onUpdate), nil
}

// withController connects, reads system info and runs fn.
func withController(ctx context.Context, fn func(ctx context.Context, c *controller.Controller) error) error {
	c, err := newController(nil)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Connect(ctx, true); err != nil {
		return err
	}
	return fn(ctx, c)
}

// exitCodeFor maps link failures to exit code 2 for the probing commands.
func exitCodeFor(err error) int {
	if errors.Is(err, seymour.ErrConnection) || errors.Is(err, errNoLink) {
		return 2
	}
	return 1
}
