// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package controller

import (
	"context"
	"fmt"

	"github.com/johncarey70/seymour/pkg/seymour"
)

// RemoteCommand is one of the named actions a remote control can send.
type RemoteCommand string

// Remote commands
const (
	RemoteClear       RemoteCommand = "clear"
	RemoteHalt        RemoteCommand = "halt"
	RemoteHome        RemoteCommand = "home"
	RemoteDiagnostics RemoteCommand = "diagnostics"
)

// RemoteCommands lists the accepted remote commands.
var RemoteCommands = []RemoteCommand{RemoteClear, RemoteHalt, RemoteHome, RemoteDiagnostics}

// ParseRemoteCommand validates a remote command name.
func ParseRemoteCommand(name string) (RemoteCommand, error) {
	for _, cmd := range RemoteCommands {
		if string(cmd) == name {
			return cmd, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a known command", seymour.ErrValidation, name)
}

// Remote runs a remote command.
//
//   - clear resets the selected motor and movement mode
//   - halt and home act on all motors
//   - diagnostics refreshes identity, settings, status and positions
func (c *Controller) Remote(ctx context.Context, cmd RemoteCommand) error {
	switch cmd {
	case RemoteClear:
		if c.state.ClearSelections() {
			c.notifier.Signal()
		}
		return nil

	case RemoteHalt:
		return c.Halt(ctx, "")

	case RemoteHome:
		return c.Home(ctx, "")

	case RemoteDiagnostics:
		if _, err := c.GetSystemInfo(ctx); err != nil {
			return err
		}
		if _, err := c.GetSettingsInfo(ctx); err != nil {
			return err
		}
		if _, err := c.GetStatus(ctx); err != nil {
			return err
		}
		_, err := c.GetPositions(ctx)
		return err
	}

	return fmt.Errorf("%w: %q is not a known command", seymour.ErrValidation, string(cmd))
}
