// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/johncarey70/seymour/pkg/seymour/controller"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling the screen masks",
	Long: `Control a masking controller via an interactive terminal UI.

This command provides a TUI for monitoring and controlling a controller
connected via WebSocket or UART (direct connection).

Features:
  - Aspect ratio list with the active ratio marked
  - Motor positions and activity status
  - Motor and movement mode selection, jog toggle
  - Buttons for calibrate, halt, home, move in/out and refresh
  - Storing the current positions into a ratio or preset
  - Statistics tracking and event logging
  - Automatic reconnection on connection loss

Tab switches between the ratio list, the update field and the buttons.
Arrow keys navigate; Enter selects.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// connectionManager keeps the controller set up and tells the TUI when
// the link drops and comes back.
type connectionManager struct {
	ctrl     *controller.Controller
	connInfo string
	p        *tea.Program

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func runControl(cmd *cobra.Command, args []string) error {
	cm := &connectionManager{
		connInfo:       connInfo(),
		initialBackoff: 1 * time.Second,
		maxBackoff:     30 * time.Second,
	}

	// State changes arrive on the notifier goroutine
	ctrl, err := newController(func() {
		if cm.p != nil {
			cm.p.Send(stateChangedMsg{})
		}
	})
	if err != nil {
		return err
	}
	cm.ctrl = ctrl
	defer ctrl.Close()

	m := initialControlModel(cm)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go cm.run(ctx)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// run sets the controller up, waits for the link to drop, and repeats
// with exponential backoff until ctx ends.
func (cm *connectionManager) run(ctx context.Context) {
	backoff := cm.initialBackoff
	first := true

	for {
		err := cm.ctrl.Setup(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			_ = cm.ctrl.Disconnect()
			cm.p.Send(connectFailedMsg{err: err, retryIn: backoff})
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, cm.maxBackoff)
			continue
		}

		backoff = cm.initialBackoff
		if first {
			cm.p.Send(readyMsg{})
			first = false
		} else {
			cm.p.Send(reconnectedMsg{connInfo: cm.connInfo})
		}

		select {
		case <-ctx.Done():
			return
		case <-cm.ctrl.Done():
		}
		_ = cm.ctrl.Disconnect()
		cm.p.Send(connectionLostMsg{})
	}
}
