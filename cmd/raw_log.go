// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/transport"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display frames as they arrive.

Each frame is shown with timestamp, command name, address and raw text,
followed by the decoded payload. Malformed frames are reported inline.
Nothing is sent to the controller, so this is safe to run next to another
client on a shared WebSocket bridge.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runRawLog,
}

var rawLogHex bool

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print each frame's wire bytes in hex")
}

// formatRawFrame renders one decoded frame, with a hex dump of its wire
// bytes when withHex is set.
func formatRawFrame(frame *seymour.Frame, withHex bool) string {
	out := seymour.FormatFrame(frame)
	if withHex {
		out += fmt.Sprintf("  Bytes: % X\n", frame.Bytes())
	}
	return out
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, info, err := OpenConnection(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Seymour - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := seymour.NewDecoder()
	stats := seymour.NewStatistics()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, transport.ErrWebSocketClosed) || errors.Is(err, io.EOF) {
				logger.Info("connection closed")
				fmt.Print(stats.String())
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				stats.FrameReceived(err)
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				stats.FrameReceived(nil)
				fmt.Print(formatRawFrame(frame, rawLogHex))
			}
		}
	}
}
