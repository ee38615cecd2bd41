// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/johncarey70/seymour/pkg/seymour"
)

var (
	packetTestTimeout int
	packetTestQuery   bool
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test the link by waiting for a valid frame",
	Long: `Wait for a valid frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any
complete, well-formed frame. Noise between frames is skipped and counted.
The controller mostly speaks when spoken to, so --query sends a system info
query ([01Y]) first.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	packetTestCmd.Flags().BoolVar(&packetTestQuery, "query", true, "Send a system info query before waiting")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, info, err := OpenConnection(cmd.Context())
	if err != nil {
		return &exitError{code: exitCodeFor(err), err: fmt.Errorf("connection error: %w", err)}
	}
	defer conn.Close()

	fmt.Printf("Seymour - Packet Test\n")
	fmt.Printf("Connection: %s\n", info)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)

	if packetTestQuery {
		query, err := seymour.EncodeFrame(seymour.NewSystemInfoQuery(cfg.Serial.Address))
		if err != nil {
			return err
		}
		if _, err := conn.Write(query); err != nil {
			return &exitError{code: 2, err: fmt.Errorf("send failed: %w", err)}
		}
		fmt.Printf("Sent %s\n", query)
	}
	fmt.Printf("Waiting for a valid frame...\n\n")

	decoder := seymour.NewDecoder()
	frameChan := make(chan *seymour.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil || frame == nil {
					continue
				}
				if skipped := decoder.Discarded(); skipped > 0 {
					fmt.Printf("(skipped %d bytes before sync)\n", skipped)
				}
				frameChan <- frame
				return
			}
		}
	}()

	select {
	case frame := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Command: %s (%c)\n", seymour.FormatCommand(frame.Command()), byte(frame.Command()))
		fmt.Printf("  Address: %s\n", frame.Address())
		fmt.Printf("  Payload: %d bytes\n", len(frame.Payload()))
		fmt.Print(seymour.FormatPayload(frame.Command(), frame.Payload()))
		return nil

	case err := <-errChan:
		return &exitError{code: 2, err: fmt.Errorf("read error: %w", err)}

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		return &exitError{code: 1, err: fmt.Errorf("TIMEOUT: no valid frame received within %d seconds", packetTestTimeout)}
	}
}
