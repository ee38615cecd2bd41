// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/johncarey70/seymour/pkg/seymour"
)

var linkTestCmd = &cobra.Command{
	Use:     "link_test",
	Aliases: []string{"ws_test"},
	Short:   "Test raw link stability",
	Long: `Hold the link open without sending anything, logging any data received
or errors encountered. Useful for debugging connection stability issues on
the serial line or the WebSocket bridge.

Bytes are still fed through the frame decoder so stray controller traffic
shows up as frames.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runLinkTest,
}

var linkTestDuration int

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	if linkTestDuration <= 0 {
		return fmt.Errorf("%w: --duration must be positive", seymour.ErrValidation)
	}

	conn, info, err := OpenConnection(cmd.Context())
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	defer conn.Close()

	fmt.Printf("Link Stability Test\n")
	fmt.Printf("Connection: %s\n", info)
	fmt.Printf("Duration: %d seconds\n\n", linkTestDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	decoder := seymour.NewDecoder()
	start := time.Now()
	endTime := start.Add(time.Duration(linkTestDuration) * time.Second)
	bytesReceived := 0
	framesReceived := 0

	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	results := func(result string) {
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("Frames received: %d\n", framesReceived)
		fmt.Printf("Bytes received: %d\n", bytesReceived)
		fmt.Printf("Bytes discarded: %d\n", decoder.Discarded())
		fmt.Printf("Result: %s\n", result)
	}

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			fmt.Printf("[%s] Received %d bytes: %q\n",
				time.Now().Format("15:04:05.000"), len(data), data)
			for _, b := range data {
				if f, _ := decoder.DecodeByte(b); f != nil {
					framesReceived++
					fmt.Printf("    %s\n", seymour.FormatFrame(f))
				}
			}

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			results("FAILED (connection error)")
			return &exitError{code: 1, err: err}

		case <-heartbeat.C:
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	results("PASSED (connection stable)")
	return nil
}
