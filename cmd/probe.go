// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/controller"
)

var (
	probeTimeout int
	probeCount   int
	probeQuery   string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Measure round trips to the controller",
	Long: `Send queries to the controller and wait for each reply.

Each probe is a full request: the frame is written, the matching reply is
awaited and parsed, and the round trip time is printed. This verifies:
  - The serial port or WebSocket bridge is reachable
  - HTTP Basic authentication works (WebSocket)
  - The controller answers at the configured address
  - Replies parse cleanly

Queries: status (S), positions (P), info (Y), settings (Q).

Exit codes:
  0 - All probes answered
  1 - One or more probes failed or timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 5, "Timeout in seconds for each probe")
	probeCmd.Flags().IntVar(&probeCount, "count", 3, "Number of probes to send")
	probeCmd.Flags().StringVar(&probeQuery, "query", "status", "Query to send (status, positions, info, settings)")
}

func probeFunc(name string) (func(ctx context.Context, c *controller.Controller) (string, error), error) {
	switch strings.ToLower(name) {
	case "status", "s":
		return func(ctx context.Context, c *controller.Controller) (string, error) {
			s, err := c.GetStatus(ctx)
			return fmt.Sprintf("ratio=%s status=%s", seymour.FormatRatioID(s.RatioID), s.StatusCode), err
		}, nil
	case "positions", "p":
		return func(ctx context.Context, c *controller.Controller) (string, error) {
			p, err := c.GetPositions(ctx)
			return fmt.Sprintf("motors=%d", p.NumMotors), err
		}, nil
	case "info", "y":
		return func(ctx context.Context, c *controller.Controller) (string, error) {
			i, err := c.GetSystemInfo(ctx)
			return fmt.Sprintf("serial=%s model=%s", i.SerialNumber, i.ScreenModel), err
		}, nil
	case "settings", "q":
		return func(ctx context.Context, c *controller.Controller) (string, error) {
			s, err := c.GetSettingsInfo(ctx)
			return fmt.Sprintf("ratios=%d", s.NumRatios), err
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown query %q", seymour.ErrValidation, name)
}

func runProbe(cmd *cobra.Command, args []string) error {
	query, err := probeFunc(probeQuery)
	if err != nil {
		return err
	}

	c, err := newController(nil)
	if err != nil {
		return &exitError{code: exitCodeFor(err), err: err}
	}
	defer c.Close()

	ctx := cmd.Context()
	if err := c.Connect(ctx, false); err != nil {
		return &exitError{code: exitCodeFor(err), err: err}
	}

	fmt.Printf("Seymour - Probe\n")
	fmt.Printf("Connection: %s (address %s)\n", connInfo(), c.Address())
	fmt.Printf("Timeout: %d seconds per probe\n", probeTimeout)
	fmt.Printf("Count: %d probes\n\n", probeCount)

	successCount := 0
	failCount := 0

	for i := 1; i <= probeCount; i++ {
		fmt.Printf("Probe %d/%d: ", i, probeCount)

		pctx, cancel := context.WithTimeout(ctx, time.Duration(probeTimeout)*time.Second)
		start := time.Now()
		detail, err := query(pctx, c)
		rtt := time.Since(start)
		cancel()

		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
			if !c.Connected() {
				return &exitError{code: 2, err: err}
			}
		} else {
			fmt.Printf("reply %s, rtt=%v\n", detail, rtt.Round(time.Millisecond))
			successCount++
		}

		if i < probeCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Probe statistics ---\n")
	if probeCount > 0 {
		fmt.Printf("%d probes sent, %d replies received, %.0f%% loss\n",
			probeCount, successCount, float64(failCount)/float64(probeCount)*100)
	}
	fmt.Print(c.Statistics().String())

	if failCount > 0 {
		return &exitError{code: 1, err: fmt.Errorf("%d of %d probes failed", failCount, probeCount)}
	}
	return nil
}
