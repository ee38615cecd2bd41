// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/controller"
	"github.com/johncarey70/seymour/pkg/seymour/state"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show controller identity (system info)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			info := c.SystemInfo()
			return render(os.Stdout, info, func(w io.Writer) { printSystemInfo(w, info) })
		})
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the aspect ratio table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			settings, err := c.GetSettingsInfo(ctx)
			if err != nil {
				return err
			}
			return render(os.Stdout, settings, func(w io.Writer) { printSettings(w, settings) })
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active ratio and activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			status, err := c.GetStatus(ctx)
			if err != nil {
				return err
			}
			return render(os.Stdout, status, func(w io.Writer) { printStatus(w, status) })
		})
	},
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Show motor positions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			positions, err := c.GetPositions(ctx)
			if err != nil {
				return err
			}
			return render(os.Stdout, positions, func(w io.Writer) { printPositions(w, c.SystemInfo(), positions) })
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{infoCmd, settingsCmd, statusCmd, positionsCmd} {
		addOutputFlag(cmd)
		rootCmd.AddCommand(cmd)
	}
}

func printSystemInfo(w io.Writer, info seymour.SystemInfo) {
	fmt.Fprintf(w, "Serial Number:    %s\n", info.SerialNumber)
	fmt.Fprintf(w, "Screen Model:     %s\n", info.ScreenModel)
	fmt.Fprintf(w, "Protocol Version: %s\n", info.ProtocolVersion)
	fmt.Fprintf(w, "Screen Size:      %g x %g\n", info.Width, info.Height)
	fmt.Fprintf(w, "Motors:\n")
	for _, m := range info.Motors() {
		fmt.Fprintf(w, "  %s\n", seymour.FormatMotor(m))
	}
}

func printSettings(w io.Writer, s state.MaskRatioSettings) {
	fmt.Fprintf(w, "Ratios: %d\n", s.NumRatios)
	for _, id := range s.RatioIDs() {
		r := s.Ratios[id]
		marker := " "
		if id == s.CurrentRatio {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  %-12s %gx%g  diag %g\n",
			marker, seymour.FormatRatioID(id), r.Label, r.Width, r.Height, r.Diagonal)

		motors := make([]int, 0, len(r.Motors))
		for n := range r.Motors {
			motors = append(motors, n)
		}
		sort.Ints(motors)
		for _, n := range motors {
			m := r.Motors[n]
			fmt.Fprintf(w, "      motor %d: position %d, adjustment %+d\n", n, m.Position, m.Adjustment)
		}
	}
}

func printStatus(w io.Writer, s seymour.RatioStatus) {
	fmt.Fprintf(w, "Ratio:  %s\n", seymour.FormatRatioID(s.RatioID))
	fmt.Fprintf(w, "Status: %s (%02d)\n", s.StatusCode, int(s.StatusCode))
}

func printPositions(w io.Writer, info seymour.SystemInfo, p state.MotorPositions) {
	order := info.Motors()
	if len(order) == 0 {
		for k := range p.Motors {
			order = append(order, k)
		}
		sort.Strings(order)
	}
	for _, m := range order {
		if pos, ok := p.Motors[m]; ok {
			fmt.Fprintf(w, "%-12s %d\n", seymour.FormatMotor(m), pos)
		}
	}
}
