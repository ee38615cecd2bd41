// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/controller"
)

var (
	motorFlag string
	modeFlag  string
)

var selectCmd = &cobra.Command{
	Use:   "select <ratio>",
	Short: "Move the masks to an aspect ratio",
	Long: `Select an aspect ratio by id (1..number of ratios, or preset 990..999).

The ratio table is read first so the id can be checked before anything is
sent to the controller.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRatioArg(args[0])
		if err != nil {
			return err
		}
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			if _, err := c.GetSettingsInfo(ctx); err != nil {
				return err
			}
			if err := c.SelectRatio(ctx, id); err != nil {
				return err
			}
			status := c.Status()
			fmt.Printf("Selected ratio %s (%s)\n", seymour.FormatRatioID(status.RatioID), status.StatusCode)
			return nil
		})
	},
}

var moveCmd = &cobra.Command{
	Use:       "move <in|out>",
	Short:     "Move one motor or all motors in or out",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(seymour.DirectionIn), string(seymour.DirectionOut)},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := seymour.Direction(strings.ToLower(args[0]))
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			if err := applyMode(c); err != nil {
				return err
			}
			return c.MoveMotors(ctx, direction, motorFlag)
		})
	},
}

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Drive one motor or all motors to the home stop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			return c.Home(ctx, motorFlag)
		})
	},
}

var haltCmd = &cobra.Command{
	Use:   "halt",
	Short: "Stop one motor or all motors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			return c.Halt(ctx, motorFlag)
		})
	},
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Run travel calibration for one motor or all motors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			return c.Calibrate(ctx, motorFlag)
		})
	},
}

var jogCmd = &cobra.Command{
	Use:   "jog",
	Short: "Toggle jog mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			code, err := c.ToggleJog(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Movement mode: %s\n", seymour.MovementCodes[code])
			return nil
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [ratio]",
	Short: "Store the current mask positions into a ratio",
	Long: `Store the current mask positions into a ratio (or preset 990..999).

Without an argument the controller's active ratio is updated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := 0
		if len(args) == 1 {
			var err error
			if id, err = parseRatioArg(args[0]); err != nil {
				return err
			}
		}
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			if _, err := c.GetSettingsInfo(ctx); err != nil {
				return err
			}
			if id == 0 {
				if _, err := c.GetStatus(ctx); err != nil {
					return err
				}
			}
			return c.Update(ctx, id)
		})
	},
}

var remoteCmd = &cobra.Command{
	Use:   "remote <clear|halt|home|diagnostics>",
	Short: "Run a remote control command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := controller.ParseRemoteCommand(strings.ToLower(args[0]))
		if err != nil {
			return err
		}
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			if err := c.Remote(ctx, rc); err != nil {
				return err
			}
			if rc == controller.RemoteDiagnostics {
				snap := c.Snapshot()
				return render(cmd.OutOrStdout(), snap, func(w io.Writer) {
					printSystemInfo(w, snap.SystemInfo)
					fmt.Fprintln(w)
					printSettings(w, snap.Settings)
					fmt.Fprintln(w)
					printStatus(w, snap.Status)
					fmt.Fprintln(w)
					printPositions(w, snap.SystemInfo, snap.Positions)
				})
			}
			return nil
		})
	},
}

var pressCmd = &cobra.Command{
	Use:   "press <button>",
	Short: "Press one of the controller buttons",
	Long:  "Press a button by key. Motor buttons act on --motor, or all motors.\n\nButtons:\n" + buttonHelp(),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, c *controller.Controller) error {
			if err := c.SelectMotor(motorFlag); err != nil {
				return err
			}
			if err := applyMode(c); err != nil {
				return err
			}
			return c.PressButton(ctx, args[0])
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{moveCmd, homeCmd, haltCmd, calibrateCmd, pressCmd} {
		cmd.Flags().StringVarP(&motorFlag, "motor", "m", "", "Motor letter from the mask ids (default all)")
	}
	for _, cmd := range []*cobra.Command{moveCmd, pressCmd} {
		cmd.Flags().StringVar(&modeFlag, "mode", "", "Movement mode (none, J, P)")
	}
	addOutputFlag(remoteCmd)

	rootCmd.AddCommand(selectCmd, moveCmd, homeCmd, haltCmd, calibrateCmd,
		jogCmd, updateCmd, remoteCmd, pressCmd)
}

func parseRatioArg(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("%w: ratio %q is not a number", seymour.ErrValidation, arg)
	}
	return id, nil
}

// parseMovementCode accepts "none" and the case-insensitive code letters.
func parseMovementCode(s string) seymour.MovementCode {
	if strings.EqualFold(s, "none") {
		return seymour.MovementNone
	}
	return seymour.MovementCode(strings.ToUpper(s))
}

func applyMode(c *controller.Controller) error {
	if modeFlag == "" {
		return nil
	}
	return c.SelectMovementMode(parseMovementCode(modeFlag))
}

func buttonHelp() string {
	var b strings.Builder
	for _, btn := range controller.Buttons {
		fmt.Fprintf(&b, "  %-16s %s\n", btn.Key, btn.Name)
	}
	return b.String()
}
