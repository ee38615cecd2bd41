// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package controller

import (
	"context"
	"fmt"

	"github.com/johncarey70/seymour/pkg/seymour"
)

// Button describes one momentary action. Motor actions apply to the
// selected motor, or to all motors when none is selected.
type Button struct {
	Key   string
	Name  string
	Icon  string
	Press func(ctx context.Context, c *Controller) error
}

func selectedMotor(c *Controller) string {
	return c.state.Settings().CurrentMotorID
}

// Buttons lists the momentary actions in display order.
var Buttons = []Button{
	{
		Key:  "calibrate",
		Name: "Calibrate Motor(s)",
		Icon: "mdi:wrench",
		Press: func(ctx context.Context, c *Controller) error {
			return c.Calibrate(ctx, selectedMotor(c))
		},
	},
	{
		Key:  "halt",
		Name: "Halt Motor(s)",
		Icon: "mdi:octagon-outline",
		Press: func(ctx context.Context, c *Controller) error {
			return c.Halt(ctx, selectedMotor(c))
		},
	},
	{
		Key:  "home",
		Name: "Home Motor(s)",
		Icon: "mdi:home-circle-outline",
		Press: func(ctx context.Context, c *Controller) error {
			return c.Home(ctx, selectedMotor(c))
		},
	},
	{
		Key:  "move_motors_in",
		Name: "Move Motor(s) In",
		Icon: "mdi:arrow-collapse-horizontal",
		Press: func(ctx context.Context, c *Controller) error {
			return c.MoveMotors(ctx, seymour.DirectionIn, selectedMotor(c))
		},
	},
	{
		Key:  "move_motors_out",
		Name: "Move Motor(s) Out",
		Icon: "mdi:arrow-expand-horizontal",
		Press: func(ctx context.Context, c *Controller) error {
			return c.MoveMotors(ctx, seymour.DirectionOut, selectedMotor(c))
		},
	},
	{
		Key:  "positions",
		Name: "Get Motor Positions",
		Icon: "mdi:refresh",
		Press: func(ctx context.Context, c *Controller) error {
			_, err := c.GetPositions(ctx)
			return err
		},
	},
	{
		Key:  "settings_info",
		Name: "Get Settings Info",
		Icon: "mdi:refresh",
		Press: func(ctx context.Context, c *Controller) error {
			_, err := c.GetSettingsInfo(ctx)
			return err
		},
	},
	{
		Key:  "status",
		Name: "Get Ratio Status",
		Icon: "mdi:refresh",
		Press: func(ctx context.Context, c *Controller) error {
			_, err := c.GetStatus(ctx)
			return err
		},
	},
	{
		Key:  "system_info",
		Name: "Get System Info",
		Icon: "mdi:refresh",
		Press: func(ctx context.Context, c *Controller) error {
			_, err := c.GetSystemInfo(ctx)
			return err
		},
	},
	{
		Key:  "update_ratio",
		Name: "Update Selected Ratio",
		Icon: "mdi:resize",
		Press: func(ctx context.Context, c *Controller) error {
			return c.Update(ctx, 0)
		},
	},
}

// PressButton runs the button with key.
func (c *Controller) PressButton(ctx context.Context, key string) error {
	for _, b := range Buttons {
		if b.Key == key {
			return b.Press(ctx, c)
		}
	}
	return fmt.Errorf("%w: unknown button %q", seymour.ErrValidation, key)
}
