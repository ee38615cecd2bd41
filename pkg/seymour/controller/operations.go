// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package controller

import (
	"context"
	"fmt"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/state"
)

// ============================================================
// Reply appliers (run on the dispatch goroutine)
// ============================================================

func (c *Controller) applySystemInfo(f *seymour.Frame) (bool, error) {
	info, err := seymour.ParseSystemInfo(f.Payload())
	if err != nil {
		return false, err
	}
	return c.state.SetSystemInfo(info), nil
}

func (c *Controller) applySettings(f *seymour.Frame) (bool, error) {
	ratios, err := seymour.ParseSettings(f.Payload())
	if err != nil {
		return false, err
	}
	return c.state.SetRatios(ratios), nil
}

func (c *Controller) applyPositions(f *seymour.Frame) (bool, error) {
	positions, err := seymour.ParsePositions(f.Payload())
	if err != nil {
		return false, err
	}
	return c.state.ApplyPositions(positions)
}

func (c *Controller) applyStatus(f *seymour.Frame) (bool, error) {
	status, err := seymour.ParseStatus(f.Payload())
	if err != nil {
		return false, err
	}
	return c.state.SetStatus(status), nil
}

func ack(*seymour.Frame) (bool, error) {
	return false, nil
}

// ============================================================
// Queries
// ============================================================

// GetSystemInfo queries the controller identity.
func (c *Controller) GetSystemInfo(ctx context.Context) (seymour.SystemInfo, error) {
	if _, err := c.request(ctx, seymour.NewSystemInfoQuery(c.cfg.Address), c.applySystemInfo); err != nil {
		return seymour.SystemInfo{}, err
	}
	return c.state.SystemInfo(), nil
}

// GetSettingsInfo queries the ratio table.
func (c *Controller) GetSettingsInfo(ctx context.Context) (state.MaskRatioSettings, error) {
	if _, err := c.request(ctx, seymour.NewSettingsQuery(c.cfg.Address), c.applySettings); err != nil {
		return state.MaskRatioSettings{}, err
	}
	return c.state.Settings(), nil
}

// GetStatus queries the active ratio and activity code.
func (c *Controller) GetStatus(ctx context.Context) (seymour.RatioStatus, error) {
	if _, err := c.request(ctx, seymour.NewStatusQuery(c.cfg.Address), c.applyStatus); err != nil {
		return seymour.RatioStatus{}, err
	}
	return c.state.Status(), nil
}

// GetPositions queries the motor positions.
func (c *Controller) GetPositions(ctx context.Context) (state.MotorPositions, error) {
	if _, err := c.request(ctx, seymour.NewPositionsQuery(c.cfg.Address), c.applyPositions); err != nil {
		return state.MotorPositions{}, err
	}
	return c.state.Positions(), nil
}

// ============================================================
// Commands
// ============================================================

// SelectRatio moves the masks to ratioID. The reply carries the new
// status; a bare acknowledgement records ratioID with the previous code.
func (c *Controller) SelectRatio(ctx context.Context, ratioID int) error {
	if err := c.state.ValidateRatio(ratioID); err != nil {
		return err
	}

	apply := func(f *seymour.Frame) (bool, error) {
		status := seymour.RatioStatus{RatioID: ratioID, StatusCode: c.state.Status().StatusCode}
		if f.Payload() != "" {
			var err error
			if status, err = seymour.ParseStatus(f.Payload()); err != nil {
				return false, err
			}
			if status.RatioID != ratioID {
				return false, fmt.Errorf("%w: selected ratio %d but controller reports %d",
					seymour.ErrProtocol, ratioID, status.RatioID)
			}
		}
		return c.state.SetStatus(status), nil
	}

	_, err := c.request(ctx, seymour.NewSelectRatio(c.cfg.Address, ratioID), apply)
	return err
}

// MoveMotors steps one motor, or all motors when motorID is empty, in
// direction. The selected movement mode is sent as a modifier.
func (c *Controller) MoveMotors(ctx context.Context, direction seymour.Direction, motorID string) error {
	command, ok := direction.Command()
	if !ok {
		return fmt.Errorf("%w: direction %q (want in or out)", seymour.ErrValidation, string(direction))
	}
	motor, err := c.state.ResolveMotor(motorID)
	if err != nil {
		return err
	}
	code := c.state.Settings().CurrentMovementCode

	_, err = c.request(ctx, seymour.NewMove(c.cfg.Address, command, motor, code), ack)
	return err
}

// Home drives one motor, or all motors when motorID is empty, to its
// home stop. Final positions arrive by push or a later GetPositions.
func (c *Controller) Home(ctx context.Context, motorID string) error {
	motor, err := c.state.ResolveMotor(motorID)
	if err != nil {
		return err
	}
	_, err = c.request(ctx, seymour.NewHome(c.cfg.Address, motor), ack)
	return err
}

// Halt stops one motor, or all motors when motorID is empty.
func (c *Controller) Halt(ctx context.Context, motorID string) error {
	motor, err := c.state.ResolveMotor(motorID)
	if err != nil {
		return err
	}
	_, err = c.request(ctx, seymour.NewHalt(c.cfg.Address, motor), ack)
	return err
}

// Calibrate runs the travel calibration for one motor, or all motors.
func (c *Controller) Calibrate(ctx context.Context, motorID string) error {
	motor, err := c.state.ResolveMotor(motorID)
	if err != nil {
		return err
	}
	_, err = c.request(ctx, seymour.NewCalibrate(c.cfg.Address, motor), ack)
	return err
}

// ToggleJog flips the movement mode between jog and none and returns the
// new mode. If the controller reports its jog state that state wins.
func (c *Controller) ToggleJog(ctx context.Context) (seymour.MovementCode, error) {
	apply := func(f *seymour.Frame) (bool, error) {
		on, known, err := seymour.ParseJogState(f.Payload())
		if err != nil {
			return false, err
		}
		if !known {
			on = c.state.Settings().CurrentMovementCode != seymour.MovementJog
		}
		code := seymour.MovementNone
		if on {
			code = seymour.MovementJog
		}
		return c.state.SetMovementCode(code), nil
	}

	if _, err := c.request(ctx, seymour.NewToggleJog(c.cfg.Address), apply); err != nil {
		return c.state.Settings().CurrentMovementCode, err
	}
	return c.state.Settings().CurrentMovementCode, nil
}

// Update stores the current mask positions into ratioID, or into the
// current ratio when ratioID is 0.
func (c *Controller) Update(ctx context.Context, ratioID int) error {
	if ratioID == 0 {
		ratioID = c.state.Settings().CurrentRatio
		if ratioID == 0 {
			return fmt.Errorf("%w: no ratio given and none selected", seymour.ErrValidation)
		}
	}
	if err := c.state.ValidateRatio(ratioID); err != nil {
		return err
	}

	_, err := c.request(ctx, seymour.NewUpdate(c.cfg.Address, ratioID), ack)
	return err
}

// ============================================================
// Local selections (no wire traffic)
// ============================================================

// SelectMotor records the motor used by controls that act on "the
// selected motor". An empty id clears the selection.
func (c *Controller) SelectMotor(motorID string) error {
	id := ""
	if motorID != "" {
		var err error
		if id, err = c.state.ResolveMotor(motorID); err != nil {
			return err
		}
	}
	if c.state.SetCurrentMotor(id) {
		c.notifier.Signal()
	}
	return nil
}

// SelectMovementMode records the movement mode sent with move commands.
func (c *Controller) SelectMovementMode(code seymour.MovementCode) error {
	if err := c.state.ValidateMovementCode(code); err != nil {
		return err
	}
	if c.state.SetMovementCode(code) {
		c.notifier.Signal()
	}
	return nil
}
