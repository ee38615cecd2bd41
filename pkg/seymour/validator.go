// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyUnknownCommand AnomalyType = iota
	AnomalyParseError
	AnomalyUnknownMotor
	AnomalyUnknownStatus
	AnomalyNegativePosition
	AnomalyMotorCountMismatch
)

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a well-formed frame for content the controller
// should never send. Returns a slice of validation errors (empty if the
// frame is valid).
func ValidateFrame(f *Frame) []ValidationError {
	if !f.command.Known() {
		return []ValidationError{{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("Unknown command %q", byte(f.command)),
			Details: map[string]interface{}{"command": string(rune(f.command))},
		}}
	}
	if f.payload == "" {
		return nil
	}

	switch f.command {
	case CmdSystemInfo:
		return validateSystemInfo(f)
	case CmdSettings:
		return validateSettings(f)
	case CmdPositions:
		return validatePositions(f)
	case CmdStatus:
		return validateStatus(f)
	case CmdMoveIn, CmdMoveOut, CmdHome, CmdHalt, CmdCalibrate:
		return validateMotorField(f)
	}
	return nil
}

func parseError(f *Frame, err error) []ValidationError {
	return []ValidationError{{
		Type:    AnomalyParseError,
		Message: fmt.Sprintf("%s: %v", FormatCommand(f.command), err),
		Details: map[string]interface{}{"payload": f.payload},
	}}
}

func validateSystemInfo(f *Frame) []ValidationError {
	info, err := ParseSystemInfo(f.payload)
	if err != nil {
		return parseError(f, err)
	}
	errors := []ValidationError{}
	for _, m := range info.Motors() {
		if _, ok := MotorIDs[m]; !ok || m == MotorAll {
			errors = append(errors, ValidationError{
				Type:    AnomalyUnknownMotor,
				Message: fmt.Sprintf("Unknown motor %q in mask ids", m),
				Details: map[string]interface{}{"motor": m, "mask_ids": info.MaskIDs},
			})
		}
	}
	return errors
}

func validateSettings(f *Frame) []ValidationError {
	if _, err := ParseSettings(f.payload); err != nil {
		return parseError(f, err)
	}
	return nil
}

func validatePositions(f *Frame) []ValidationError {
	positions, err := ParsePositions(f.payload)
	if err != nil {
		return parseError(f, err)
	}
	errors := []ValidationError{}
	for i, p := range positions {
		if p < 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyNegativePosition,
				Message: fmt.Sprintf("Motor %d position %d is negative", i+1, p),
				Details: map[string]interface{}{"index": i, "position": p},
			})
		}
	}
	return errors
}

func validateStatus(f *Frame) []ValidationError {
	status, err := ParseStatus(f.payload)
	if err != nil {
		return parseError(f, err)
	}
	if _, ok := StatusCodes[status.StatusCode]; !ok {
		return []ValidationError{{
			Type:    AnomalyUnknownStatus,
			Message: fmt.Sprintf("Unknown status code %02d", int(status.StatusCode)),
			Details: map[string]interface{}{"status_code": int(status.StatusCode)},
		}}
	}
	return nil
}

func validateMotorField(f *Frame) []ValidationError {
	motor := f.payload[:1]
	if _, ok := MotorIDs[motor]; !ok {
		return []ValidationError{{
			Type:    AnomalyUnknownMotor,
			Message: fmt.Sprintf("%s: unknown motor %q", FormatCommand(f.command), motor),
			Details: map[string]interface{}{"motor": motor},
		}}
	}
	return nil
}

// CheckMotorCount compares a position report against the mask ids from
// system info. It returns nil when the counts agree or info is unknown.
func CheckMotorCount(info SystemInfo, positions []int) *ValidationError {
	motors := info.Motors()
	if len(motors) == 0 || len(motors) == len(positions) {
		return nil
	}
	return &ValidationError{
		Type:    AnomalyMotorCountMismatch,
		Message: fmt.Sprintf("Position report has %d motors, mask ids list %d", len(positions), len(motors)),
		Details: map[string]interface{}{"positions": len(positions), "motors": len(motors)},
	}
}
