// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

// Command builder functions create request Frames ready for encoding.
// They do not check arguments against controller state; callers validate
// motor and ratio ids before building.

// NewSystemInfoQuery creates a system info request ("[01Y]").
func NewSystemInfoQuery(address string) *Frame {
	return NewFrame(address, CmdSystemInfo, "")
}

// NewSettingsQuery creates a ratio table request.
func NewSettingsQuery(address string) *Frame {
	return NewFrame(address, CmdSettings, "")
}

// NewPositionsQuery creates a motor positions request.
func NewPositionsQuery(address string) *Frame {
	return NewFrame(address, CmdPositions, "")
}

// NewStatusQuery creates a ratio status request.
func NewStatusQuery(address string) *Frame {
	return NewFrame(address, CmdStatus, "")
}

// NewSelectRatio creates a request to move the masks to a ratio.
func NewSelectRatio(address string, ratioID int) *Frame {
	return NewFrame(address, CmdSelectRatio, FormatRatioID(ratioID))
}

// NewMove creates a move request. motor is a motor letter or MotorAll;
// code modifies the step (jog or percent) when set.
func NewMove(address string, command Command, motor string, code MovementCode) *Frame {
	return NewFrame(address, command, FormatMove(motor, code))
}

// NewHome creates a home request for motor, or all motors with MotorAll.
func NewHome(address, motor string) *Frame {
	return NewFrame(address, CmdHome, motor)
}

// NewHalt creates a halt request.
func NewHalt(address, motor string) *Frame {
	return NewFrame(address, CmdHalt, motor)
}

// NewCalibrate creates a calibrate request.
func NewCalibrate(address, motor string) *Frame {
	return NewFrame(address, CmdCalibrate, motor)
}

// NewToggleJog creates a jog toggle request.
func NewToggleJog(address string) *Frame {
	return NewFrame(address, CmdToggleJog, "")
}

// NewUpdate creates a request to store the current positions into a ratio.
func NewUpdate(address string, ratioID int) *Frame {
	return NewFrame(address, CmdUpdate, FormatRatioID(ratioID))
}
