// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

// Package seymour implements the ASCII bracket protocol spoken by Seymour
// screen masking controllers over RS-232 / USB serial.
//
// A frame is "[" + address + command + payload + "]", for example "[01Y]".
// This package provides frame encoding and decoding, payload parsing for
// every reply the controller sends, human-readable formatting and link
// statistics. Nothing outside this package needs to know a command letter.
package seymour

// Protocol framing bytes
const (
	StartByte = '['
	EndByte   = ']'
)

// Frame size limits
const (
	AddressSize    = 2
	CommandSize    = 1
	MaxBodySize    = 1024 // address + command + payload; the settings reply is the longest
	MaxPayloadSize = MaxBodySize - AddressSize - CommandSize
)

// DefaultAddress is the factory address of a controller.
const DefaultAddress = "01"

// DefaultBaudRate is the controller's fixed RS-232 rate.
const DefaultBaudRate = 9600

// Command identifies a request/reply pair on the wire.
type Command byte

// Commands (host → controller). Replies echo the same letter.
const (
	CmdSystemInfo  Command = 'Y'
	CmdSettings    Command = 'Q'
	CmdPositions   Command = 'P'
	CmdStatus      Command = 'S'
	CmdSelectRatio Command = 'A'
	CmdMoveIn      Command = 'I'
	CmdMoveOut     Command = 'O'
	CmdHome        Command = 'H'
	CmdHalt        Command = 'X'
	CmdCalibrate   Command = 'C'
	CmdToggleJog   Command = 'J'
	CmdUpdate      Command = 'U'
)

// Commands lists every command in wire-letter order of the reference sheet.
var Commands = []Command{
	CmdSystemInfo, CmdSettings, CmdPositions, CmdStatus, CmdSelectRatio,
	CmdMoveIn, CmdMoveOut, CmdHome, CmdHalt, CmdCalibrate, CmdToggleJog, CmdUpdate,
}

// Known reports whether c is a command this package understands.
func (c Command) Known() bool {
	for _, k := range Commands {
		if k == c {
			return true
		}
	}
	return false
}

// MotorAll addresses every motor in a single move/home/halt/calibrate command.
const MotorAll = "A"

// MotorIDs maps motor letters to labels.
var MotorIDs = map[string]string{
	"A": "All Motors",
	"T": "Top",
	"B": "Bottom",
	"L": "Left",
	"R": "Right",
}

// MovementCode selects how move commands are interpreted by the controller.
// The zero value means no modifier.
type MovementCode string

// Movement codes
const (
	MovementNone    MovementCode = ""
	MovementJog     MovementCode = "J"
	MovementPercent MovementCode = "P"
)

// MovementCodes maps movement codes to labels.
var MovementCodes = map[MovementCode]string{
	MovementNone:    "None",
	MovementJog:     "Jog",
	MovementPercent: "Percent",
}

// Direction of a move command.
type Direction string

// Directions
const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Command returns the wire command for a move in direction d.
func (d Direction) Command() (Command, bool) {
	switch d {
	case DirectionIn:
		return CmdMoveIn, true
	case DirectionOut:
		return CmdMoveOut, true
	}
	return 0, false
}

// Ratio id ranges
const (
	MinRatioID    = 1
	MaxRatioID    = 999
	MinPresetID   = 990
	MaxPresetID   = 999
	RatioIDDigits = 3
)

// IsPresetRatio reports whether id is one of the reserved preset slots.
func IsPresetRatio(id int) bool {
	return id >= MinPresetID && id <= MaxPresetID
}

// StatusCode is the controller's two-digit activity code.
type StatusCode int

// Status codes
const (
	StatusIdle        StatusCode = 0
	StatusMoving      StatusCode = 1
	StatusHoming      StatusCode = 2
	StatusCalibrating StatusCode = 3
	StatusHalted      StatusCode = 4
	StatusJogging     StatusCode = 5
	StatusUpdating    StatusCode = 6
	StatusError       StatusCode = 99
)

// StatusCodes maps status codes to labels.
var StatusCodes = map[StatusCode]string{
	StatusIdle:        "Idle",
	StatusMoving:      "Moving",
	StatusHoming:      "Homing",
	StatusCalibrating: "Calibrating",
	StatusHalted:      "Halted",
	StatusJogging:     "Jogging",
	StatusUpdating:    "Updating",
	StatusError:       "Error",
}

// String returns the label for s, or "Unknown".
func (s StatusCode) String() string {
	if label, ok := StatusCodes[s]; ok {
		return label
	}
	return "Unknown"
}
