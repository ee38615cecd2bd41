// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

import (
	"fmt"
	"sort"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (%c) addr=%s len=%d %s\n",
		timestamp, FormatCommand(f.command), byte(f.command), f.address, len(f.payload), f.String())
	if detail := FormatPayload(f.command, f.payload); detail != "" {
		result += detail
	}
	return result
}

// FormatCommand returns the human-readable name for a command
func FormatCommand(c Command) string {
	switch c {
	case CmdSystemInfo:
		return "SYSTEM_INFO"
	case CmdSettings:
		return "SETTINGS"
	case CmdPositions:
		return "POSITIONS"
	case CmdStatus:
		return "STATUS"
	case CmdSelectRatio:
		return "SELECT_RATIO"
	case CmdMoveIn:
		return "MOVE_IN"
	case CmdMoveOut:
		return "MOVE_OUT"
	case CmdHome:
		return "HOME"
	case CmdHalt:
		return "HALT"
	case CmdCalibrate:
		return "CALIBRATE"
	case CmdToggleJog:
		return "TOGGLE_JOG"
	case CmdUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// FormatMotor returns "T (Top)" style labels for a motor letter
func FormatMotor(motor string) string {
	if label, ok := MotorIDs[motor]; ok {
		return fmt.Sprintf("%s (%s)", motor, label)
	}
	return motor
}

// FormatPayload decodes a reply payload into indented detail lines.
// Payloads that are empty or fail to parse produce a short note instead.
func FormatPayload(c Command, payload string) string {
	if payload == "" {
		return ""
	}

	switch c {
	case CmdSystemInfo:
		info, err := ParseSystemInfo(payload)
		if err != nil {
			return formatParseError(err)
		}
		return fmt.Sprintf("  Serial: %s  Model: %s  Protocol: %s\n  Screen: %s x %s  Motors: %s\n",
			info.SerialNumber, info.ScreenModel, info.ProtocolVersion,
			formatNumber(info.Width), formatNumber(info.Height), strings.Join(info.Motors(), ","))

	case CmdSettings:
		ratios, err := ParseSettings(payload)
		if err != nil {
			return formatParseError(err)
		}
		ids := make([]int, 0, len(ratios))
		for id := range ratios {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		var b strings.Builder
		for _, id := range ids {
			r := ratios[id]
			fmt.Fprintf(&b, "  %s %-10s %s x %s (diag %s) motors=%d\n", FormatRatioID(id), r.Label,
				formatNumber(r.Width), formatNumber(r.Height), formatNumber(r.Diagonal), len(r.Motors))
		}
		return b.String()

	case CmdPositions:
		positions, err := ParsePositions(payload)
		if err != nil {
			return formatParseError(err)
		}
		return fmt.Sprintf("  Positions: %v\n", positions)

	case CmdStatus, CmdSelectRatio:
		status, err := ParseStatus(payload)
		if err != nil {
			// Select requests carry only the ratio id
			if id, idErr := ParseRatioID(payload); idErr == nil {
				return fmt.Sprintf("  Ratio: %s\n", FormatRatioID(id))
			}
			return formatParseError(err)
		}
		return fmt.Sprintf("  Ratio: %s  Status: %s (%02d)\n", FormatRatioID(status.RatioID), status.StatusCode, int(status.StatusCode))

	case CmdMoveIn, CmdMoveOut, CmdHome, CmdHalt, CmdCalibrate:
		motor := payload[:1]
		result := fmt.Sprintf("  Motor: %s", FormatMotor(motor))
		if len(payload) > 1 {
			code := MovementCode(payload[1:])
			if label, ok := MovementCodes[code]; ok {
				result += fmt.Sprintf("  Mode: %s", label)
			} else {
				result += fmt.Sprintf("  Mode: %q", payload[1:])
			}
		}
		return result + "\n"

	case CmdToggleJog:
		on, known, err := ParseJogState(payload)
		if err != nil {
			return formatParseError(err)
		}
		if !known {
			return ""
		}
		return fmt.Sprintf("  Jog: %t\n", on)

	case CmdUpdate:
		id, err := ParseRatioID(payload)
		if err != nil {
			return formatParseError(err)
		}
		return fmt.Sprintf("  Ratio: %s\n", FormatRatioID(id))
	}

	return fmt.Sprintf("  Payload: %q\n", payload)
}

func formatParseError(err error) string {
	return fmt.Sprintf("  [PARSE ERROR] %v\n", err)
}
