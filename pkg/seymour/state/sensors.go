// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package state

import (
	"strconv"

	"github.com/johncarey70/seymour/pkg/seymour"
)

// Sensor describes one read-only value derived from a Snapshot.
// Value returns ok=false when the value is not available yet.
type Sensor struct {
	Key     string
	Name    string
	Icon    string
	MotorID string
	Value   func(s Snapshot) (value string, ok bool)
}

var baseSensors = []Sensor{
	{
		Key:  "current_ratio_id",
		Name: "Current Aspect Ratio",
		Value: func(s Snapshot) (string, bool) {
			if s.Status.RatioID == 0 {
				return "", false
			}
			return seymour.FormatRatioID(s.Status.RatioID), true
		},
	},
	{
		Key:  "current_status_code",
		Name: "Current Status",
		Value: func(s Snapshot) (string, bool) {
			return s.Status.StatusCode.String(), s.Status.RatioID != 0
		},
	},
	{
		Key:  "num_motors",
		Name: "Number of Motors",
		Icon: "mdi:engine",
		Value: func(s Snapshot) (string, bool) {
			return strconv.Itoa(s.Positions.NumMotors), true
		},
	},
	{
		Key:  "num_ratios",
		Name: "Number of Ratios",
		Icon: "mdi:aspect-ratio",
		Value: func(s Snapshot) (string, bool) {
			return strconv.Itoa(s.Settings.NumRatios), true
		},
	},
	{
		Key:  "width",
		Name: "Screen Width",
		Icon: "mdi:arrow-expand-horizontal",
		Value: currentRatioValue(func(r seymour.RatioInfo) float64 {
			return r.Width
		}),
	},
	{
		Key:  "height",
		Name: "Screen Height",
		Icon: "mdi:arrow-expand-vertical",
		Value: currentRatioValue(func(r seymour.RatioInfo) float64 {
			return r.Height
		}),
	},
	{
		Key:  "diagonal",
		Name: "Screen Diagonal",
		Icon: "mdi:arrow-expand",
		Value: currentRatioValue(func(r seymour.RatioInfo) float64 {
			return r.Diagonal
		}),
	},
}

func currentRatioValue(field func(seymour.RatioInfo) float64) func(Snapshot) (string, bool) {
	return func(s Snapshot) (string, bool) {
		r, ok := s.Settings.Current()
		if !ok {
			return "", false
		}
		return strconv.FormatFloat(field(r), 'f', -1, 64), true
	}
}

// Sensors returns the fixed sensors plus one position sensor per motor
// in the controller's mask ids.
func Sensors(info seymour.SystemInfo) []Sensor {
	sensors := make([]Sensor, len(baseSensors), len(baseSensors)+len(info.Motors()))
	copy(sensors, baseSensors)

	for _, id := range info.Motors() {
		motorID := id
		label := motorID
		if l, ok := seymour.MotorIDs[motorID]; ok {
			label = l
		}
		sensors = append(sensors, Sensor{
			Key:     "motor_" + motorID + "_position",
			Name:    "Motor " + label + " Position",
			Icon:    "mdi:axis-arrow",
			MotorID: motorID,
			Value: func(s Snapshot) (string, bool) {
				pos, ok := s.Positions.Motors[motorID]
				if !ok {
					return "", false
				}
				return strconv.Itoa(pos), true
			},
		})
	}
	return sensors
}
