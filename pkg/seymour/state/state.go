// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

// Package state holds the in-memory model of one masking controller.
//
// The model does no I/O. It is mutated by the controller's dispatch path
// and read from any goroutine; every accessor returns a copy so callers
// never observe a half-applied update.
package state

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/johncarey70/seymour/pkg/seymour"
)

// MaskRatioSettings is the ratio table and the local selections.
type MaskRatioSettings struct {
	NumRatios           int                             `json:"num_ratios" yaml:"num_ratios" cbor:"num_ratios"`
	Ratios              map[int]seymour.RatioInfo       `json:"ratios" yaml:"ratios" cbor:"ratios"`
	Motors              map[string]string               `json:"motors" yaml:"motors" cbor:"motors"`
	MovementCodes       map[seymour.MovementCode]string `json:"movement_codes" yaml:"movement_codes" cbor:"movement_codes"`
	CurrentRatio        int                             `json:"current_ratio,omitempty" yaml:"current_ratio,omitempty" cbor:"current_ratio,omitempty"`
	CurrentMotorID      string                          `json:"current_motor_id,omitempty" yaml:"current_motor_id,omitempty" cbor:"current_motor_id,omitempty"`
	CurrentMovementCode seymour.MovementCode            `json:"current_movement_code,omitempty" yaml:"current_movement_code,omitempty" cbor:"current_movement_code,omitempty"`
}

// RatioIDs returns the table's ratio ids in ascending order.
func (s MaskRatioSettings) RatioIDs() []int {
	ids := make([]int, 0, len(s.Ratios))
	for id := range s.Ratios {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Current returns the entry for CurrentRatio, if it is in the table.
func (s MaskRatioSettings) Current() (seymour.RatioInfo, bool) {
	r, ok := s.Ratios[s.CurrentRatio]
	return r, ok
}

func (s MaskRatioSettings) clone() MaskRatioSettings {
	c := s
	c.Ratios = make(map[int]seymour.RatioInfo, len(s.Ratios))
	for id, r := range s.Ratios {
		c.Ratios[id] = r.Clone()
	}
	c.Motors = make(map[string]string, len(s.Motors))
	for k, v := range s.Motors {
		c.Motors[k] = v
	}
	c.MovementCodes = make(map[seymour.MovementCode]string, len(s.MovementCodes))
	for k, v := range s.MovementCodes {
		c.MovementCodes[k] = v
	}
	return c
}

// MotorPositions is the latest position report keyed by motor letter.
type MotorPositions struct {
	NumMotors int            `json:"num_motors" yaml:"num_motors" cbor:"num_motors"`
	Motors    map[string]int `json:"motors" yaml:"motors" cbor:"motors"`
}

func (p MotorPositions) clone() MotorPositions {
	c := MotorPositions{NumMotors: p.NumMotors, Motors: make(map[string]int, len(p.Motors))}
	for k, v := range p.Motors {
		c.Motors[k] = v
	}
	return c
}

// Snapshot is a consistent copy of all four records.
type Snapshot struct {
	SystemInfo seymour.SystemInfo  `json:"system_info" yaml:"system_info" cbor:"system_info"`
	Settings   MaskRatioSettings   `json:"settings" yaml:"settings" cbor:"settings"`
	Positions  MotorPositions      `json:"positions" yaml:"positions" cbor:"positions"`
	Status     seymour.RatioStatus `json:"status" yaml:"status" cbor:"status"`
}

// Initialized reports num_motors > 0 and a non-empty ratio table.
func (s Snapshot) Initialized() bool {
	return s.Positions.NumMotors > 0 && len(s.Settings.Ratios) > 0
}

// Model is the controller state.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Model struct {
	mu         sync.RWMutex
	systemInfo seymour.SystemInfo
	settings   MaskRatioSettings
	positions  MotorPositions
	status     seymour.RatioStatus
}

// New returns an empty model with the static label tables filled in.
func New() *Model {
	m := &Model{
		settings: MaskRatioSettings{
			Ratios:        make(map[int]seymour.RatioInfo),
			Motors:        map[string]string{seymour.MotorAll: seymour.MotorIDs[seymour.MotorAll]},
			MovementCodes: make(map[seymour.MovementCode]string, len(seymour.MovementCodes)),
		},
		positions: MotorPositions{Motors: make(map[string]int)},
	}
	for code, label := range seymour.MovementCodes {
		m.settings.MovementCodes[code] = label
	}
	return m
}

// ============================================================
// Accessors
// ============================================================

// SystemInfo returns the controller identity.
func (m *Model) SystemInfo() seymour.SystemInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.systemInfo
}

// Settings returns a copy of the ratio table and selections.
func (m *Model) Settings() MaskRatioSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.clone()
}

// Positions returns a copy of the latest positions.
func (m *Model) Positions() MotorPositions {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions.clone()
}

// Status returns the latest ratio status.
func (m *Model) Status() seymour.RatioStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Snapshot returns all records under one lock.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		SystemInfo: m.systemInfo,
		Settings:   m.settings.clone(),
		Positions:  m.positions.clone(),
		Status:     m.status,
	}
}

// IsInitialized reports num_motors > 0 and a non-empty ratio table.
func (m *Model) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions.NumMotors > 0 && len(m.settings.Ratios) > 0
}

// ============================================================
// Mutators (each returns whether anything changed)
// ============================================================

// SetSystemInfo records the controller identity and derives the motor
// label table from its mask ids.
func (m *Model) SetSystemInfo(info seymour.SystemInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.systemInfo == info {
		return false
	}
	m.systemInfo = info

	motors := map[string]string{seymour.MotorAll: seymour.MotorIDs[seymour.MotorAll]}
	for _, id := range info.Motors() {
		if label, ok := seymour.MotorIDs[id]; ok {
			motors[id] = label
		} else {
			motors[id] = id
		}
	}
	m.settings.Motors = motors
	return true
}

// SetRatios replaces the ratio table.
func (m *Model) SetRatios(ratios map[int]seymour.RatioInfo) bool {
	table := make(map[int]seymour.RatioInfo, len(ratios))
	for id, r := range ratios {
		table[id] = r.Clone()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.Ratios = table
	m.settings.NumRatios = len(table)
	return true
}

// ApplyPositions maps a position report onto motor letters in mask order.
// Before system info is known the motors are keyed "1".."n".
func (m *Model) ApplyPositions(values []int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.systemInfo.Motors()
	if len(ids) == 0 {
		for i := range values {
			ids = append(ids, strconv.Itoa(i+1))
		}
	}
	if len(ids) != len(values) {
		return false, fmt.Errorf("%w: %d positions for %d motors (%s)",
			seymour.ErrProtocol, len(values), len(ids), m.systemInfo.MaskIDs)
	}

	motors := make(map[string]int, len(values))
	for i, v := range values {
		motors[ids[i]] = v
	}

	changed := m.positions.NumMotors != len(motors)
	for k, v := range motors {
		if old, ok := m.positions.Motors[k]; !ok || old != v {
			changed = true
		}
	}
	m.positions = MotorPositions{NumMotors: len(motors), Motors: motors}
	return changed, nil
}

// SetStatus records a status report. A non-zero ratio id in the report is
// also the current ratio.
func (m *Model) SetStatus(status seymour.RatioStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := m.status != status
	m.status = status
	if status.RatioID != 0 && m.settings.CurrentRatio != status.RatioID {
		m.settings.CurrentRatio = status.RatioID
		changed = true
	}
	return changed
}

// SetMovementCode records the selected movement mode.
func (m *Model) SetMovementCode(code seymour.MovementCode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings.CurrentMovementCode == code {
		return false
	}
	m.settings.CurrentMovementCode = code
	return true
}

// SetCurrentMotor records the selected motor; "" clears it.
func (m *Model) SetCurrentMotor(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings.CurrentMotorID == id {
		return false
	}
	m.settings.CurrentMotorID = id
	return true
}

// ClearSelections resets the selected motor and movement mode.
func (m *Model) ClearSelections() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.settings.CurrentMotorID != "" || m.settings.CurrentMovementCode != seymour.MovementNone
	m.settings.CurrentMotorID = ""
	m.settings.CurrentMovementCode = seymour.MovementNone
	return changed
}
