// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package state

import (
	"fmt"
	"strings"

	"github.com/johncarey70/seymour/pkg/seymour"
)

// ResolveMotor checks a motor argument against the mask ids. An empty id
// means all motors and resolves to seymour.MotorAll.
func (m *Model) ResolveMotor(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" || id == seymour.MotorAll {
		return seymour.MotorAll, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	motors := m.systemInfo.Motors()
	if len(motors) == 0 {
		return "", fmt.Errorf("%w: motor %q: mask ids unknown, query system info first", seymour.ErrValidation, id)
	}
	for _, known := range motors {
		if known == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: motor %q not in mask ids %q", seymour.ErrValidation, id, m.systemInfo.MaskIDs)
}

// ValidateRatio checks a ratio id for select and update. The domain is
// 1..num_ratios, any id in the table, and the reserved presets 990..999.
func (m *Model) ValidateRatio(id int) error {
	if seymour.IsPresetRatio(id) {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.settings.Ratios[id]; ok {
		return nil
	}
	if id >= seymour.MinRatioID && id <= m.settings.NumRatios {
		return nil
	}
	return fmt.Errorf("%w: ratio %d not in 1..%d or presets %d..%d",
		seymour.ErrValidation, id, m.settings.NumRatios, seymour.MinPresetID, seymour.MaxPresetID)
}

// ValidateMovementCode checks a movement mode against the code table.
func (m *Model) ValidateMovementCode(code seymour.MovementCode) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.settings.MovementCodes[code]; !ok {
		return fmt.Errorf("%w: movement code %q", seymour.ErrValidation, string(code))
	}
	return nil
}
