// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/johncarey70/seymour/internal/config"
	"github.com/johncarey70/seymour/pkg/seymour/state"
)

// cborMode sorts map keys so identical snapshots encode identically.
var cborMode, _ = cbor.CanonicalEncOptions().EncMode()

// EncodeState renders a snapshot in the configured payload format.
func EncodeState(format string, snap state.Snapshot) ([]byte, error) {
	switch format {
	case config.PayloadJSON, "":
		return json.Marshal(snap)
	case config.PayloadCBOR:
		return cborMode.Marshal(snap)
	}
	return nil, fmt.Errorf("unknown payload format %q", format)
}

// DecodeState parses a payload produced by EncodeState.
func DecodeState(format string, data []byte) (state.Snapshot, error) {
	var snap state.Snapshot
	var err error
	switch format {
	case config.PayloadJSON, "":
		err = json.Unmarshal(data, &snap)
	case config.PayloadCBOR:
		err = cbor.Unmarshal(data, &snap)
	default:
		err = fmt.Errorf("unknown payload format %q", format)
	}
	return snap, err
}

// sensorValues evaluates every sensor against snap. Unavailable sensors
// are omitted.
func sensorValues(sensors []state.Sensor, snap state.Snapshot) map[string]string {
	values := make(map[string]string, len(sensors))
	for _, s := range sensors {
		if v, ok := s.Value(snap); ok {
			values[s.Key] = v
		}
	}
	return values
}
