// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package bridge

import "strings"

// Topics builds the topic tree for one controller:
//
//	<prefix>/<device>/availability        online | offline (retained)
//	<prefix>/<device>/state               full snapshot, json or cbor
//	<prefix>/<device>/sensor/<key>        one value per sensor
//	<prefix>/<device>/button/<key>/press  any payload presses the button
//	<prefix>/<device>/remote/set          clear | halt | home | diagnostics
//	<prefix>/<device>/ratio/set           ratio id
//	<prefix>/<device>/motor/set           motor letter, empty clears
//	<prefix>/<device>/movement/set        none | J | P
type Topics struct {
	Prefix   string
	DeviceID string
}

func (t Topics) base() string {
	return t.Prefix + "/" + t.DeviceID
}

// Availability is the retained online/offline topic.
func (t Topics) Availability() string { return t.base() + "/availability" }

// State carries the full snapshot.
func (t Topics) State() string { return t.base() + "/state" }

// Sensor carries one sensor value.
func (t Topics) Sensor(key string) string { return t.base() + "/sensor/" + key }

// ButtonPress is the command topic for one button.
func (t Topics) ButtonPress(key string) string { return t.base() + "/button/" + key + "/press" }

// RemoteSet is the remote command topic.
func (t Topics) RemoteSet() string { return t.base() + "/remote/set" }

// RatioSet selects a ratio.
func (t Topics) RatioSet() string { return t.base() + "/ratio/set" }

// MotorSet selects a motor.
func (t Topics) MotorSet() string { return t.base() + "/motor/set" }

// MovementSet selects a movement mode.
func (t Topics) MovementSet() string { return t.base() + "/movement/set" }

// Commands returns the subscription filter covering every command topic.
func (t Topics) Commands() []string {
	return []string{
		t.base() + "/button/+/press",
		t.RemoteSet(),
		t.RatioSet(),
		t.MotorSet(),
		t.MovementSet(),
	}
}

// buttonKey extracts <key> from a button press topic.
func (t Topics) buttonKey(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.base()+"/button/")
	if !ok {
		return "", false
	}
	key, ok := strings.CutSuffix(rest, "/press")
	if !ok || key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return key, true
}
