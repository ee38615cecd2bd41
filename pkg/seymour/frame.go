// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

import "time"

// Frame represents one decoded bracket-delimited message
type Frame struct {
	address   string
	command   Command
	payload   string
	timestamp time.Time
}

// NewFrame creates a frame from its fields. The frame is not validated;
// Encode reports fields that cannot be put on the wire.
func NewFrame(address string, command Command, payload string) *Frame {
	return &Frame{
		address:   address,
		command:   command,
		payload:   payload,
		timestamp: time.Now(),
	}
}

// Address returns the two-digit controller address
func (f *Frame) Address() string {
	return f.address
}

// Command returns the command letter
func (f *Frame) Command() Command {
	return f.command
}

// Payload returns the payload text between the command and the closing bracket
func (f *Frame) Payload() string {
	return f.payload
}

// Timestamp returns the time the frame was decoded or built
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Bytes returns the wire form of the frame, or nil if it cannot be encoded
func (f *Frame) Bytes() []byte {
	data, err := Encode(f.address, f.command, f.payload)
	if err != nil {
		return nil
	}
	return data
}

// String returns the wire form as text, e.g. "[01Y]"
func (f *Frame) String() string {
	return string(StartByte) + f.address + string(rune(f.command)) + f.payload + string(EndByte)
}
