// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

import "fmt"

// Encode creates a complete wire frame "[<address><command><payload>]".
// Returns an error wrapping ErrEncoding if any field cannot be framed.
func Encode(address string, command Command, payload string) ([]byte, error) {
	if err := validateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if err := validateCommand(command); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload too large: %d bytes (max %d)", ErrEncoding, len(payload), MaxPayloadSize)
	}
	if err := validatePayload(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	frame := make([]byte, 0, 2+AddressSize+CommandSize+len(payload))
	frame = append(frame, StartByte)
	frame = append(frame, address...)
	frame = append(frame, byte(command))
	frame = append(frame, payload...)
	frame = append(frame, EndByte)

	return frame, nil
}

// EncodeFrame encodes an existing Frame back to wire format.
func EncodeFrame(f *Frame) ([]byte, error) {
	return Encode(f.address, f.command, f.payload)
}

// ValidateAddress checks a bus address: exactly two decimal digits.
func ValidateAddress(address string) error {
	if err := validateAddress(address); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func validateAddress(address string) error {
	if len(address) != AddressSize {
		return fmt.Errorf("address %q must be %d digits", address, AddressSize)
	}
	for i := 0; i < len(address); i++ {
		if address[i] < '0' || address[i] > '9' {
			return fmt.Errorf("address %q must be %d digits", address, AddressSize)
		}
	}
	return nil
}

func validateCommand(command Command) error {
	if command < 'A' || command > 'Z' {
		return fmt.Errorf("command 0x%02X is not an uppercase letter", byte(command))
	}
	return nil
}

// validatePayload accepts printable 7-bit ASCII without frame delimiters.
func validatePayload(payload string) error {
	for i := 0; i < len(payload); i++ {
		b := payload[i]
		switch {
		case b == StartByte || b == EndByte:
			return fmt.Errorf("payload contains delimiter %q at offset %d", b, i)
		case b < 0x20 || b > 0x7E:
			return fmt.Errorf("payload contains non-printable byte 0x%02X at offset %d", b, i)
		}
	}
	return nil
}
