// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

import (
	"bytes"
	"fmt"
	"time"
)

// Decode extracts the first frame from buf.
//
// It returns the frame and the number of bytes consumed. When buf holds the
// start of a frame without its closing bracket the error is ErrNeedMoreData
// and nothing is consumed. When leading bytes cannot form a frame the error
// wraps ErrMalformed and consumed covers the discarded bytes, so callers can
// drop them and call Decode again.
func Decode(buf []byte) (*Frame, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrNeedMoreData
	}

	if buf[0] != StartByte {
		skip := bytes.IndexByte(buf, StartByte)
		if skip < 0 {
			skip = len(buf)
		}
		return nil, skip, fmt.Errorf("%w: %d bytes outside a frame", ErrMalformed, skip)
	}

	for i := 1; i < len(buf); i++ {
		switch buf[i] {
		case StartByte:
			return nil, i, fmt.Errorf("%w: frame truncated by new start byte", ErrMalformed)
		case EndByte:
			frame, err := parseBody(buf[1:i])
			if err != nil {
				return nil, i + 1, err
			}
			return frame, i + 1, nil
		}
		if i > MaxBodySize {
			return nil, i, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformed, MaxBodySize)
		}
	}

	return nil, 0, ErrNeedMoreData
}

const (
	stateIdle = iota
	stateBody
)

// Decoder implements the streaming frame decoder state machine
type Decoder struct {
	state     int
	body      []byte
	discarded uint64
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state: stateIdle,
		body:  make([]byte, 0, MaxBodySize),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.body = d.body[:0]
}

// Discarded returns the number of bytes seen outside any frame
func (d *Decoder) Discarded() uint64 {
	return d.discarded
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error wrapping ErrMalformed when a partial frame is dropped.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateIdle:
		if b == StartByte {
			d.state = stateBody
			d.body = d.body[:0]
			return nil, nil
		}
		d.discarded++
		return nil, nil

	case stateBody:
		switch b {
		case StartByte:
			// Resynchronise on the new frame
			dropped := len(d.body)
			d.body = d.body[:0]
			return nil, fmt.Errorf("%w: frame truncated after %d bytes", ErrMalformed, dropped)

		case EndByte:
			frame, err := parseBody(d.body)
			d.Reset()
			return frame, err
		}

		if len(d.body) >= MaxBodySize {
			d.Reset()
			return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformed, MaxBodySize)
		}
		d.body = append(d.body, b)
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("%w: invalid decoder state %d", ErrMalformed, d.state)
	}
}

// parseBody validates the bytes between the brackets.
func parseBody(body []byte) (*Frame, error) {
	if len(body) < AddressSize+CommandSize {
		return nil, fmt.Errorf("%w: body %q too short", ErrMalformed, body)
	}

	address := string(body[:AddressSize])
	if err := validateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	command := Command(body[AddressSize])
	if err := validateCommand(command); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	payload := string(body[AddressSize+CommandSize:])
	if err := validatePayload(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &Frame{
		address:   address,
		command:   command,
		payload:   payload,
		timestamp: time.Now(),
	}, nil
}
