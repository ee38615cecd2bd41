// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

import "errors"

// Domain errors shared by the codec, transport, router and client.
var (
	// ErrValidation is returned when an argument is out of domain.
	// Requests failing validation never reach the wire.
	ErrValidation = errors.New("seymour: invalid argument")

	// ErrEncoding is returned when a payload cannot be framed.
	ErrEncoding = errors.New("seymour: payload cannot be framed")

	// ErrConnection is returned when the port cannot be opened, the link
	// failed mid-session, or the transport is closed.
	ErrConnection = errors.New("seymour: connection unavailable")

	// ErrTimeout is returned when no reply arrives within the deadline.
	// The link is presumed alive.
	ErrTimeout = errors.New("seymour: request timed out")

	// ErrProtocol is returned when a reply cannot be parsed.
	ErrProtocol = errors.New("seymour: unparseable reply")

	// ErrBusy is returned when a request for the same command and address
	// is already pending.
	ErrBusy = errors.New("seymour: request already pending")
)

// Decoder results.
var (
	// ErrNeedMoreData means the buffer holds the start of a frame but no
	// closing delimiter yet.
	ErrNeedMoreData = errors.New("seymour: incomplete frame")

	// ErrMalformed means bytes were discarded because they cannot form a
	// valid frame.
	ErrMalformed = errors.New("seymour: malformed frame")
)
