// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/transport"
)

func collect(lm *linkMonitor, data string) []frameEvent {
	var events []frameEvent
	lm.feed([]byte(data), func(ev frameEvent) { events = append(events, ev) })
	return events
}

func TestLinkMonitor_IgnoresNoiseBeforeSync(t *testing.T) {
	lm := newLinkMonitor()

	// Joined mid-frame: the truncated frame is not an error yet
	events := collect(lm, "xx[0[01S00100]")

	require.Len(t, events, 1)
	assert.True(t, events[0].synced)
	assert.Equal(t, uint64(2), events[0].skipped)
	assert.Empty(t, events[0].issues)

	stats := lm.stats.Snapshot()
	assert.Equal(t, uint64(1), stats.FramesReceived)
	assert.Zero(t, stats.MalformedFrames)
}

func TestLinkMonitor_CountsMalformedAfterSync(t *testing.T) {
	lm := newLinkMonitor()
	collect(lm, "[01S00100]")

	events := collect(lm, "[0xY][01S00100]")

	require.Len(t, events, 2)
	assert.ErrorIs(t, events[0].decodeErr, seymour.ErrMalformed)
	assert.False(t, events[1].synced)

	stats := lm.stats.Snapshot()
	assert.Equal(t, uint64(2), stats.FramesReceived)
	assert.Equal(t, uint64(1), stats.MalformedFrames)
}

func TestLinkMonitor_FlagsAnomalies(t *testing.T) {
	lm := newLinkMonitor()

	events := collect(lm, "[01Z][01S00177]")

	require.Len(t, events, 2)
	require.Len(t, events[0].issues, 1)
	assert.Equal(t, seymour.AnomalyUnknownCommand, events[0].issues[0].Type)
	require.Len(t, events[1].issues, 1)
	assert.Equal(t, seymour.AnomalyUnknownStatus, events[1].issues[0].Type)
	assert.Equal(t, uint64(2), lm.stats.Snapshot().ProtocolErrors)
}

func TestLinkMonitor_MotorCountUsesSystemInfo(t *testing.T) {
	lm := newLinkMonitor()

	// Before system info is seen there is nothing to compare against
	events := collect(lm, "[01P3,1,2,3]")
	require.Len(t, events, 1)
	assert.Empty(t, events[0].issues)

	events = collect(lm, "[01Y03,SN1,Fixed,100,56,TB][01P3,1,2,3][01P2,1,2]")
	require.Len(t, events, 3)
	assert.Empty(t, events[0].issues)
	require.Len(t, events[1].issues, 1)
	assert.Equal(t, seymour.AnomalyMotorCountMismatch, events[1].issues[0].Type)
	assert.Empty(t, events[2].issues)
}

func TestLinkClosed(t *testing.T) {
	assert.True(t, linkClosed(io.EOF))
	assert.True(t, linkClosed(io.ErrClosedPipe))
	assert.True(t, linkClosed(transport.ErrWebSocketClosed))
	assert.False(t, linkClosed(errors.New("read timeout")))
}
