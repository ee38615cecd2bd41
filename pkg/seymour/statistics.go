// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

import (
	"fmt"
	"sync"
	"time"
)

// Statistics tracks link-level frame counters and rates. All methods are
// safe for concurrent use: the transport read loop and request callers
// update it from different goroutines.
type Statistics struct {
	mu sync.Mutex
	s  StatisticsSnapshot
}

// StatisticsSnapshot is a point-in-time copy of the counters.
type StatisticsSnapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	FramesReceived    uint64
	FramesSent        uint64
	MalformedFrames   uint64
	UnsolicitedFrames uint64
	DroppedFrames     uint64
	ProtocolErrors    uint64
	Timeouts          uint64
	BusyRejections    uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec received
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{s: StatisticsSnapshot{StartTime: now, LastUpdateTime: now}}
}

func (st *Statistics) update(fn func(s *StatisticsSnapshot)) {
	if st == nil {
		return
	}
	st.mu.Lock()
	fn(&st.s)
	st.s.LastUpdateTime = time.Now()
	st.mu.Unlock()
}

// FrameReceived counts a decoded frame, or a malformed one when err is non-nil
func (st *Statistics) FrameReceived(err error) {
	st.update(func(s *StatisticsSnapshot) {
		if err != nil {
			s.MalformedFrames++
			return
		}
		s.FramesReceived++
	})
}

// FrameSent counts a frame written to the link
func (st *Statistics) FrameSent() {
	st.update(func(s *StatisticsSnapshot) { s.FramesSent++ })
}

// Unsolicited counts a frame that matched no pending request. dropped is
// true when no state updater handles the frame type either.
func (st *Statistics) Unsolicited(dropped bool) {
	st.update(func(s *StatisticsSnapshot) {
		s.UnsolicitedFrames++
		if dropped {
			s.DroppedFrames++
		}
	})
}

// ProtocolError counts a reply that decoded but could not be parsed
func (st *Statistics) ProtocolError() {
	st.update(func(s *StatisticsSnapshot) { s.ProtocolErrors++ })
}

// Timeout counts a request that got no reply
func (st *Statistics) Timeout() {
	st.update(func(s *StatisticsSnapshot) { s.Timeouts++ })
}

// Busy counts a request rejected because its key was pending
func (st *Statistics) Busy() {
	st.update(func(s *StatisticsSnapshot) { s.BusyRejections++ })
}

// Snapshot returns a copy of the counters with rates calculated
func (st *Statistics) Snapshot() StatisticsSnapshot {
	st.mu.Lock()
	snap := st.s
	st.mu.Unlock()

	elapsed := time.Since(snap.StartTime).Seconds()
	if elapsed > 0 {
		snap.FrameRate = float64(snap.FramesReceived) / elapsed
		snap.ErrorRate = float64(snap.errorCount()) / elapsed
	}
	return snap
}

func (s StatisticsSnapshot) errorCount() uint64 {
	return s.MalformedFrames + s.ProtocolErrors + s.Timeouts
}

// String returns a formatted statistics summary
func (st *Statistics) String() string {
	return st.Snapshot().String()
}

// String returns a formatted statistics summary
func (s StatisticsSnapshot) String() string {
	total := s.FramesReceived + s.MalformedFrames
	var validPercent, malformedPercent float64
	if total > 0 {
		validPercent = float64(s.FramesReceived) * 100.0 / float64(total)
		malformedPercent = float64(s.MalformedFrames) * 100.0 / float64(total)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Frames Sent:     %8d\n", s.FramesSent)
	result += fmt.Sprintf("Frames Received: %8d (%.1f%%)\n", s.FramesReceived, validPercent)

	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.MalformedFrames, malformedPercent)
	}
	if s.UnsolicitedFrames > 0 {
		result += fmt.Sprintf("Unsolicited:     %8d\n", s.UnsolicitedFrames)
		if s.DroppedFrames > 0 {
			result += fmt.Sprintf("  Dropped:          %5d\n", s.DroppedFrames)
		}
	}
	if s.ProtocolErrors > 0 {
		result += fmt.Sprintf("Protocol Errors: %8d\n", s.ProtocolErrors)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	if s.BusyRejections > 0 {
		result += fmt.Sprintf("Busy Rejections: %8d\n", s.BusyRejections)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (st *Statistics) Reset() {
	now := time.Now()
	st.mu.Lock()
	st.s = StatisticsSnapshot{StartTime: now, LastUpdateTime: now}
	st.mu.Unlock()
}
