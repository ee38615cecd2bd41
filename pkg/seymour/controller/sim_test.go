// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package controller

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/transport"
)

// ============================================================
// Simulated controller
// ============================================================

// simController answers the wire protocol from the device end of a pipe.
type simController struct {
	mu        sync.Mutex
	conn      net.Conn
	info      seymour.SystemInfo
	ratios    map[int]seymour.RatioInfo
	positions []int
	status    seymour.RatioStatus
	jog       bool
	reportJog bool
	silent    map[seymour.Command]bool
	received  []string
}

func newSim() *simController {
	return &simController{
		info: seymour.SystemInfo{
			ProtocolVersion: "03",
			SerialNumber:    "SN1",
			ScreenModel:     "Retractable",
			Width:           100,
			Height:          56,
			MaskIDs:         "TBLR",
		},
		ratios: map[int]seymour.RatioInfo{
			1: {ID: 1, Label: "16:9", Width: 100, Height: 56, Diagonal: 114.7,
				Motors: map[int]seymour.MotorInfo{1: {}, 2: {}, 3: {}, 4: {}}},
			2: {ID: 2, Label: "2.35:1", Width: 100, Height: 42.5, Diagonal: 108.7,
				Motors: map[int]seymour.MotorInfo{1: {Position: 120}, 2: {Position: 120, Adjustment: -2}, 3: {}, 4: {}}},
		},
		positions: []int{10, 20, 30, 40},
		status:    seymour.RatioStatus{RatioID: 1, StatusCode: seymour.StatusIdle},
		silent:    make(map[seymour.Command]bool),
	}
}

func (s *simController) setSilent(cmd seymour.Command, silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent[cmd] = silent
}

func (s *simController) lastReceived() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) == 0 {
		return ""
	}
	return s.received[len(s.received)-1]
}

func (s *simController) serve(conn net.Conn) {
	s.conn = conn
	go func() {
		d := seymour.NewDecoder()
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			for _, b := range buf[:n] {
				frame, err := d.DecodeByte(b)
				if err != nil || frame == nil {
					continue
				}
				if reply := s.handle(frame); reply != nil {
					if _, err := conn.Write(reply); err != nil {
						return
					}
				}
			}
		}
	}()
}

func (s *simController) handle(f *seymour.Frame) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received = append(s.received, f.String())
	if s.silent[f.Command()] {
		return nil
	}

	var payload string
	switch f.Command() {
	case seymour.CmdSystemInfo:
		payload = seymour.FormatSystemInfo(s.info)
	case seymour.CmdSettings:
		payload = seymour.FormatSettings(s.ratios)
	case seymour.CmdPositions:
		payload = seymour.FormatPositions(s.positions)
	case seymour.CmdStatus:
		payload = seymour.FormatStatus(s.status)
	case seymour.CmdSelectRatio:
		id, _ := seymour.ParseRatioID(f.Payload())
		s.status = seymour.RatioStatus{RatioID: id, StatusCode: seymour.StatusMoving}
		payload = seymour.FormatStatus(s.status)
	case seymour.CmdMoveIn, seymour.CmdMoveOut, seymour.CmdHome, seymour.CmdHalt, seymour.CmdCalibrate:
		payload = f.Payload()[:1]
	case seymour.CmdToggleJog:
		s.jog = !s.jog
		if s.reportJog {
			payload = "0"
			if s.jog {
				payload = "1"
			}
		}
	case seymour.CmdUpdate:
		payload = f.Payload()
	default:
		return nil
	}

	data, err := seymour.Encode(f.Address(), f.Command(), payload)
	if err != nil {
		return nil
	}
	return data
}

// push writes raw bytes from the device as if it sent them unprompted.
func (s *simController) push(t *testing.T, raw string) {
	t.Helper()
	if _, err := s.conn.Write([]byte(raw)); err != nil {
		t.Fatalf("push failed: %v", err)
	}
}

// countingConn counts writes from the host.
type countingConn struct {
	net.Conn
	writes atomic.Int64
}

func (c *countingConn) Write(p []byte) (int, error) {
	c.writes.Add(1)
	return c.Conn.Write(p)
}

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type testRig struct {
	ctrl *Controller
	sim  *simController
	host *countingConn
	dev  net.Conn
}

func newRig(t *testing.T, onUpdate UpdateFunc) *testRig {
	t.Helper()

	host, dev := net.Pipe()
	rig := &testRig{sim: newSim(), host: &countingConn{Conn: host}, dev: dev}
	rig.sim.serve(dev)

	cfg := DefaultConfig("sim")
	cfg.RequestTimeout = 200 * time.Millisecond
	cfg.ConnectTimeout = time.Second
	cfg.ReadyPollInterval = 10 * time.Millisecond
	cfg.Logger = quietLogger()
	cfg.Dial = func(ctx context.Context) (transport.Connection, error) {
		return rig.host, nil
	}
	rig.ctrl = NewWithConfig(cfg, onUpdate)

	t.Cleanup(func() {
		_ = rig.ctrl.Close()
		_ = dev.Close()
	})
	return rig
}
