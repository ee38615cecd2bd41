// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

// Package transport owns one byte-stream connection to a controller. It
// runs the read loop that turns bytes into frames and serializes writes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/johncarey70/seymour/pkg/seymour"
)

// FrameHandler receives every frame decoded from one read, in wire order.
type FrameHandler func(frames []*seymour.Frame)

// DisconnectHandler is called once when the transport goes down. cause is
// nil when Close was called.
type DisconnectHandler func(cause error)

// Config configures a Transport.
type Config struct {
	Logger         *logrus.Entry
	Stats          *seymour.Statistics
	ReadBufferSize int
}

// Transport runs the read loop and write primitive over a Connection.
//
// Thread Safety:
//   - Write and Close are safe for concurrent use.
//   - Handlers run on the read loop goroutine, or on the goroutine that
//     detected the failure.
type Transport struct {
	conn  Connection
	log   *logrus.Entry
	stats *seymour.Statistics

	readBufferSize int
	onFrames       FrameHandler
	onDisconnect   DisconnectHandler

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
	closeErr  error
}

// New wraps conn. Call Start to begin reading.
func New(conn Connection, cfg Config) *Transport {
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	size := cfg.ReadBufferSize
	if size <= 0 {
		size = 256
	}
	return &Transport{
		conn:           conn,
		log:            log.WithField("component", "transport"),
		stats:          cfg.Stats,
		readBufferSize: size,
		done:           make(chan struct{}),
	}
}

// Start launches the read loop.
func (t *Transport) Start(onFrames FrameHandler, onDisconnect DisconnectHandler) {
	t.onFrames = onFrames
	t.onDisconnect = onDisconnect
	go t.readLoop()
}

func (t *Transport) readLoop() {
	decoder := seymour.NewDecoder()
	buf := make([]byte, t.readBufferSize)

	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			t.dispatch(decoder, buf[:n])
		}
		if err != nil {
			select {
			case <-t.done:
				// Closed locally; the read error is the close itself
			default:
				if errors.Is(err, io.EOF) {
					t.log.Warn("connection closed by peer")
				} else {
					t.log.WithError(err).Warn("read failed")
				}
				t.shutdown(err)
			}
			return
		}
	}
}

// dispatch decodes one read worth of bytes and hands complete frames on
// as a single batch.
func (t *Transport) dispatch(decoder *seymour.Decoder, data []byte) {
	var frames []*seymour.Frame
	for _, b := range data {
		frame, err := decoder.DecodeByte(b)
		if err != nil {
			t.stats.FrameReceived(err)
			t.log.WithError(err).Warn("dropping malformed frame")
			continue
		}
		if frame != nil {
			t.stats.FrameReceived(nil)
			t.log.WithField("frame", frame.String()).Debug("rx")
			frames = append(frames, frame)
		}
	}
	if len(frames) > 0 && t.onFrames != nil {
		t.onFrames(frames)
	}
}

// Write sends one encoded frame. Writes never interleave.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.Connected() {
		return fmt.Errorf("%w: transport closed", seymour.ErrConnection)
	}

	for written := 0; written < len(data); {
		n, err := t.conn.Write(data[written:])
		if err != nil {
			t.log.WithError(err).Warn("write failed")
			t.shutdown(err)
			return fmt.Errorf("%w: write: %v", seymour.ErrConnection, err)
		}
		written += n
	}

	t.stats.FrameSent()
	t.log.WithField("frame", string(data)).Debug("tx")
	return nil
}

// shutdown closes the connection once and reports the cause. It returns
// false if the transport was already down.
func (t *Transport) shutdown(cause error) bool {
	first := false
	t.closeOnce.Do(func() {
		first = true

		t.errMu.Lock()
		t.err = cause
		t.errMu.Unlock()

		close(t.done)
		t.closeErr = t.conn.Close()

		if t.onDisconnect != nil {
			t.onDisconnect(cause)
		}
	})
	return first
}

// Close releases the connection. It is idempotent.
func (t *Transport) Close() error {
	if !t.shutdown(nil) {
		return nil
	}
	return t.closeErr
}

// Connected reports whether the transport is still usable.
func (t *Transport) Connected() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Done is closed when the transport goes down.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Err returns the I/O error that took the link down, or nil.
func (t *Transport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}
