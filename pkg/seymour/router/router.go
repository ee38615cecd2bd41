// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

// Package router correlates decoded frames with pending requests.
//
// The protocol carries no request identifiers, so at most one request per
// (command, address) key may be outstanding. A frame that matches a pending
// key resolves it; any other frame is unsolicited and goes to the state
// updater registered for its command.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/johncarey70/seymour/pkg/seymour"
)

// Key identifies a request slot.
type Key struct {
	Command seymour.Command
	Address string
}

// KeyOf returns the slot a frame belongs to.
func KeyOf(f *seymour.Frame) Key {
	return Key{Command: f.Command(), Address: f.Address()}
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", seymour.FormatCommand(k.Command), k.Address)
}

// ApplyFunc folds a reply into state. It runs on the dispatch goroutine and
// reports whether anything changed. An error marks the reply unparseable.
type ApplyFunc func(f *seymour.Frame) (changed bool, err error)

// Config configures a Router.
type Config struct {
	// Handlers apply unsolicited frames, keyed by command.
	Handlers map[seymour.Command]ApplyFunc

	// Notify is called at most once per dispatch pass when state changed.
	// It must not block.
	Notify func()

	Logger *logrus.Entry
	Stats  *seymour.Statistics
}

// Request is one pending entry.
type Request struct {
	key   Key
	apply ApplyFunc
	done  chan result
}

// Key returns the slot the request occupies.
func (r *Request) Key() Key {
	return r.key
}

type result struct {
	frame *seymour.Frame
	err   error
}

// Router holds the pending table.
//
// Thread Safety:
//   - Register, Await, Cancel and Fail are safe for concurrent use.
//   - Dispatch is called from a single goroutine (the transport read loop).
type Router struct {
	handlers map[seymour.Command]ApplyFunc
	notify   func()
	log      *logrus.Entry
	stats    *seymour.Statistics

	mu      sync.Mutex
	pending map[Key]*Request
	down    error
}

// New creates a router. It starts open.
func New(cfg Config) *Router {
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Router{
		handlers: cfg.Handlers,
		notify:   cfg.Notify,
		log:      log.WithField("component", "router"),
		stats:    cfg.Stats,
		pending:  make(map[Key]*Request),
	}
}

// Register claims the slot for key. It fails with ErrBusy when the slot is
// taken and with the failure cause after Fail until Open is called.
func (r *Router) Register(key Key, apply ApplyFunc) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.down != nil {
		return nil, r.down
	}
	if _, taken := r.pending[key]; taken {
		r.stats.Busy()
		return nil, fmt.Errorf("%w: %s", seymour.ErrBusy, key)
	}

	req := &Request{key: key, apply: apply, done: make(chan result, 1)}
	r.pending[key] = req
	return req, nil
}

// Await blocks until req resolves, ctx ends or timeout elapses. On timeout
// the slot is freed and the error wraps ErrTimeout; the link is not
// considered down.
func (r *Router) Await(ctx context.Context, req *Request, timeout time.Duration) (*seymour.Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-req.done:
		return res.frame, res.err

	case <-timer.C:
		if !r.remove(req) {
			// Resolved while the timer fired
			res := <-req.done
			return res.frame, res.err
		}
		r.stats.Timeout()
		r.log.WithField("key", req.key.String()).Warn("request timed out")
		return nil, fmt.Errorf("%w: %s after %s", seymour.ErrTimeout, req.key, timeout)

	case <-ctx.Done():
		if !r.remove(req) {
			res := <-req.done
			return res.frame, res.err
		}
		return nil, ctx.Err()
	}
}

// Cancel frees req's slot without resolving it.
func (r *Router) Cancel(req *Request) {
	r.remove(req)
}

func (r *Router) remove(req *Request) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[req.key] != req {
		return false
	}
	delete(r.pending, req.key)
	return true
}

func (r *Router) take(key Key) *Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := r.pending[key]
	if req != nil {
		delete(r.pending, key)
	}
	return req
}

// Dispatch routes one read batch. Apply functions run here, before the
// waiting caller is released, so callers observe updated state.
func (r *Router) Dispatch(frames []*seymour.Frame) {
	changed := false

	for _, frame := range frames {
		if req := r.take(KeyOf(frame)); req != nil {
			var err error
			if req.apply != nil {
				var c bool
				c, err = req.apply(frame)
				changed = changed || c
			}
			if err != nil {
				r.stats.ProtocolError()
			}
			req.done <- result{frame: frame, err: err}
			continue
		}

		handler, ok := r.handlers[frame.Command()]
		if !ok {
			r.stats.Unsolicited(true)
			r.log.WithField("frame", frame.String()).Debug("dropping unsolicited frame")
			continue
		}

		r.stats.Unsolicited(false)
		c, err := handler(frame)
		if err != nil {
			r.stats.ProtocolError()
			r.log.WithError(err).WithField("frame", frame.String()).Warn("ignoring unparseable unsolicited frame")
			continue
		}
		changed = changed || c
	}

	if changed && r.notify != nil {
		r.notify()
	}
}

// Fail resolves every pending request with cause and rejects new
// registrations with it until Open is called.
func (r *Router) Fail(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.down = cause
	for key, req := range r.pending {
		delete(r.pending, key)
		req.done <- result{err: cause}
	}
}

// Open accepts registrations again after Fail.
func (r *Router) Open() {
	r.mu.Lock()
	r.down = nil
	r.mu.Unlock()
}

// Pending returns the number of outstanding requests.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
