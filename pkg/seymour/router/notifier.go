// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package router

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Notifier delivers "state changed" signals to a callback on its own
// goroutine. Signals raised while the callback runs collapse into one
// further call, so a slow consumer sees the latest state without a backlog.
type Notifier struct {
	fn     func()
	log    *logrus.Entry
	signal chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewNotifier starts a notifier. fn may be nil, in which case Signal is a
// no-op.
func NewNotifier(fn func(), log *logrus.Entry) *Notifier {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	n := &Notifier{
		fn:     fn,
		log:    log.WithField("component", "notifier"),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if fn != nil {
		n.wg.Add(1)
		go n.run()
	}
	return n
}

// Signal schedules one callback. It never blocks.
func (n *Notifier) Signal() {
	if n.fn == nil {
		return
	}
	select {
	case n.signal <- struct{}{}:
	default:
	}
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case <-n.signal:
			n.invoke()
		}
	}
}

func (n *Notifier) invoke() {
	defer func() {
		if r := recover(); r != nil {
			n.log.WithField("panic", r).Error("update callback panicked")
		}
	}()
	n.fn()
}

// Close stops the notifier and waits for a running callback to return.
// It must not be called from inside the callback.
func (n *Notifier) Close() {
	n.once.Do(func() {
		close(n.done)
	})
	n.wg.Wait()
}
