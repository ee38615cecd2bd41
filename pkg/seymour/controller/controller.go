// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

// Package controller is the client for one Seymour masking controller.
//
// A Controller owns the transport, the pending-request router and the
// state model. Each operation validates its arguments, sends one frame,
// waits for the matching reply and folds it into state before returning.
// Frames the controller sends on its own (position and status pushes) are
// applied as they arrive, and the update callback is signalled once per
// read batch that changed anything.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/router"
	"github.com/johncarey70/seymour/pkg/seymour/state"
	"github.com/johncarey70/seymour/pkg/seymour/transport"
)

// UpdateFunc is called with no arguments after state changed. It runs on
// a dedicated goroutine, never inside a caller's request.
type UpdateFunc func()

// Dialer opens the byte stream to the controller.
type Dialer func(ctx context.Context) (transport.Connection, error)

// Default timeouts
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultRequestTimeout    = 3 * time.Second
	DefaultReadyPollInterval = 500 * time.Millisecond
)

// Config configures a Controller.
type Config struct {
	Port     string
	BaudRate int
	Address  string

	ConnectTimeout    time.Duration
	RequestTimeout    time.Duration
	ReadyPollInterval time.Duration

	// Exclusive allows one request in flight at a time across all keys.
	// Otherwise different commands may be outstanding together and a
	// duplicate command fails with ErrBusy.
	Exclusive bool

	// Dial overrides the serial port, e.g. for the WebSocket bridge.
	Dial Dialer

	Logger *logrus.Entry
}

// DefaultConfig returns the configuration for a controller on port.
func DefaultConfig(port string) Config {
	return Config{
		Port:              port,
		BaudRate:          seymour.DefaultBaudRate,
		Address:           seymour.DefaultAddress,
		ConnectTimeout:    DefaultConnectTimeout,
		RequestTimeout:    DefaultRequestTimeout,
		ReadyPollInterval: DefaultReadyPollInterval,
	}
}

// Controller is the handle for one masking controller.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Controller struct {
	cfg      Config
	log      *logrus.Entry
	stats    *seymour.Statistics
	state    *state.Model
	router   *router.Router
	notifier *router.Notifier

	// exclusive is a one-slot semaphore used when cfg.Exclusive is set.
	exclusive chan struct{}

	// connectMu serializes Connect so a dial can run without holding mu.
	connectMu sync.Mutex

	mu     sync.Mutex
	tr     *transport.Transport
	closed bool
}

// New creates a controller for the serial port with default settings.
// onUpdate may be nil.
func New(port string, onUpdate UpdateFunc) *Controller {
	return NewWithConfig(DefaultConfig(port), onUpdate)
}

// NewWithConfig creates a controller. Zero config fields take defaults.
func NewWithConfig(cfg Config, onUpdate UpdateFunc) *Controller {
	def := DefaultConfig(cfg.Port)
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = def.BaudRate
	}
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.ReadyPollInterval <= 0 {
		cfg.ReadyPollInterval = def.ReadyPollInterval
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("port", cfg.Port)

	c := &Controller{
		cfg:       cfg,
		log:       log.WithField("component", "controller"),
		stats:     seymour.NewStatistics(),
		state:     state.New(),
		exclusive: make(chan struct{}, 1),
	}
	if cfg.Dial == nil {
		c.cfg.Dial = c.dialSerial
	}

	c.notifier = router.NewNotifier(onUpdate, log)
	c.router = router.New(router.Config{
		Handlers: map[seymour.Command]router.ApplyFunc{
			seymour.CmdPositions:   c.applyPositions,
			seymour.CmdStatus:      c.applyStatus,
			seymour.CmdSelectRatio: c.applyStatus,
		},
		Notify: c.notifier.Signal,
		Logger: log,
		Stats:  c.stats,
	})
	return c
}

func (c *Controller) dialSerial(ctx context.Context) (transport.Connection, error) {
	if c.cfg.Port == "" {
		return nil, fmt.Errorf("%w: no serial port configured", seymour.ErrConnection)
	}
	return transport.OpenSerial(c.cfg.Port, c.cfg.BaudRate)
}

// Connect opens the link. With readInfo it also queries system info before
// returning, and a silent controller fails with ErrConnection wrapping
// ErrTimeout. Connecting an already connected controller is a no-op.
func (c *Controller) Connect(ctx context.Context, readInfo bool) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%w: controller closed", seymour.ErrConnection)
	}
	if c.tr != nil && c.tr.Connected() {
		c.mu.Unlock()
		return nil
	}
	prev := c.tr
	c.tr = nil
	c.mu.Unlock()

	// Waits for a shutdown still running on the old link
	if prev != nil {
		_ = prev.Close()
	}

	conn, err := c.cfg.Dial(ctx)
	if err != nil {
		if errors.Is(err, seymour.ErrConnection) {
			return err
		}
		return fmt.Errorf("%w: %v", seymour.ErrConnection, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%w: controller closed", seymour.ErrConnection)
	}
	tr := transport.New(conn, transport.Config{Logger: c.log, Stats: c.stats})
	c.router.Open()
	tr.Start(c.router.Dispatch, func(cause error) { c.handleDisconnect(tr, cause) })
	c.tr = tr
	c.mu.Unlock()

	c.log.Info("connected")

	if !readInfo {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if _, err := c.GetSystemInfo(ctx); err != nil {
		_ = tr.Close()
		if errors.Is(err, seymour.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: controller did not answer: %w", seymour.ErrConnection, err)
		}
		return err
	}
	return nil
}

// handleDisconnect runs once per transport, on the goroutine that saw the
// failure or called Close. A link that has already been replaced must not
// fail requests made on its successor.
func (c *Controller) handleDisconnect(tr *transport.Transport, cause error) {
	c.mu.Lock()
	replaced := c.tr != nil && c.tr != tr
	c.mu.Unlock()

	if cause != nil {
		c.log.WithError(cause).Warn("link down")
	}
	if replaced {
		return
	}
	if cause == nil {
		c.router.Fail(fmt.Errorf("%w: transport closed", seymour.ErrConnection))
	} else {
		c.router.Fail(fmt.Errorf("%w: link down: %v", seymour.ErrConnection, cause))
	}
	c.notifier.Signal()
}

// WaitReady polls until the ratio table and positions are populated. It
// gives up after the connect timeout with ErrTimeout.
func (c *Controller) WaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.ReadyPollInterval)
	defer ticker.Stop()

	for {
		if c.state.IsInitialized() {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: controller not initialized within %s", seymour.ErrTimeout, c.cfg.ConnectTimeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Setup connects with identity, loads settings, status and positions, and
// waits until the model is initialized. Any failure aborts setup.
func (c *Controller) Setup(ctx context.Context) error {
	if err := c.Connect(ctx, true); err != nil {
		return err
	}
	if _, err := c.GetSettingsInfo(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if _, err := c.GetStatus(ctx); err != nil {
		return fmt.Errorf("load status: %w", err)
	}
	if _, err := c.GetPositions(ctx); err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	return c.WaitReady(ctx)
}

// Disconnect closes the current link but keeps the controller usable; a
// later Connect opens a new one. Cached state is kept.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	tr := c.tr
	c.tr = nil
	c.mu.Unlock()

	if tr == nil {
		return nil
	}
	return tr.Close()
}

// Close releases the port and stops update notifications. It is
// idempotent. A closed controller cannot reconnect.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	tr := c.tr
	c.tr = nil
	c.mu.Unlock()

	var err error
	if tr != nil {
		err = tr.Close()
	}
	c.notifier.Close()
	return err
}

// Connected reports whether the link is up.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr != nil && c.tr.Connected()
}

// Done returns a channel closed when the current link goes down, or nil
// when not connected.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tr == nil {
		return nil
	}
	return c.tr.Done()
}

func (c *Controller) transport() (*transport.Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%w: controller closed", seymour.ErrConnection)
	}
	if c.tr == nil || !c.tr.Connected() {
		return nil, fmt.Errorf("%w: not connected", seymour.ErrConnection)
	}
	return c.tr, nil
}

// request encodes, sends and awaits one frame. apply folds the reply into
// state on the dispatch goroutine.
func (c *Controller) request(ctx context.Context, frame *seymour.Frame, apply router.ApplyFunc) (*seymour.Frame, error) {
	data, err := seymour.EncodeFrame(frame)
	if err != nil {
		return nil, err
	}

	tr, err := c.transport()
	if err != nil {
		return nil, err
	}

	if c.cfg.Exclusive {
		select {
		case c.exclusive <- struct{}{}:
			defer func() { <-c.exclusive }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	req, err := c.router.Register(router.KeyOf(frame), apply)
	if err != nil {
		return nil, err
	}

	if err := tr.Write(ctx, data); err != nil {
		c.router.Cancel(req)
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"key":     req.Key().String(),
		"pending": c.router.Pending(),
	}).Debug("awaiting reply")
	return c.router.Await(ctx, req, c.cfg.RequestTimeout)
}

// ============================================================
// Read accessors
// ============================================================

// SystemInfo returns the cached controller identity.
func (c *Controller) SystemInfo() seymour.SystemInfo {
	return c.state.SystemInfo()
}

// Settings returns the cached ratio table and selections.
func (c *Controller) Settings() state.MaskRatioSettings {
	return c.state.Settings()
}

// Positions returns the cached motor positions.
func (c *Controller) Positions() state.MotorPositions {
	return c.state.Positions()
}

// Status returns the cached ratio status.
func (c *Controller) Status() seymour.RatioStatus {
	return c.state.Status()
}

// Snapshot returns a consistent copy of all cached state.
func (c *Controller) Snapshot() state.Snapshot {
	return c.state.Snapshot()
}

// IsInitialized reports num_motors > 0 and a non-empty ratio table.
func (c *Controller) IsInitialized() bool {
	return c.state.IsInitialized()
}

// Statistics returns link counters.
func (c *Controller) Statistics() seymour.StatisticsSnapshot {
	return c.stats.Snapshot()
}

// Address returns the controller's bus address.
func (c *Controller) Address() string {
	return c.cfg.Address
}

// Port returns the configured port.
func (c *Controller) Port() string {
	return c.cfg.Port
}
