// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

// Package bridge exposes one masking controller on an MQTT broker.
//
// The bridge publishes availability, the full state snapshot and one topic
// per sensor, and turns messages on the command topics into controller
// operations. When the controller link drops it reconnects with
// exponential backoff and republishes.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/johncarey70/seymour/internal/config"
	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/controller"
	"github.com/johncarey70/seymour/pkg/seymour/state"
)

const (
	availabilityOnline  = "online"
	availabilityOffline = "offline"

	publishTimeout = 5 * time.Second
)

// Broker is the part of mqtt.Client the bridge uses.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Device is the controller surface the bridge drives. *controller.Controller
// implements it.
type Device interface {
	Setup(ctx context.Context) error
	Disconnect() error
	Done() <-chan struct{}
	Snapshot() state.Snapshot

	GetStatus(ctx context.Context) (seymour.RatioStatus, error)
	GetPositions(ctx context.Context) (state.MotorPositions, error)

	PressButton(ctx context.Context, key string) error
	Remote(ctx context.Context, cmd controller.RemoteCommand) error
	SelectRatio(ctx context.Context, ratioID int) error
	SelectMotor(motorID string) error
	SelectMovementMode(code seymour.MovementCode) error
}

// Bridge connects a Device to a Broker.
type Bridge struct {
	cfg     config.MQTTConfig
	broker  Broker
	log     *logrus.Entry
	changed chan struct{}

	mu         sync.Mutex
	topics     Topics
	fallbackID string
	subscribed string

	// subscriptions tracks command filters for restoring after a broker
	// reconnect; the client uses clean sessions.
	subscriptions map[string]mqtt.MessageHandler
}

// New creates a bridge. Pass Notify as the controller's update callback.
func New(cfg config.MQTTConfig, broker Broker, log *logrus.Entry) *Bridge {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bridge{
		cfg:        cfg,
		broker:     broker,
		log:        log.WithField("component", "bridge"),
		changed:    make(chan struct{}, 1),
		fallbackID: uuid.NewString(),

		subscriptions: make(map[string]mqtt.MessageHandler),
	}
}

// Open connects to the broker and returns a bridge bound to the client.
// Command subscriptions are restored each time the client reconnects.
func Open(cfg config.MQTTConfig, log *logrus.Entry) (*Bridge, mqtt.Client, error) {
	b := New(cfg, nil, log)
	client, err := Connect(cfg, log, func(c mqtt.Client) { b.RestoreSubscriptions(c) })
	if err != nil {
		return nil, nil, err
	}
	b.broker = client
	return b, client, nil
}

// RestoreSubscriptions subscribes every tracked command filter on broker.
func (b *Bridge) RestoreSubscriptions(broker Broker) {
	b.mu.Lock()
	subs := make(map[string]mqtt.MessageHandler, len(b.subscriptions))
	for filter, h := range b.subscriptions {
		subs[filter] = h
	}
	b.mu.Unlock()

	for filter, h := range subs {
		if err := b.subscribeFilter(broker, filter, h); err != nil {
			b.log.WithError(err).Warn("restoring subscription failed")
		}
	}
	if len(subs) > 0 {
		b.log.WithField("count", len(subs)).Info("subscriptions restored")
	}
}

func (b *Bridge) subscribeFilter(broker Broker, filter string, h mqtt.MessageHandler) error {
	token := broker.Subscribe(filter, byte(b.cfg.QoS), h)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe %s: timeout after %s", filter, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	return nil
}

// Notify marks the state dirty. It never blocks.
func (b *Bridge) Notify() {
	select {
	case b.changed <- struct{}{}:
	default:
	}
}

// Topics returns the topic tree for the current device.
func (b *Bridge) Topics() Topics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.topics
}

// identify picks the device id: the controller serial number, or a random
// id kept for the life of the bridge.
func (b *Bridge) identify(info seymour.SystemInfo) Topics {
	id := sanitizeTopicLevel(info.SerialNumber)
	if id == "" {
		id = b.fallbackID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = Topics{Prefix: b.cfg.TopicPrefix, DeviceID: id}
	return b.topics
}

func sanitizeTopicLevel(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}

// Run keeps the controller connected and published until ctx ends.
func (b *Bridge) Run(ctx context.Context, dev Device) error {
	delay := b.cfg.Reconnect.InitialDelay

	for {
		err := dev.Setup(ctx)
		if err == nil {
			delay = b.cfg.Reconnect.InitialDelay
			lost, serveErr := b.serve(ctx, dev)
			if serveErr != nil {
				_ = dev.Disconnect()
				return serveErr
			}
			if !lost {
				b.publishAvailability(availabilityOffline)
				return dev.Disconnect()
			}
			b.log.Warn("controller link lost, reconnecting")
		} else {
			if ctx.Err() != nil {
				return nil
			}
			b.log.WithError(err).WithField("retry_in", delay).Warn("controller setup failed")
		}

		b.publishAvailability(availabilityOffline)
		_ = dev.Disconnect()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = nextDelay(delay, b.cfg.Reconnect.MaxDelay)
	}
}

func nextDelay(cur, limit time.Duration) time.Duration {
	cur *= 2
	if cur > limit {
		cur = limit
	}
	return cur
}

// serve publishes until the link drops (lost=true) or ctx ends.
func (b *Bridge) serve(ctx context.Context, dev Device) (lost bool, err error) {
	snap := dev.Snapshot()
	topics := b.identify(snap.SystemInfo)
	b.log.WithField("device", topics.DeviceID).Info("controller ready")

	if err := b.subscribe(ctx, dev, topics); err != nil {
		return false, err
	}
	b.publishAvailability(availabilityOnline)
	b.publishSnapshot(topics, snap)

	var poll <-chan time.Time
	if b.cfg.PollInterval > 0 {
		ticker := time.NewTicker(b.cfg.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	done := dev.Done()
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case <-done:
			return true, nil
		case <-b.changed:
			b.publishSnapshot(topics, dev.Snapshot())
		case <-poll:
			if _, err := dev.GetStatus(ctx); err != nil {
				b.log.WithError(err).Debug("status poll failed")
			}
			if _, err := dev.GetPositions(ctx); err != nil {
				b.log.WithError(err).Debug("positions poll failed")
			}
		}
	}
}

func (b *Bridge) subscribe(ctx context.Context, dev Device, topics Topics) error {
	b.mu.Lock()
	already := b.subscribed == topics.DeviceID
	b.mu.Unlock()
	if already {
		return nil
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				b.log.WithField("topic", msg.Topic()).WithField("panic", r).Error("command handler panicked")
			}
		}()
		if err := b.handleCommand(ctx, dev, topics, msg.Topic(), msg.Payload()); err != nil {
			b.log.WithError(err).WithField("topic", msg.Topic()).Warn("command failed")
		}
	}

	subs := make(map[string]mqtt.MessageHandler)
	for _, filter := range topics.Commands() {
		if err := b.subscribeFilter(b.broker, filter, handler); err != nil {
			return err
		}
		subs[filter] = handler
	}

	b.mu.Lock()
	b.subscribed = topics.DeviceID
	b.subscriptions = subs
	b.mu.Unlock()
	return nil
}

// handleCommand maps one command message onto a controller operation.
func (b *Bridge) handleCommand(ctx context.Context, dev Device, topics Topics, topic string, payload []byte) error {
	value := strings.TrimSpace(string(payload))

	if key, ok := topics.buttonKey(topic); ok {
		return dev.PressButton(ctx, key)
	}

	switch topic {
	case topics.RemoteSet():
		cmd, err := controller.ParseRemoteCommand(strings.ToLower(value))
		if err != nil {
			return err
		}
		return dev.Remote(ctx, cmd)

	case topics.RatioSet():
		id, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: ratio %q is not a number", seymour.ErrValidation, value)
		}
		return dev.SelectRatio(ctx, id)

	case topics.MotorSet():
		return dev.SelectMotor(value)

	case topics.MovementSet():
		code := seymour.MovementCode(strings.ToUpper(value))
		if strings.EqualFold(value, "none") {
			code = seymour.MovementNone
		}
		return dev.SelectMovementMode(code)
	}

	return fmt.Errorf("%w: no command on topic %s", seymour.ErrValidation, topic)
}

func (b *Bridge) publishSnapshot(topics Topics, snap state.Snapshot) {
	payload, err := EncodeState(b.cfg.PayloadFormat, snap)
	if err != nil {
		b.log.WithError(err).Error("encoding state")
		return
	}
	b.publish(topics.State(), payload)

	for key, value := range sensorValues(state.Sensors(snap.SystemInfo), snap) {
		b.publish(topics.Sensor(key), []byte(value))
	}
}

func (b *Bridge) publishAvailability(status string) {
	topics := b.Topics()
	if topics.DeviceID == "" {
		return
	}
	b.publish(topics.Availability(), []byte(status))
}

func (b *Bridge) publish(topic string, payload []byte) {
	token := b.broker.Publish(topic, byte(b.cfg.QoS), b.cfg.Retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		b.log.WithField("topic", topic).Warn("publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		b.log.WithError(err).WithField("topic", topic).Warn("publish failed")
	}
}

// ErrBrokerUnavailable is returned when the initial broker connection fails.
var ErrBrokerUnavailable = errors.New("mqtt broker unavailable")

// Connect opens the broker connection described by cfg. The client id
// defaults to a random "seymour-<uuid>". onConnect, if set, runs after the
// first connection and after every automatic reconnect.
func Connect(cfg config.MQTTConfig, log *logrus.Entry, onConnect mqtt.OnConnectHandler) (mqtt.Client, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "mqtt")

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "seymour-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(cfg.Reconnect.MaxDelay)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	// Controller operations block for up to the request timeout
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.WithField("broker", cfg.Broker).Info("connected to broker")
		if onConnect != nil {
			onConnect(c)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("broker connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("%w: %s: timeout", ErrBrokerUnavailable, cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBrokerUnavailable, cfg.Broker, err)
	}
	return client, nil
}
