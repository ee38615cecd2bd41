// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

// Package config loads the seymour tool configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// an optional .env file, then SEYMOUR_* environment variables. Command-line
// flags are applied last by the cmd package.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/controller"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SEYMOUR_"

// Config is the root configuration structure.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Requests  RequestsConfig  `yaml:"requests"`
	Logging   LoggingConfig   `yaml:"logging"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// SerialConfig selects the RS-232 link.
type SerialConfig struct {
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
	Address string `yaml:"address"`
}

// WebSocketConfig selects a remote serial bridge instead of a local port.
type WebSocketConfig struct {
	URL           string `yaml:"url"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	SkipSSLVerify bool   `yaml:"skip_ssl_verify"`
}

// TimeoutsConfig holds the controller deadlines.
type TimeoutsConfig struct {
	Connect   time.Duration `yaml:"connect"`
	Request   time.Duration `yaml:"request"`
	ReadyPoll time.Duration `yaml:"ready_poll"`
}

// RequestsConfig controls request concurrency.
type RequestsConfig struct {
	// Exclusive queues requests so only one is on the wire at a time.
	Exclusive bool `yaml:"exclusive"`
}

// LoggingConfig controls the logrus logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MQTTConfig configures the home automation bridge.
type MQTTConfig struct {
	Broker        string          `yaml:"broker"`
	ClientID      string          `yaml:"client_id"`
	Username      string          `yaml:"username"`
	Password      string          `yaml:"password"`
	TopicPrefix   string          `yaml:"topic_prefix"`
	QoS           int             `yaml:"qos"`
	Retain        bool            `yaml:"retain"`
	PayloadFormat string          `yaml:"payload_format"`
	PollInterval  time.Duration   `yaml:"poll_interval"`
	Reconnect     ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig is an exponential backoff window.
type ReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// Payload formats for bridge state messages
const (
	PayloadJSON = "json"
	PayloadCBOR = "cbor"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud:    seymour.DefaultBaudRate,
			Address: seymour.DefaultAddress,
		},
		Timeouts: TimeoutsConfig{
			Connect:   controller.DefaultConnectTimeout,
			Request:   controller.DefaultRequestTimeout,
			ReadyPoll: controller.DefaultReadyPollInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		MQTT: MQTTConfig{
			Broker:        "tcp://localhost:1883",
			TopicPrefix:   "seymour",
			QoS:           1,
			Retain:        true,
			PayloadFormat: PayloadJSON,
			PollInterval:  30 * time.Second,
			Reconnect: ReconnectConfig{
				InitialDelay: time.Second,
				MaxDelay:     30 * time.Second,
			},
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
// A .env file in the working directory is loaded when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Missing .env is normal
	_ = godotenv.Load()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %q is not a number", EnvPrefix, name, v))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %q is not a boolean", EnvPrefix, name, v))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %q is not a duration", EnvPrefix, name, v))
				return
			}
			*dst = d
		}
	}

	// Serial
	str("PORT", &cfg.Serial.Port)
	num("BAUD", &cfg.Serial.Baud)
	str("ADDRESS", &cfg.Serial.Address)

	// WebSocket
	str("URL", &cfg.WebSocket.URL)
	str("USERNAME", &cfg.WebSocket.Username)
	str("PASSWORD", &cfg.WebSocket.Password)
	flag("NO_SSL_VERIFY", &cfg.WebSocket.SkipSSLVerify)

	// Timeouts
	duration("CONNECT_TIMEOUT", &cfg.Timeouts.Connect)
	duration("REQUEST_TIMEOUT", &cfg.Timeouts.Request)
	flag("EXCLUSIVE", &cfg.Requests.Exclusive)

	// Logging
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	// MQTT
	str("MQTT_BROKER", &cfg.MQTT.Broker)
	str("MQTT_CLIENT_ID", &cfg.MQTT.ClientID)
	str("MQTT_USERNAME", &cfg.MQTT.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Password)
	str("MQTT_TOPIC_PREFIX", &cfg.MQTT.TopicPrefix)
	str("MQTT_PAYLOAD_FORMAT", &cfg.MQTT.PayloadFormat)

	return errors.Join(errs...)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	if err := seymour.ValidateAddress(c.Serial.Address); err != nil {
		errs = append(errs, fmt.Errorf("serial.address: %w", err))
	}

	if c.WebSocket.URL != "" {
		u, err := url.Parse(c.WebSocket.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("websocket.url %q must be a ws:// or wss:// URL", c.WebSocket.URL))
		}
	}

	if c.Timeouts.Connect <= 0 {
		errs = append(errs, errors.New("timeouts.connect must be positive"))
	}
	if c.Timeouts.Request <= 0 {
		errs = append(errs, errors.New("timeouts.request must be positive"))
	}
	if c.Timeouts.ReadyPoll <= 0 {
		errs = append(errs, errors.New("timeouts.ready_poll must be positive"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, errors.New("mqtt.qos must be 0, 1, or 2"))
	}
	switch c.MQTT.PayloadFormat {
	case PayloadJSON, PayloadCBOR:
	default:
		errs = append(errs, fmt.Errorf("mqtt.payload_format %q must be %s or %s", c.MQTT.PayloadFormat, PayloadJSON, PayloadCBOR))
	}
	if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
		errs = append(errs, fmt.Errorf("mqtt.topic_prefix %q must be non-empty without wildcards", c.MQTT.TopicPrefix))
	}
	if c.MQTT.Reconnect.InitialDelay <= 0 || c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, errors.New("mqtt.reconnect delays must be positive with max_delay >= initial_delay"))
	}

	return errors.Join(errs...)
}

// Controller returns the controller settings for this configuration. The
// caller supplies the dialer and logger.
func (c *Config) Controller() controller.Config {
	return controller.Config{
		Port:              c.Serial.Port,
		BaudRate:          c.Serial.Baud,
		Address:           c.Serial.Address,
		ConnectTimeout:    c.Timeouts.Connect,
		RequestTimeout:    c.Timeouts.Request,
		ReadyPollInterval: c.Timeouts.ReadyPoll,
		Exclusive:         c.Requests.Exclusive,
	}
}
