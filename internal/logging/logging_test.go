// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johncarey70/seymour/internal/config"
)

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	log.WithField("component", "test").Debug("hello")
	assert.Contains(t, buf.String(), "component=test")
	assert.Contains(t, buf.String(), "hello")
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	log.WithField("port", "/dev/ttyUSB0").Info("connected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connected", entry["msg"])
	assert.Equal(t, "/dev/ttyUSB0", entry["port"])
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log := NewWithOutput(config.LoggingConfig{Level: "chatty"}, io.Discard)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestNew_Off(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(config.LoggingConfig{Level: "off"}, &buf)
	log.Error("should not appear")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "off", "none"} {
		assert.NoError(t, ParseLevel(name), name)
	}
	assert.Error(t, ParseLevel("loud"))
}
