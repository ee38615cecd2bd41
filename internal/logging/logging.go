// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/johncarey70/seymour/internal/config"
)

// TimestampFormat is used by the text formatter.
const TimestampFormat = "2006-01-02 15:04:05"

// New returns a logger writing to stderr. Level "off" or "none" discards
// all output; an unknown level falls back to info.
func New(cfg config.LoggingConfig) *logrus.Logger {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput is New with an explicit writer.
func NewWithOutput(cfg config.LoggingConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	switch strings.ToLower(cfg.Level) {
	case "off", "none":
		logger.SetOutput(io.Discard)
	default:
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: TimestampFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: TimestampFormat,
		})
	}
	return logger
}

// ParseLevel validates a level name, accepting "off" and "none".
func ParseLevel(name string) error {
	switch strings.ToLower(name) {
	case "off", "none":
		return nil
	}
	if _, err := logrus.ParseLevel(name); err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	return nil
}
