// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/johncarey70/seymour/internal/bridge"
	"github.com/johncarey70/seymour/pkg/seymour"
)

var mqttBroker string

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Publish controller state to an MQTT broker",
	Long: `Run the controller as a home automation device over MQTT.

The bridge keeps the controller connected, publishes its state and one
topic per sensor, and accepts ratio, motor, movement, remote and button
commands under the configured topic prefix. The link is re-established
with exponential backoff when it drops.

Broker settings come from the mqtt section of the config file or the
MQTT_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&mqttBroker, "broker", "", "MQTT broker URL (e.g., tcp://localhost:1883)")
}

func runBridge(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("broker") {
		cfg.MQTT.Broker = mqttBroker
	}
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("%w: no MQTT broker configured (--broker or MQTT_BROKER)", seymour.ErrValidation)
	}

	log := logrus.NewEntry(logger)

	b, client, err := bridge.Open(cfg.MQTT, log)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	defer client.Disconnect(250)

	ctrl, err := newController(b.Notify)
	if err != nil {
		return &exitError{code: exitCodeFor(err), err: err}
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"broker":     cfg.MQTT.Broker,
		"connection": connInfo(),
	}).Info("bridge starting")

	if err := b.Run(ctx, ctrl); err != nil && !errors.Is(err, ctx.Err()) {
		return err
	}
	log.Info("bridge stopped")
	return nil
}
