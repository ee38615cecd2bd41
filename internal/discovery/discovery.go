// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

// Package discovery finds masking controllers on local serial ports.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial/enumerator"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/controller"
	"github.com/johncarey70/seymour/pkg/seymour/transport"
)

// DefaultProbeTimeout bounds the [01Y] probe of one port.
const DefaultProbeTimeout = 2 * time.Second

// Port is one serial port as reported by the OS.
type Port struct {
	Name         string `json:"name" yaml:"name"`
	IsUSB        bool   `json:"is_usb" yaml:"is_usb"`
	VID          string `json:"vid,omitempty" yaml:"vid,omitempty"`
	PID          string `json:"pid,omitempty" yaml:"pid,omitempty"`
	SerialNumber string `json:"usb_serial,omitempty" yaml:"usb_serial,omitempty"`
	Product      string `json:"product,omitempty" yaml:"product,omitempty"`
}

// Result is a port and, when probed, what answered on it.
type Result struct {
	Port
	// ID identifies the controller: its serial number, else the USB
	// serial number, else a random UUID.
	ID       string              `json:"id,omitempty" yaml:"id,omitempty"`
	Info     *seymour.SystemInfo `json:"system_info,omitempty" yaml:"system_info,omitempty"`
	ProbeErr string              `json:"probe_error,omitempty" yaml:"probe_error,omitempty"`
}

// Found reports whether a controller answered the probe.
func (r Result) Found() bool { return r.Info != nil }

// Ports lists the serial ports on this machine.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	ports := make([]Port, 0, len(details))
	for _, d := range details {
		ports = append(ports, Port{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}

// Prober opens a port for probing. OpenSerial is the default.
type Prober struct {
	Baud    int
	Address string
	Timeout time.Duration
	Dial    func(ctx context.Context, port string) (transport.Connection, error)
	Logger  *logrus.Entry
}

// Probe sends a system info query to port and waits for the reply.
func (p Prober) Probe(ctx context.Context, port Port) Result {
	res := Result{Port: port}

	dial := p.Dial
	if dial == nil {
		baud := p.Baud
		dial = func(_ context.Context, name string) (transport.Connection, error) {
			return transport.OpenSerial(name, baud)
		}
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	c := controller.NewWithConfig(controller.Config{
		Port:           port.Name,
		BaudRate:       p.Baud,
		Address:        p.Address,
		ConnectTimeout: timeout,
		Dial: func(ctx context.Context) (transport.Connection, error) {
			return dial(ctx, port.Name)
		},
		Logger: p.Logger,
	}, nil)
	defer c.Close()

	if err := c.Connect(ctx, true); err != nil {
		res.ProbeErr = err.Error()
		return res
	}
	info := c.SystemInfo()
	res.Info = &info
	res.ID = Identity(info.SerialNumber, port.SerialNumber)
	return res
}

// Identity picks a stable id for a controller.
func Identity(serialNumber, usbSerial string) string {
	if id := strings.TrimSpace(serialNumber); id != "" {
		return id
	}
	if id := strings.TrimSpace(usbSerial); id != "" {
		return id
	}
	return uuid.NewString()
}
