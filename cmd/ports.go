// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/johncarey70/seymour/internal/discovery"
)

var (
	portsProbe   bool
	portsTimeout int
)

var portsCmd = &cobra.Command{
	Use:     "ports",
	Aliases: []string{"discovery"},
	Short:   "List serial ports and find controllers on them",
	Long: `List the serial ports on this machine with their USB details.

With --probe each port is opened at the configured baud rate and sent a
system info query ([01Y]). Ports that answer are reported with the
controller's serial number, screen model and mask ids.

Examples:
  seymour ports
  seymour ports --probe --timeout 3

Exit codes:
  0 - Ports listed (with --probe: at least one controller found)
  1 - No controller answered
  2 - Ports could not be listed`,
	Args: cobra.NoArgs,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVar(&portsProbe, "probe", false, "Send a system info query to each port")
	portsCmd.Flags().IntVar(&portsTimeout, "timeout", 2, "Timeout in seconds for each probe")
	addOutputFlag(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := discovery.Ports()
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	results := make([]discovery.Result, 0, len(ports))
	found := 0
	prober := discovery.Prober{
		Baud:    cfg.Serial.Baud,
		Address: cfg.Serial.Address,
		Timeout: time.Duration(portsTimeout) * time.Second,
		Logger:  logrus.NewEntry(logger),
	}
	for _, p := range ports {
		if !portsProbe {
			results = append(results, discovery.Result{Port: p})
			continue
		}
		res := prober.Probe(cmd.Context(), p)
		if res.Found() {
			found++
		}
		results = append(results, res)
	}

	if err := render(os.Stdout, results, func(w io.Writer) { printPorts(w, results) }); err != nil {
		return err
	}

	if portsProbe && found == 0 {
		return &exitError{code: 1, err: fmt.Errorf("no controller answered on %d port(s)", len(ports))}
	}
	return nil
}

func printPorts(w io.Writer, results []discovery.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No serial ports found.")
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s\n", r.Name)
		if r.IsUSB {
			fmt.Fprintf(w, "  USB:       %s:%s %s\n", r.VID, r.PID, r.Product)
			if r.SerialNumber != "" {
				fmt.Fprintf(w, "  USB S/N:   %s\n", r.SerialNumber)
			}
		}
		switch {
		case r.Found():
			fmt.Fprintf(w, "  Controller: %s (%s, masks %s)\n", r.ID, r.Info.ScreenModel, r.Info.MaskIDs)
		case r.ProbeErr != "":
			fmt.Fprintf(w, "  No answer:  %s\n", r.ProbeErr)
		}
	}
}
