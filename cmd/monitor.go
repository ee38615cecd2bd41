// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/transport"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Aliases: []string{"error_detection"},
	Short:   "Watch the link for malformed frames and anomalous replies",
	Long: `Track frame errors, malformed data and anomalous replies with statistics.

This command listens passively and checks each frame for:
  - Malformed frames (truncated, oversized, bad address or command)
  - Replies that fail to parse (system info, ratio table, positions, status)
  - Anomalous content (unknown motors or status codes, negative positions,
    position reports that disagree with the mask ids)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// frameEvent is one outcome of feeding bytes to a linkMonitor.
type frameEvent struct {
	frame     *seymour.Frame
	decodeErr error
	issues    []seymour.ValidationError

	// synced is set on the first valid frame; skipped counts the bytes
	// discarded before it.
	synced  bool
	skipped uint64
}

// linkMonitor decodes and validates a passive byte stream. Decode errors
// before the first valid frame are noise from joining mid-frame and are
// not counted.
type linkMonitor struct {
	decoder      *seymour.Decoder
	stats        *seymour.Statistics
	synchronized bool
	info         seymour.SystemInfo
}

func newLinkMonitor() *linkMonitor {
	return &linkMonitor{
		decoder: seymour.NewDecoder(),
		stats:   seymour.NewStatistics(),
	}
}

func (lm *linkMonitor) feed(data []byte, emit func(frameEvent)) {
	for _, b := range data {
		frame, err := lm.decoder.DecodeByte(b)
		switch {
		case err != nil:
			if !lm.synchronized {
				continue
			}
			lm.stats.FrameReceived(err)
			emit(frameEvent{decodeErr: err})

		case frame != nil:
			ev := frameEvent{frame: frame}
			if !lm.synchronized {
				lm.synchronized = true
				ev.synced = true
				ev.skipped = lm.decoder.Discarded()
			}
			lm.stats.FrameReceived(nil)
			ev.issues = lm.validate(frame)
			if len(ev.issues) > 0 {
				lm.stats.ProtocolError()
			}
			emit(ev)
		}
	}
}

func (lm *linkMonitor) validate(frame *seymour.Frame) []seymour.ValidationError {
	issues := seymour.ValidateFrame(frame)
	if len(issues) > 0 || frame.Payload() == "" {
		return issues
	}
	switch frame.Command() {
	case seymour.CmdSystemInfo:
		if info, err := seymour.ParseSystemInfo(frame.Payload()); err == nil {
			lm.info = info
		}
	case seymour.CmdPositions:
		if positions, err := seymour.ParsePositions(frame.Payload()); err == nil {
			if issue := seymour.CheckMotorCount(lm.info, positions); issue != nil {
				issues = append(issues, *issue)
			}
		}
	}
	return issues
}

// linkClosed reports read errors that end the session rather than a
// single read.
func linkClosed(err error) bool {
	return errors.Is(err, transport.ErrWebSocketClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive")
	}
	conn, info, err := OpenConnection(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn, info)
	}
	return runTextMode(conn, info)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(frame *seymour.Frame, issues []seymour.ValidationError) {
	timestamp := frame.Timestamp().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s %s\n", timestamp, seymour.FormatCommand(frame.Command()), frame)

	for i, issue := range issues {
		switch issue.Type {
		case seymour.AnomalyParseError, seymour.AnomalyUnknownCommand:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, issue.Message)

		case seymour.AnomalyMotorCountMismatch:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, issue.Message)
			fmt.Printf("    positions=%v, mask ids=%v\n", issue.Details["positions"], issue.Details["motors"])

		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, issue.Message)
		}
	}

	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(conn transport.Connection, info string) error {
	lm := newLinkMonitor()
	p := tea.NewProgram(initialModel(info, lm.stats), tea.WithAltScreen())

	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				p.Send(linkErrMsg{err: err})
				if linkClosed(err) {
					return
				}
				continue
			}
			lm.feed(buf[:n], func(ev frameEvent) { p.Send(ev) })
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// runTextMode runs the monitor in text mode
func runTextMode(conn transport.Connection, info string) error {
	fmt.Printf("Seymour - Link Monitor\n")
	fmt.Printf("Connection: %s\n", info)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	lm := newLinkMonitor()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Non-blocking reads
	data := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if linkClosed(err) {
					readErr <- err
					return
				}
				logger.WithError(err).Warn("read error")
				continue
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			data <- chunk
		}
	}()

	for {
		select {
		case chunk := <-data:
			lm.feed(chunk, func(ev frameEvent) {
				switch {
				case ev.decodeErr != nil:
					printDecodeError(ev.decodeErr)
					return
				case ev.synced && ev.skipped > 0:
					fmt.Printf("[SYNC] Synchronized after skipping %d bytes\n\n", ev.skipped)
				case ev.synced:
					fmt.Printf("[SYNC] Synchronized\n\n")
				}

				if len(ev.issues) > 0 {
					printValidationErrors(ev.frame, ev.issues)
				} else if showAll {
					fmt.Print(seymour.FormatFrame(ev.frame))
				}
			})

		case err := <-readErr:
			fmt.Printf("\nConnection closed: %v\n\n", err)
			fmt.Print(lm.stats.String())
			return nil

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(lm.stats.String())
			fmt.Println()
		}
	}
}
