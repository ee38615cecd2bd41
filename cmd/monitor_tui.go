// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/johncarey70/seymour/pkg/seymour"
)

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notes
}

// Latest decoded replies
type replyData struct {
	status       *seymour.RatioStatus
	positions    []int
	info         *seymour.SystemInfo
	lastFrameAt  time.Time
	lastCommand  seymour.Command
	hasLastFrame bool
}

// TUI model
type model struct {
	connInfo      string
	stats         *seymour.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	skippedBytes  uint64
	linkErr       error
	width         int
	height        int
	quitting      bool
	replies       replyData
}

// Messages
type tickMsg time.Time
type linkErrMsg struct {
	err error
}

// formatDuration formats a duration as "2 hours, 3 minutes and 4 seconds"
func formatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	units := []struct {
		name string
		size int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := seconds / u.size
		seconds %= u.size
		if n == 0 && !(u.size == 1 && len(parts) == 0) {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func initialModel(connInfo string, stats *seymour.Statistics) model {
	return model{
		connInfo:      connInfo,
		stats:         stats,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tickCmd()

	case linkErrMsg:
		if m.linkErr == nil || m.linkErr.Error() != msg.err.Error() {
			m.addLogEntry(fmt.Sprintf("LINK ERROR: %v", msg.err), true)
		}
		m.linkErr = msg.err

	case frameEvent:
		m.processEvent(msg)
	}

	return m, nil
}

func (m *model) processEvent(ev frameEvent) {
	if ev.decodeErr != nil {
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.decodeErr), true)
		return
	}

	if ev.synced {
		m.synchronized = true
		m.skippedBytes = ev.skipped
		if ev.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", ev.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}

	m.recordReply(ev.frame)

	name := seymour.FormatCommand(ev.frame.Command())
	if len(ev.issues) > 0 {
		for _, issue := range ev.issues {
			m.addLogEntry(fmt.Sprintf("%s: %s", name, issue.Message), true)
		}
	} else if showAll {
		m.addLogEntry(fmt.Sprintf("%s %s (valid)", name, ev.frame), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// recordReply keeps the latest parseable status, positions and identity.
func (m *model) recordReply(f *seymour.Frame) {
	m.replies.lastFrameAt = f.Timestamp()
	m.replies.lastCommand = f.Command()
	m.replies.hasLastFrame = true

	if f.Payload() == "" {
		return
	}
	switch f.Command() {
	case seymour.CmdStatus, seymour.CmdSelectRatio:
		if s, err := seymour.ParseStatus(f.Payload()); err == nil {
			m.replies.status = &s
		}
	case seymour.CmdPositions:
		if p, err := seymour.ParsePositions(f.Payload()); err == nil {
			m.replies.positions = p
		}
	case seymour.CmdSystemInfo:
		if i, err := seymour.ParseSystemInfo(f.Payload()); err == nil {
			m.replies.info = &i
		}
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SEYMOUR - LINK MONITOR"))
	s.WriteString("\n")
	mode := "Errors only"
	if showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' resets statistics, 'q' quits", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	if !m.synchronized {
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	} else {
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skippedBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", m.skippedBytes)))
		}
	}
	if m.linkErr != nil {
		s.WriteString("  ")
		s.WriteString(errorStyle.Render("✗ " + m.linkErr.Error()))
	}
	s.WriteString("\n\n")

	// Statistics
	snap := m.stats.Snapshot()
	total := snap.FramesReceived + snap.MalformedFrames
	errorCount := snap.MalformedFrames + snap.ProtocolErrors
	var validPercent, errorPercent float64
	if total > 0 {
		validPercent = float64(snap.FramesReceived-min(snap.ProtocolErrors, snap.FramesReceived)) * 100.0 / float64(total)
		errorPercent = float64(errorCount) * 100.0 / float64(total)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", total)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errorCount, errorPercent)),
	))

	if snap.MalformedFrames > 0 || snap.ProtocolErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", snap.MalformedFrames)),
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", snap.ProtocolErrors)),
		))
	}

	errorRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
	if snap.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", snap.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errorRate,
		statsLabelStyle.Render("Watching:"), statsValueStyle.Render(formatDuration(time.Since(snap.StartTime))),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest replies (only shown once something parsed)
	if r := m.replies; r.status != nil || r.positions != nil || r.info != nil {
		s.WriteString(statsLabelStyle.Render("Latest Replies:"))
		s.WriteString("\n")

		replyContent := strings.Builder{}
		if r.info != nil {
			replyContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
				statsLabelStyle.Render("Controller:"), statsValueStyle.Render(r.info.SerialNumber),
				statsLabelStyle.Render("Model:"), statsValueStyle.Render(r.info.ScreenModel),
			))
		}
		if r.status != nil {
			replyContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
				statsLabelStyle.Render("Ratio:"), statsValueStyle.Render(seymour.FormatRatioID(r.status.RatioID)),
				statsLabelStyle.Render("Status:"), statsValueStyle.Render(r.status.StatusCode.String()),
			))
		}
		if r.positions != nil {
			var motors []string
			if r.info != nil {
				motors = r.info.Motors()
			}
			for i, pos := range r.positions {
				label := fmt.Sprintf("Motor %d:", i+1)
				if i < len(motors) {
					label = seymour.FormatMotor(motors[i]) + ":"
				}
				replyContent.WriteString(fmt.Sprintf("%s %s\n",
					statsLabelStyle.Render(label), statsValueStyle.Render(fmt.Sprintf("%d", pos)),
				))
			}
		}
		if r.hasLastFrame {
			replyContent.WriteString(headerStyle.Render(fmt.Sprintf("last frame %s at %s",
				seymour.FormatCommand(r.lastCommand), r.lastFrameAt.Format("15:04:05.000"))))
		}

		s.WriteString(boxStyle.Render(strings.TrimRight(replyContent.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := max(m.height-15, 5)

	logContent := strings.Builder{}
	startIdx := max(len(m.errorLog)-logHeight, 0)

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
