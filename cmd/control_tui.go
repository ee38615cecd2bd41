// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 johncarey70

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/johncarey70/seymour/pkg/seymour"
	"github.com/johncarey70/seymour/pkg/seymour/controller"
	"github.com/johncarey70/seymour/pkg/seymour/state"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	statusPollSeconds = 5 // Poll status every N seconds while idle
	commandTimeout    = 30 * time.Second
)

// Focus states
const (
	focusRatioList = iota
	focusUpdateInput
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// maskController is the controller surface the TUI drives.
type maskController interface {
	Snapshot() state.Snapshot
	Statistics() seymour.StatisticsSnapshot

	GetStatus(ctx context.Context) (seymour.RatioStatus, error)
	SelectRatio(ctx context.Context, ratioID int) error
	Update(ctx context.Context, ratioID int) error
	ToggleJog(ctx context.Context) (seymour.MovementCode, error)
	PressButton(ctx context.Context, key string) error
	Remote(ctx context.Context, cmd controller.RemoteCommand) error

	SelectMotor(motorID string) error
	SelectMovementMode(code seymour.MovementCode) error
}

// ratioItem is one row of the ratio list
type ratioItem struct {
	info    seymour.RatioInfo
	current bool
}

// Implement list.Item interface
func (r ratioItem) Title() string {
	marker := "  "
	if r.current {
		marker = "▶ "
	}
	return marker + seymour.FormatRatioID(r.info.ID) + " " + r.info.Label
}

func (r ratioItem) Description() string {
	return fmt.Sprintf("%gx%g diag %g", r.info.Width, r.info.Height, r.info.Diagonal)
}

func (r ratioItem) FilterValue() string { return r.info.Label }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	ctrl     maskController
	connInfo string

	// Latest controller state
	snap  state.Snapshot
	stats seymour.StatisticsSnapshot

	// Controls
	ratioList    list.Model
	updateInput  textinput.Model
	buttonIndex  int
	focusedField int

	// In-flight requests
	spinner   spinner.Model
	busy      int
	busyLabel string

	// Event log
	errorLog      []errorLogEntry
	maxLogEntries int

	// UI state
	width          int
	height         int
	ready          bool
	quitting       bool
	connectionLost bool
	lastPoll       time.Time
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type stateChangedMsg struct{}

type readyMsg struct{}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

type connectFailedMsg struct {
	err     error
	retryIn time.Duration
}

type cmdResultMsg struct {
	label string
	err   error
	quiet bool // don't log success
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(cm *connectionManager) controlModel {
	return newControlModel(cm.ctrl, cm.connInfo)
}

func newControlModel(ctrl maskController, connInfo string) controlModel {
	// Ratio id to store positions into
	ti := textinput.New()
	ti.Placeholder = "current"
	ti.CharLimit = 3
	ti.Width = 8

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	ratioList := list.New([]list.Item{}, delegate, 30, 10)
	ratioList.Title = "Aspect Ratios"
	ratioList.SetShowStatusBar(false)
	ratioList.SetShowHelp(false)
	ratioList.SetFilteringEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return controlModel{
		ctrl:          ctrl,
		connInfo:      connInfo,
		ratioList:     ratioList,
		updateInput:   ti,
		spinner:       sp,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		focusedField:  focusRatioList,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			m.ratioList, _ = m.ratioList.Update(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.stats = m.ctrl.Statistics()
		cmds = append(cmds, controlTickCmd())
		if m.ready && !m.connectionLost && m.busy == 0 &&
			time.Since(m.lastPoll) >= statusPollSeconds*time.Second {
			m.lastPoll = time.Now()
			cmds = append(cmds, m.poll())
		}

	case stateChangedMsg:
		m.refresh()

	case readyMsg:
		m.ready = true
		m.refresh()
		m.addLogEntry(fmt.Sprintf("Connected to %s (%s)", m.snap.SystemInfo.SerialNumber, m.snap.SystemInfo.ScreenModel), false)

	case connectFailedMsg:
		m.addLogEntry(fmt.Sprintf("Connect failed: %v (retry in %s)", msg.err, msg.retryIn), true)

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.ready = true
		m.connInfo = msg.connInfo
		m.refresh()
		m.addLogEntry("Reconnected", false)

	case cmdResultMsg:
		m.busy = max(m.busy-1, 0)
		if m.busy == 0 {
			m.busyLabel = ""
		}
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.label, msg.err), true)
		} else if !msg.quiet {
			m.addLogEntry(msg.label+" done", false)
		}
		m.refresh()

	case spinner.TickMsg:
		if m.busy > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusUpdateInput {
		m.updateInput, cmd = m.updateInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		return m.cycleFocus(1), nil
	case "shift+tab":
		return m.cycleFocus(-1), nil
	case "enter":
		return m.handleEnter()
	}

	// Typing into the update field
	if m.focusedField == focusUpdateInput {
		var cmd tea.Cmd
		m.updateInput, cmd = m.updateInput.Update(msg)
		return m, cmd
	}

	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "m":
		return m, m.cycleMotor()

	case "v":
		return m, m.cycleMovementMode()

	case "g":
		return m.request("Toggle jog", func(ctx context.Context) error {
			_, err := m.ctrl.ToggleJog(ctx)
			return err
		})

	case "c":
		return m.request("Clear", func(ctx context.Context) error {
			return m.ctrl.Remote(ctx, controller.RemoteClear)
		})

	case "left", "h":
		if m.focusedField == focusButton {
			m.buttonIndex = (m.buttonIndex - 1 + len(controller.Buttons)) % len(controller.Buttons)
		}

	case "right", "l":
		if m.focusedField == focusButton {
			m.buttonIndex = (m.buttonIndex + 1) % len(controller.Buttons)
		}

	case "up", "k", "down", "j":
		if m.focusedField == focusRatioList {
			m.ratioList, _ = m.ratioList.Update(msg)
		}
	}

	return m, nil
}

func (m *controlModel) cycleFocus(delta int) *controlModel {
	const focusCount = focusButton + 1
	m.focusedField = (m.focusedField + delta + focusCount) % focusCount

	if m.focusedField == focusUpdateInput {
		m.updateInput.Focus()
	} else {
		m.updateInput.Blur()
	}
	return m
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.focusedField {
	case focusRatioList:
		item, ok := m.ratioList.SelectedItem().(ratioItem)
		if !ok {
			return m, nil
		}
		id := item.info.ID
		return m.request(fmt.Sprintf("Select ratio %s", seymour.FormatRatioID(id)), func(ctx context.Context) error {
			return m.ctrl.SelectRatio(ctx, id)
		})

	case focusUpdateInput:
		id := 0
		if v := strings.TrimSpace(m.updateInput.Value()); v != "" {
			var err error
			if id, err = strconv.Atoi(v); err != nil {
				m.addLogEntry(fmt.Sprintf("Update: %q is not a ratio id", v), true)
				return m, nil
			}
		}
		m.updateInput.Reset()
		label := "Update current ratio"
		if id != 0 {
			label = fmt.Sprintf("Update ratio %s", seymour.FormatRatioID(id))
		}
		return m.request(label, func(ctx context.Context) error {
			return m.ctrl.Update(ctx, id)
		})

	case focusButton:
		btn := controller.Buttons[m.buttonIndex]
		return m.request(btn.Name, func(ctx context.Context) error {
			return m.ctrl.PressButton(ctx, btn.Key)
		})
	}
	return m, nil
}

// request runs fn off the UI goroutine and reports a cmdResultMsg.
func (m *controlModel) request(label string, fn func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	if !m.ready || m.connectionLost {
		m.addLogEntry(fmt.Sprintf("%s: not connected", label), true)
		return m, nil
	}
	m.busy++
	m.busyLabel = label
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return cmdResultMsg{label: label, err: fn(ctx)}
	})
}

func (m *controlModel) poll() tea.Cmd {
	m.busy++
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_, err := ctrl.GetStatus(ctx)
		return cmdResultMsg{label: "Status poll", err: err, quiet: true}
	}
}

// cycleMotor steps the selection through all motors, then each mask id.
func (m *controlModel) cycleMotor() tea.Cmd {
	options := append([]string{""}, m.snap.SystemInfo.Motors()...)
	next := options[0]
	for i, id := range options {
		if id == m.snap.Settings.CurrentMotorID {
			next = options[(i+1)%len(options)]
			break
		}
	}
	if err := m.ctrl.SelectMotor(next); err != nil {
		m.addLogEntry(fmt.Sprintf("Select motor: %v", err), true)
		return nil
	}
	m.refresh()
	return nil
}

var movementOrder = []seymour.MovementCode{seymour.MovementNone, seymour.MovementJog, seymour.MovementPercent}

func (m *controlModel) cycleMovementMode() tea.Cmd {
	next := movementOrder[0]
	for i, code := range movementOrder {
		if code == m.snap.Settings.CurrentMovementCode {
			next = movementOrder[(i+1)%len(movementOrder)]
			break
		}
	}
	if err := m.ctrl.SelectMovementMode(next); err != nil {
		m.addLogEntry(fmt.Sprintf("Select movement mode: %v", err), true)
		return nil
	}
	m.refresh()
	return nil
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 1)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	s.WriteString(titleStyle.Render("SEYMOUR CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch m=motor v=mode g=jog c=clear", connStatus)))
	s.WriteString("\n\n")

	if !m.ready {
		s.WriteString(warningStyle.Render("Connecting to controller..."))
		s.WriteString("\n\n")
		s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))
		return s.String()
	}

	// Layout: left panel (ratios) | right panel (control)
	leftWidth := 30
	rightWidth := max(m.width-leftWidth-6, 20)

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusRatioList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	ratioPanel := listStyle.Render(m.ratioList.View())

	controlPanel := boxStyle.Width(rightWidth).Render(
		m.renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, ratioPanel, " ", controlPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder
	snap := m.snap

	s.WriteString(fmt.Sprintf("%s %s (%s)\n", statsLabelStyle.Render("Controller:"),
		snap.SystemInfo.SerialNumber, snap.SystemInfo.ScreenModel))

	ratio := "none"
	if snap.Status.RatioID != 0 {
		ratio = seymour.FormatRatioID(snap.Status.RatioID)
		if r, ok := snap.Settings.Ratios[snap.Status.RatioID]; ok {
			ratio += " " + r.Label
		}
	}
	s.WriteString(fmt.Sprintf("%s %s  %s %s\n",
		statsLabelStyle.Render("Ratio:"), statsValueStyle.Render(ratio),
		statsLabelStyle.Render("Status:"), statsValueStyle.Render(snap.Status.StatusCode.String())))

	motor := "All"
	if snap.Settings.CurrentMotorID != "" {
		motor = seymour.FormatMotor(snap.Settings.CurrentMotorID)
	}
	s.WriteString(fmt.Sprintf("%s %s  %s %s\n\n",
		statsLabelStyle.Render("Motor:"), statsValueStyle.Render(motor),
		statsLabelStyle.Render("Mode:"), statsValueStyle.Render(seymour.MovementCodes[snap.Settings.CurrentMovementCode])))

	// Positions in mask order
	for _, id := range snap.SystemInfo.Motors() {
		if pos, ok := snap.Positions.Motors[id]; ok {
			s.WriteString(fmt.Sprintf("%s %s  ", statsLabelStyle.Render(id+":"), statsValueStyle.Render(strconv.Itoa(pos))))
		}
	}
	s.WriteString("\n\n")

	// Update field
	s.WriteString(statsLabelStyle.Render("Store positions into: "))
	if m.focusedField == focusUpdateInput {
		s.WriteString(m.updateInput.View())
	} else {
		val := m.updateInput.Value()
		if val == "" {
			val = m.updateInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	s.WriteString("\n\n")

	// Buttons
	for i, btn := range controller.Buttons {
		style := buttonStyle
		if m.focusedField == focusButton && i == m.buttonIndex {
			style = focusedButtonStyle
		}
		s.WriteString(style.Render(btn.Name))
		s.WriteString(" ")
		if (i+1)%3 == 0 {
			s.WriteString("\n")
		}
	}
	s.WriteString("\n")

	if m.busy > 0 && m.busyLabel != "" {
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(headerStyle.Render(" " + m.busyLabel))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	st := m.stats
	errorCount := st.MalformedFrames + st.ProtocolErrors + st.Timeouts

	errors := statsValueStyle.Render("0")
	if errorCount > 0 {
		errors = errorStyle.Render(fmt.Sprintf("%d", errorCount))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", st.FramesSent)),
		statsLabelStyle.Render("Received:"), statsValueStyle.Render(fmt.Sprintf("%d", st.FramesReceived)),
		statsLabelStyle.Render("Unsolicited:"), statsValueStyle.Render(fmt.Sprintf("%d", st.UnsolicitedFrames)),
		statsLabelStyle.Render("Errors:"), errors,
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
	)

	return boxStyle.Width(max(m.width-4, 20)).Render(content)
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := min(len(m.errorLog), 8)
	startIdx := len(m.errorLog) - logHeight

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(max(m.width-4, 20)).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// refresh copies controller state into the model and rebuilds the list.
func (m *controlModel) refresh() {
	m.snap = m.ctrl.Snapshot()
	m.stats = m.ctrl.Statistics()

	ids := m.snap.Settings.RatioIDs()
	items := make([]list.Item, len(ids))
	for i, id := range ids {
		items[i] = ratioItem{info: m.snap.Settings.Ratios[id], current: id == m.snap.Status.RatioID}
	}
	m.ratioList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	listHeight := max(m.height/3, 5)
	m.ratioList.SetSize(28, listHeight)
}
