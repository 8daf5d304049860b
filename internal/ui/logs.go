package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"

	"github.com/five82/periscope/internal/logtail"
)

const logTailLines = 1000

var logLevels = []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}

// logState holds the Logs view state.
type logState struct {
	entries  []logtail.Entry
	follow   bool
	minLevel zapcore.Level
	err      error
}

func newLogState() logState {
	return logState{follow: true, minLevel: zapcore.DebugLevel}
}

type logEntriesMsg struct {
	entries []logtail.Entry
	err     error
}

// readLogsCmd tails the configured log file.
func (m Model) readLogsCmd() tea.Cmd {
	path := m.config.LogPath
	return func() tea.Msg {
		lines, err := logtail.Read(path, logTailLines)
		if err != nil {
			return logEntriesMsg{err: err}
		}
		return logEntriesMsg{entries: logtail.ParseAll(lines)}
	}
}

func (m *Model) handleLogEntries(msg logEntriesMsg) {
	m.logState.err = msg.err
	if msg.err == nil {
		m.logState.entries = msg.entries
	}
	m.updateLogViewport()
}

func nextLevel(l zapcore.Level) zapcore.Level {
	for i, lvl := range logLevels {
		if lvl == l {
			return logLevels[(i+1)%len(logLevels)]
		}
	}
	return zapcore.DebugLevel
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logState.follow = !m.logState.follow
		if m.logState.follow {
			m.logViewport.GotoBottom()
			return m, m.readLogsCmd()
		}
	case key.Matches(msg, m.keys.CycleLevel):
		m.logState.minLevel = nextLevel(m.logState.minLevel)
		m.updateLogViewport()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.readLogsCmd()
	case key.Matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
		m.logState.follow = false
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		m.logState.follow = true
	case key.Matches(msg, m.keys.Down):
		m.logViewport.LineDown(1)
		m.logState.follow = false
	case key.Matches(msg, m.keys.Up):
		m.logViewport.LineUp(1)
		m.logState.follow = false
	case key.Matches(msg, m.keys.HalfPageDown):
		m.logViewport.HalfViewDown()
		m.logState.follow = false
	case key.Matches(msg, m.keys.HalfPageUp):
		m.logViewport.HalfViewUp()
		m.logState.follow = false
	case key.Matches(msg, m.keys.PageDown):
		m.logViewport.ViewDown()
		m.logState.follow = false
	case key.Matches(msg, m.keys.PageUp):
		m.logViewport.ViewUp()
		m.logState.follow = false
	}
	return m, nil
}

// updateLogViewport sizes the viewport and re-renders its content.
func (m *Model) updateLogViewport() {
	w := maxInt(m.width-2, 10)
	h := maxInt(m.contentHeight()-3, 3)
	if m.logViewport.Width == 0 {
		m.logViewport = viewport.New(w, h)
	}
	m.logViewport.Width = w
	m.logViewport.Height = h
	m.logViewport.SetContent(m.renderLogContent())
	if m.logState.follow {
		m.logViewport.GotoBottom()
	}
}

func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	entries := logtail.Filter(m.logState.entries, m.logState.minLevel)
	if len(entries) == 0 {
		return styles.MutedText.Render("No log entries")
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		var b strings.Builder
		if !e.Time.IsZero() {
			b.WriteString(styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
			b.WriteString(" ")
		}
		b.WriteString(m.levelStyle(e.Level, styles).Render(fmt.Sprintf("%-5s", strings.ToUpper(e.Level.String()))))
		b.WriteString(" ")
		if e.Logger != "" {
			b.WriteString(styles.InfoText.Render("[" + e.Logger + "]"))
			b.WriteString(" ")
		}
		b.WriteString(styles.Text.Render(e.Msg))
		if fields := e.FieldString(); fields != "" {
			b.WriteString(" ")
			b.WriteString(styles.FaintText.Render(fields))
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func (m Model) levelStyle(level zapcore.Level, styles Styles) lipgloss.Style {
	switch {
	case level >= zapcore.ErrorLevel:
		return styles.DangerText
	case level == zapcore.WarnLevel:
		return styles.WarningText.Bold(true)
	case level == zapcore.DebugLevel:
		return styles.FaintText
	default:
		return styles.SuccessText
	}
}

func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	title := fmt.Sprintf("Log %s", truncateMiddle(m.config.LogPath, maxInt(m.width-20, 10)))
	box := m.renderBox(title, m.logViewport.View(), m.width, m.contentHeight()-1, true)

	shown := len(logtail.Filter(m.logState.entries, m.logState.minLevel))
	status := fmt.Sprintf("%d/%d lines  level>=%s  follow %s",
		shown, len(m.logState.entries), m.logState.minLevel.String(), ternary(m.logState.follow, "on", "off"))
	line := styles.FaintText.Render(status)
	if m.logState.err != nil {
		line += "  " + styles.DangerText.Render(m.logState.err.Error())
	}
	return box + "\n" + line
}
