package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < 100

	var parts []string
	parts = append(parts, bg.Render("periscope", styles.Logo))

	base := m.config.APIBase
	if compact {
		base = truncateMiddle(base, 24)
	}
	parts = append(parts, bg.Render(base, styles.MutedText))

	// Backend health
	health := string(m.healthSnap.Status)
	healthPart := bg.Render("API", styles.MutedText) + bg.Space() + styles.StatusStyle(health).Render(health)
	if m.healthSnap.IsOffline() {
		healthPart += bg.Space() + bg.Render(classifyConnectionError(m.healthSnap.LastError), styles.DangerText)
	}
	parts = append(parts, healthPart)

	// Camera status
	if m.ctrl != nil {
		status := m.streamSnap.Status.String()
		camPart := bg.Render("CAM", styles.MutedText) + bg.Space() + styles.StatusStyle(status).Render(status)
		if m.streamSnap.UserPaused {
			camPart += bg.Space() + bg.Render("paused", styles.FaintText)
		}
		parts = append(parts, camPart)
	}

	// Records
	parts = append(parts,
		bg.Render("Records:", styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", len(m.snapshot.Items)), styles.Text))

	if ts := formatClock(m.snapshot.LastUpdated, time.Now()); ts != "" && !compact {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	if m.snapshot.IsOffline() {
		parts = append(parts, bg.Render("DATA OFFLINE", styles.DangerText.Bold(true)))
	}

	if m.errorMsg != "" {
		parts = append(parts,
			bg.Render("!", styles.WarningText.Bold(true))+bg.Space()+
				bg.Render(truncate(m.errorMsg, 40), styles.WarningText))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(bg.Join(parts, "  "))
}

// classifyConnectionError returns a short description of the connection error.
func classifyConnectionError(err error) string {
	if err == nil {
		return "OFFLINE"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}

// renderCommandBar renders the view tabs and the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	var tabs []string
	for i, v := range viewOrder {
		label := fmt.Sprintf("%d %s", i+1, v)
		if v == m.currentView {
			tabs = append(tabs, bg.Render(label, styles.AccentText.Bold(true)))
		} else {
			tabs = append(tabs, bg.Render(label, styles.FaintText))
		}
	}

	type hint struct{ key, desc string }
	var hints []hint
	switch m.currentView {
	case ViewCamera:
		hints = []hint{
			{"i", "Source"}, {"c", "Preset"}, {"a", "Apply"}, {"+/-", "Width"},
			{"g", "Gray"}, {"space", ternary(m.streamSnap.UserPaused, "Resume", "Pause")}, {"r", "Reload"},
		}
	case ViewHealth:
		hints = []hint{{"r", "Ping"}}
	case ViewLogs:
		hints = []hint{
			{"space", ternary(m.logState.follow, "Pause", "Follow")},
			{"v", "Level"}, {"j/k", "Scroll"}, {"r", "Reload"},
		}
	default:
		hints = []hint{
			{"/", "Search"}, {"a", "New"}, {"u", "Put"}, {"e", "Patch"}, {"d", "Delete"},
			{"f", "Fetch"}, {"s", m.data.sort.Label()}, {"[ ]", "Page"},
		}
	}
	hints = append(hints, hint{"?", "More"})

	segments := []string{strings.Join(tabs, bg.Spaces(2))}
	for _, h := range hints {
		segments = append(segments, bg.KeyHint(h.key, h.desc, styles))
	}
	segments = append(segments, bg.KeyHint("T", m.theme.Name, styles))

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}
