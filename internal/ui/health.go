package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/periscope/internal/state"
)

const pingTimeout = 5 * time.Second

func (m Model) handleHealthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Ping) && !m.pinging {
		if cmd := m.pingCmd(); cmd != nil {
			m.pinging = true
			return m, cmd
		}
	}
	return m, nil
}

// pingCmd runs one manual /healthz/ call and records it like a poll.
func (m Model) pingCmd() tea.Cmd {
	client, store := m.api, m.health
	if client == nil {
		return nil
	}
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, pingTimeout)
		defer cancel()
		h, err := client.Health(ctx)
		if err != nil {
			store.Update(nil, err)
		} else {
			store.Update(&h, nil)
		}
		return healthMsg(store.Snapshot())
	}
}

func (m Model) renderHealth() string {
	styles := m.theme.Styles()
	snap := m.healthSnap
	label := func(s string) string { return styles.MutedText.Render(padRight(s, 14)) }

	var lines []string
	status := string(snap.Status)
	lines = append(lines, label("Backend")+styles.StatusStyle(status).Render(status))
	if snap.IsOffline() {
		lines = append(lines, label("")+styles.DangerText.Render("offline"))
	}
	lines = append(lines, label("API base")+styles.AccentText.Render(m.config.APIBase))

	checked := formatClock(snap.LastChecked, time.Now())
	if checked == "" {
		checked = "never"
	}
	lines = append(lines, label("Last checked")+styles.Text.Render(checked))
	lines = append(lines, label("Failures")+styles.Text.Render(fmt.Sprintf("%d", snap.ConsecutiveFailures)))
	if snap.LastError != nil {
		lines = append(lines, label("Last error")+styles.DangerText.Render(truncate(snap.LastError.Error(), maxInt(m.width-20, 10))))
	}
	if m.pinging {
		lines = append(lines, label("")+styles.WarningText.Render("pinging…"))
	}

	lines = append(lines, "")
	lines = append(lines, styles.AccentText.Bold(true).Render("Payload"))
	lines = append(lines, m.renderHealthPayload(snap, styles)...)

	return m.renderBox("Health", strings.Join(lines, "\n"), m.width, m.contentHeight(), true)
}

func (m Model) renderHealthPayload(snap state.HealthSnapshot, styles Styles) []string {
	if len(snap.Payload) == 0 {
		return []string{styles.FaintText.Render("(no payload)")}
	}
	keys := make([]string, 0, len(snap.Payload))
	for k := range snap.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, styles.MutedText.Render(padRight(k, 14))+styles.Text.Render(fmt.Sprintf("%v", snap.Payload[k])))
	}
	return out
}
