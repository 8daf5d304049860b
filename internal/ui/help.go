package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

type helpSection struct {
	title string
	keys  []key.Binding
}

func (m Model) helpSections() []helpSection {
	k := m.keys
	return []helpSection{
		{"Views", []key.Binding{k.ViewData, k.ViewCamera, k.ViewHealth, k.ViewLogs, k.Tab}},
		{"Data", []key.Binding{k.Up, k.Down, k.Search, k.Create, k.Replace, k.Edit, k.Delete, k.FetchByID, k.CycleSort, k.PageSize, k.PrevPage, k.NextPage, k.Refresh}},
		{"Camera", []key.Binding{k.EditSource, k.NextPreset, k.ApplySource, k.WidthUp, k.WidthDown, k.WidthUpBig, k.WidthDnBig, k.Grayscale, k.Pause, k.Reload}},
		{"Health / Logs", []key.Binding{k.Ping, k.ToggleFollow, k.CycleLevel, k.HalfPageDown, k.HalfPageUp}},
		{"General", []key.Binding{k.CycleTheme, k.Help, k.Escape, k.Quit}},
	}
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(10)

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 36)))
	b.WriteString("\n")

	sections := m.helpSections()
	for i, section := range sections {
		b.WriteString("\n")
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")
		for j, binding := range section.keys {
			h := binding.Help()
			b.WriteString(keyStyle.Render(h.Key))
			b.WriteString(styles.Text.Render(h.Desc))
			if i < len(sections)-1 || j < len(section.keys)-1 {
				b.WriteString("\n")
			}
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(44).
		Render(b.String())

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
