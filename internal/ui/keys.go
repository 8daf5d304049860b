package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Escape     key.Binding
	Confirm    key.Binding

	// View switching
	ViewData   key.Binding
	ViewCamera key.Binding
	ViewHealth key.Binding
	ViewLogs   key.Binding

	// Navigation
	Up           key.Binding
	Down         key.Binding
	Top          key.Binding
	Bottom       key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	HalfPageUp   key.Binding
	HalfPageDown key.Binding

	// Data actions
	Refresh    key.Binding
	Search     key.Binding
	Create     key.Binding
	Replace    key.Binding
	Edit       key.Binding
	Delete     key.Binding
	FetchByID  key.Binding
	CycleSort  key.Binding
	PageSize   key.Binding
	PrevPage   key.Binding
	NextPage   key.Binding
	ConfirmYes key.Binding

	// Camera actions
	EditSource  key.Binding
	ApplySource key.Binding
	NextPreset  key.Binding
	WidthUp     key.Binding
	WidthDown   key.Binding
	WidthUpBig  key.Binding
	WidthDnBig  key.Binding
	Grayscale   key.Binding
	Pause       key.Binding
	Reload      key.Binding

	// Health / logs actions
	Ping         key.Binding
	ToggleFollow key.Binding
	CycleLevel   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next view"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous view"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),

		ViewData: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Data"),
		),
		ViewCamera: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Camera"),
		),
		ViewHealth: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "Health"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "Logs"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("home"),
			key.WithHelp("home", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "Page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "Page down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "Half page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "Half page down"),
		),

		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search"),
		),
		Create: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Create record"),
		),
		Replace: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Update (PUT)"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "Patch (PATCH)"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Delete record"),
		),
		FetchByID: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Fetch by id"),
		),
		CycleSort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Cycle sort"),
		),
		PageSize: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z", "Rows per page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("[", "left"),
			key.WithHelp("[", "Previous page"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]", "right"),
			key.WithHelp("]", "Next page"),
		),
		ConfirmYes: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "Confirm delete"),
		),

		EditSource: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "Edit source"),
		),
		ApplySource: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Apply source"),
		),
		NextPreset: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Cycle preset"),
		),
		WidthUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "Width +10"),
		),
		WidthDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "Width -10"),
		),
		WidthUpBig: key.NewBinding(
			key.WithKeys(">"),
			key.WithHelp(">", "Width +100"),
		),
		WidthDnBig: key.NewBinding(
			key.WithKeys("<"),
			key.WithHelp("<", "Width -100"),
		),
		Grayscale: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "Toggle grayscale"),
		),
		Pause: key.NewBinding(
			key.WithKeys(" ", "p"),
			key.WithHelp("space/p", "Pause/resume"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Reload"),
		),

		Ping: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Ping now"),
		),
		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Toggle follow"),
		),
		CycleLevel: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "Cycle min level"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ViewData, k.ViewCamera, k.ViewHealth, k.ViewLogs},
		{k.Up, k.Down, k.Top, k.Bottom, k.HalfPageDown, k.HalfPageUp},
		{k.Refresh, k.Search, k.Create, k.Replace, k.Edit, k.Delete, k.FetchByID, k.CycleSort, k.PageSize, k.PrevPage, k.NextPage},
		{k.EditSource, k.ApplySource, k.NextPreset, k.WidthUp, k.WidthDown, k.Grayscale, k.Pause, k.Reload},
		{k.Ping, k.ToggleFollow, k.CycleLevel},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
