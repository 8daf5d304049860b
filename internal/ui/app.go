package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/five82/periscope/internal/api"
	"github.com/five82/periscope/internal/config"
	"github.com/five82/periscope/internal/prefs"
	"github.com/five82/periscope/internal/state"
	"github.com/five82/periscope/internal/stream"
)

// View identifies the main content area.
type View int

const (
	ViewData View = iota
	ViewCamera
	ViewHealth
	ViewLogs
)

var viewOrder = []View{ViewData, ViewCamera, ViewHealth, ViewLogs}

func (v View) String() string {
	switch v {
	case ViewCamera:
		return "Camera"
	case ViewHealth:
		return "Health"
	case ViewLogs:
		return "Logs"
	default:
		return "Data"
	}
}

const (
	defaultPollTick = time.Second
	previewInterval = 150 * time.Millisecond
	storeTimeout    = 30 * time.Second
)

// Options configures the UI.
type Options struct {
	Context    context.Context
	API        *api.Client
	Store      *state.Store
	Health     *state.HealthStore
	Controller *stream.Controller
	Config     *config.Config
	Logger     *zap.Logger
	PollTick   time.Duration
	ThemeName  string
	PrefsPath  string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	api       *api.Client
	store     *state.Store
	health    *state.HealthStore
	ctrl      *stream.Controller
	config    *config.Config
	logger    *zap.Logger
	prefsPath string
	pollTick  time.Duration
	keys      keyMap

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	errorMsg    string

	// Data view
	snapshot state.Snapshot
	data     dataState

	// Health view
	healthSnap state.HealthSnapshot
	pinging    bool

	// Camera view
	streamSnap stream.Snapshot
	streamCh   <-chan stream.Snapshot
	cam        cameraState

	// Logs view
	logViewport viewport.Model
	logState    logState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = defaultPollTick
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}

	health := opts.Health
	if health == nil {
		health = &state.HealthStore{}
	}

	m := Model{
		ctx:         ctx,
		api:         opts.API,
		store:       opts.Store,
		health:      health,
		ctrl:        opts.Controller,
		config:      cfg,
		logger:      logger.Named("ui"),
		prefsPath:   prefsPath,
		pollTick:    pollTick,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(opts.ThemeName),
		currentView: ViewData,
		data:        newDataState(),
		cam:         newCameraState(cfg.Stream.Presets),
		logState:    newLogState(),
	}
	if m.ctrl != nil {
		m.streamSnap = m.ctrl.Snapshot()
		m.streamCh, _ = m.ctrl.Subscribe()
	}
	if m.store != nil {
		m.snapshot = m.store.Snapshot()
	}
	m.healthSnap = m.health.Snapshot()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
		previewTickCmd(previewInterval),
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.streamCh != nil {
		cmds = append(cmds, waitForStream(m.streamCh))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeInputs()
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case previewTickMsg:
		m.refreshPreview()
		return m, previewTickCmd(previewInterval)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.data.clampSelection(m.pageRecords())
		return m, nil

	case healthMsg:
		m.healthSnap = state.HealthSnapshot(msg)
		m.pinging = false
		return m, nil

	case streamMsg:
		m.streamSnap = stream.Snapshot(msg)
		if m.streamSnap.Status != stream.Live {
			m.cam.preview = ""
		}
		return m, waitForStream(m.streamCh)

	case streamClosedMsg:
		m.streamCh = nil
		return m, nil

	case dataResultMsg:
		m.handleDataResult(msg)
		return m, nil

	case fetchedMsg:
		m.handleFetched(msg)
		return m, nil

	case logEntriesMsg:
		m.handleLogEntries(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	return b.String()
}

// contentHeight is the space below the header and command bar.
func (m Model) contentHeight() int {
	return maxInt(m.height-2, 3)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewCamera:
		return m.renderCamera()
	case ViewHealth:
		return m.renderHealth()
	case ViewLogs:
		return m.renderLogs()
	default:
		return m.renderData()
	}
}

// inputActive reports whether a text field owns the keyboard.
func (m Model) inputActive() bool {
	switch m.currentView {
	case ViewData:
		return m.data.mode != dataBrowse
	case ViewCamera:
		return m.cam.editing
	}
	return false
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	// Text fields swallow everything, including the global letters.
	if m.inputActive() {
		switch m.currentView {
		case ViewCamera:
			return m.handleCameraInput(msg)
		default:
			return m.handleDataInput(msg)
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		if m.prefsPath != "" {
			if err := prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name}); err != nil {
				m.logger.Warn("save prefs failed", zap.Error(err))
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		return m.switchView(m.nextView(1))

	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView(m.nextView(-1))

	case key.Matches(msg, m.keys.ViewData):
		return m.switchView(ViewData)

	case key.Matches(msg, m.keys.ViewCamera):
		return m.switchView(ViewCamera)

	case key.Matches(msg, m.keys.ViewHealth):
		return m.switchView(ViewHealth)

	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)
	}

	switch m.currentView {
	case ViewCamera:
		return m.handleCameraKey(msg)
	case ViewHealth:
		return m.handleHealthKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	default:
		return m.handleDataKey(msg)
	}
}

func (m Model) nextView(step int) View {
	for i, v := range viewOrder {
		if v == m.currentView {
			return viewOrder[(i+step+len(viewOrder))%len(viewOrder)]
		}
	}
	return ViewData
}

// switchView changes the content area. The camera session starts when its
// view is shown and stops when the view is left.
func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	if m.currentView == ViewCamera && v != ViewCamera && m.ctrl != nil {
		m.ctrl.Stop()
		m.streamSnap = m.ctrl.Snapshot()
		m.cam.preview = ""
	}
	m.currentView = v
	m.errorMsg = ""
	switch v {
	case ViewCamera:
		if m.ctrl != nil {
			m.ctrl.Start()
			m.streamSnap = m.ctrl.Snapshot()
		}
	case ViewLogs:
		return m, m.readLogsCmd()
	}
	return m, nil
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	cmds = append(cmds, fetchHealthCmd(m.health))

	if m.currentView == ViewLogs && m.logState.follow {
		cmds = append(cmds, m.readLogsCmd())
	}

	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// Messages

type tickMsg time.Time

type previewTickMsg time.Time

type snapshotMsg state.Snapshot

type healthMsg state.HealthSnapshot

type streamMsg stream.Snapshot

type streamClosedMsg struct{}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func previewTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return previewTickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func fetchHealthCmd(store *state.HealthStore) tea.Cmd {
	return func() tea.Msg {
		return healthMsg(store.Snapshot())
	}
}

// waitForStream forwards the next controller snapshot as a message.
func waitForStream(ch <-chan stream.Snapshot) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return streamMsg(snap)
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	return err
}
