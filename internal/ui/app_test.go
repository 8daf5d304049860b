package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/periscope/internal/api"
	"github.com/five82/periscope/internal/config"
	"github.com/five82/periscope/internal/fetch"
	"github.com/five82/periscope/internal/prefs"
	"github.com/five82/periscope/internal/state"
	"github.com/five82/periscope/internal/stream"
)

type fakeData struct {
	mu       sync.Mutex
	items    []api.Record
	searches []string
	deleted  []int64
}

func newFakeData(n int) *fakeData {
	f := &fakeData{}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		f.items = append(f.items, api.Record{
			ID:        int64(i),
			Text:      fmt.Sprintf("record %d", i),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		})
	}
	return f
}

func (f *fakeData) ListData(ctx context.Context, search string) ([]api.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, search)
	var out []api.Record
	for _, rec := range f.items {
		if search == "" || strings.Contains(rec.Text, search) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeData) GetData(ctx context.Context, id int64) (api.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.items {
		if rec.ID == id {
			return rec, nil
		}
	}
	return api.Record{}, errors.New("HTTP 404")
}

func (f *fakeData) CreateData(ctx context.Context, text string) (api.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := api.Record{ID: int64(len(f.items) + 1), Text: text}
	f.items = append(f.items, rec)
	return rec, nil
}

func (f *fakeData) UpdateData(ctx context.Context, id int64, text string) (api.Record, error) {
	return api.Record{ID: id, Text: text}, nil
}

func (f *fakeData) PatchData(ctx context.Context, id int64, text string) (api.Record, error) {
	return api.Record{ID: id, Text: text}, nil
}

func (f *fakeData) DeleteData(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	kept := f.items[:0]
	for _, rec := range f.items {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	f.items = kept
	return nil
}

func (f *fakeData) lastSearch() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.searches) == 0 {
		return ""
	}
	return f.searches[len(f.searches)-1]
}

type fakeBackend struct {
	mu     sync.Mutex
	aborts int
}

func (b *fakeBackend) StreamURL(q api.StreamQuery) string {
	return fmt.Sprintf("http://cam.local/api/stream/?client=%s&width=%d&t=%d", q.ClientID, q.Width, q.Token)
}

func (b *fakeBackend) AbortStream(ctx context.Context, clientID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aborts++
	return true, nil
}

func (b *fakeBackend) abortCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aborts
}

func (b *fakeBackend) FetchProof(ctx context.Context, q api.StreamQuery) (api.Proof, error) {
	return api.Proof{ViaBackend: true, ClientID: q.ClientID}, nil
}

type liveSource struct{}

func (liveSource) Size() image.Point  { return image.Pt(4, 2) }
func (liveSource) Err() error         { return nil }
func (liveSource) Close() error       { return nil }
func (liveSource) Frame() image.Image { return image.NewRGBA(image.Rect(0, 0, 4, 2)) }

type liveConnector struct{}

func (liveConnector) Open(ctx context.Context, url string) (stream.FrameSource, error) {
	return liveSource{}, nil
}

func keyPress(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press feeds keys to the model and returns it with the last command.
func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyPress(k))
		m = next.(Model)
	}
	return m, cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command, got nil")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func newDataModel(t *testing.T, n int) (Model, *fakeData) {
	t.Helper()
	fake := newFakeData(n)
	store := state.NewStore(fake)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	cfg := config.Default()
	cfg.LogPath = filepath.Join(t.TempDir(), "periscope.log")
	m := New(Options{
		Store:     store,
		Config:    &cfg,
		PrefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), fake
}

func newCameraModel(t *testing.T) (Model, *stream.Controller, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	ctrl, err := stream.New(stream.Options{
		Backend:           backend,
		Connector:         liveConnector{},
		ClientID:          "ui-test",
		Width:             640,
		ReconnectDelay:    5 * time.Millisecond,
		FramePollInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("stream.New returned error: %v", err)
	}
	t.Cleanup(ctrl.Close)
	m := New(Options{Controller: ctrl, PrefsPath: filepath.Join(t.TempDir(), "prefs.toml")})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), ctrl, backend
}

func waitStatus(t *testing.T, ctrl *stream.Controller, want stream.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for ctrl.Snapshot().Status != want {
		if time.Now().After(deadline) {
			t.Fatalf("status = %v, want %v", ctrl.Snapshot().Status, want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestModel_ViewBeforeResize(t *testing.T) {
	m := New(Options{})
	if got := m.View(); got != "Loading..." {
		t.Fatalf("View() = %q, want Loading...", got)
	}
}

func TestModel_SwitchViews(t *testing.T) {
	m, _ := newDataModel(t, 3)

	tests := []struct {
		key  string
		want View
	}{
		{"2", ViewCamera},
		{"3", ViewHealth},
		{"4", ViewLogs},
		{"1", ViewData},
		{"tab", ViewCamera},
	}
	for _, tt := range tests {
		m, _ = press(t, m, tt.key)
		if m.currentView != tt.want {
			t.Fatalf("after %q view = %v, want %v", tt.key, m.currentView, tt.want)
		}
		if out := m.View(); !strings.Contains(out, "periscope") {
			t.Fatalf("%v view missing header", tt.want)
		}
	}
}

func TestModel_QuitKeys(t *testing.T) {
	m, _ := newDataModel(t, 1)

	_, cmd := press(t, m, "q")
	if cmd == nil {
		t.Fatalf("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q did not quit")
	}

	m, _ = press(t, m, "/", "q")
	if m.data.mode != dataSearching || m.data.input.Value() != "q" {
		t.Fatalf("mode %v value %q, want q typed into search", m.data.mode, m.data.input.Value())
	}

	_, cmd = press(t, m, "ctrl+c")
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("ctrl+c did not quit while searching")
	}
}

func TestModel_Search(t *testing.T) {
	m, fake := newDataModel(t, 12)

	m, cmd := press(t, m, "/", "1", "1", "enter")
	if m.data.mode != dataBrowse {
		t.Fatalf("mode = %v, want browse after submit", m.data.mode)
	}
	m = run(t, m, cmd)
	if fake.lastSearch() != "11" {
		t.Fatalf("last search = %q, want 11", fake.lastSearch())
	}
	if m.snapshot.Query != "11" || len(m.snapshot.Items) != 1 || m.snapshot.Items[0].ID != 11 {
		t.Fatalf("snapshot = %+v, want only record 11", m.snapshot)
	}

	// Reopening the search prefills the active query; clearing it lists all.
	m, _ = press(t, m, "/")
	if m.data.input.Value() != "11" {
		t.Fatalf("search input = %q, want prefilled 11", m.data.input.Value())
	}
	m.data.input.SetValue("")
	m, cmd = press(t, m, "enter")
	m = run(t, m, cmd)
	if m.snapshot.Query != "" || len(m.snapshot.Items) != 12 {
		t.Fatalf("snapshot = %d items query %q, want all", len(m.snapshot.Items), m.snapshot.Query)
	}
}

func TestModel_PagingAndSort(t *testing.T) {
	m, _ := newDataModel(t, 12)

	if rows := m.pageRecords(); len(rows) != 10 || rows[0].ID != 12 {
		t.Fatalf("first page = %d rows starting at %d, want 10 from 12", len(rows), rows[0].ID)
	}
	m, _ = press(t, m, "]")
	if m.data.page != 2 || len(m.pageRecords()) != 2 {
		t.Fatalf("page %d rows %d, want page 2 with 2 rows", m.data.page, len(m.pageRecords()))
	}
	m, _ = press(t, m, "]")
	if m.data.page != 2 {
		t.Fatalf("page = %d, want clamped at 2", m.data.page)
	}
	m, _ = press(t, m, "z")
	if m.data.perPage != 20 || m.data.page != 1 {
		t.Fatalf("perPage %d page %d, want 20 on page 1", m.data.perPage, m.data.page)
	}
	m, _ = press(t, m, "s")
	if m.data.sort != state.SortUpdatedAsc || m.pageRecords()[0].ID != 1 {
		t.Fatalf("sort %s first %d, want oldest first", m.data.sort, m.pageRecords()[0].ID)
	}
	m, _ = press(t, m, "j", "j")
	if rec := m.selectedRecord(); rec == nil || rec.ID != 3 {
		t.Fatalf("selected = %+v, want record 3", rec)
	}
}

func TestModel_DeleteConfirm(t *testing.T) {
	m, fake := newDataModel(t, 3)

	m, _ = press(t, m, "d")
	if m.data.mode != dataConfirmDelete || m.data.targetID != 3 {
		t.Fatalf("mode %v target %d, want confirm for #3", m.data.mode, m.data.targetID)
	}
	m, cmd := press(t, m, "n")
	if cmd != nil || m.data.mode != dataBrowse || m.data.status != "delete cancelled" {
		t.Fatalf("cancel: mode %v status %q", m.data.mode, m.data.status)
	}

	m, cmd = press(t, m, "d", "y")
	m = run(t, m, cmd)
	if len(fake.deleted) != 1 || fake.deleted[0] != 3 {
		t.Fatalf("deleted = %v, want [3]", fake.deleted)
	}
	if m.data.status != "deleted #3" || m.data.statusErr || len(m.snapshot.Items) != 2 {
		t.Fatalf("status %q err %v items %d", m.data.status, m.data.statusErr, len(m.snapshot.Items))
	}
}

func TestModel_CreateRejectsEmptyText(t *testing.T) {
	m, _ := newDataModel(t, 2)

	m, cmd := press(t, m, "a", "enter")
	if cmd != nil || m.data.mode != dataEditing {
		t.Fatalf("empty create submitted: mode %v", m.data.mode)
	}
	if !m.data.statusErr || m.data.status != state.ErrEmptyText.Error() {
		t.Fatalf("status = %q, want empty text error", m.data.status)
	}

	m, _ = press(t, m, "h", "i")
	m, cmd = press(t, m, "enter")
	m = run(t, m, cmd)
	if m.data.status != "created #3" || len(m.snapshot.Items) != 3 {
		t.Fatalf("status %q items %d, want created #3", m.data.status, len(m.snapshot.Items))
	}
}

func TestModel_EditPrefillsSelection(t *testing.T) {
	m, _ := newDataModel(t, 2)

	m, _ = press(t, m, "e")
	if m.data.form != formPatch || m.data.targetID != 2 || m.data.input.Value() != "record 2" {
		t.Fatalf("form %v target %d value %q", m.data.form, m.data.targetID, m.data.input.Value())
	}
	m, _ = press(t, m, "esc", "u")
	if m.data.form != formReplace {
		t.Fatalf("form = %v, want replace", m.data.form)
	}
}

func TestModel_FetchByID(t *testing.T) {
	m, _ := newDataModel(t, 4)

	m, cmd := press(t, m, "f", "x", "enter")
	if cmd != nil || m.data.status != "id must be a positive integer" {
		t.Fatalf("status = %q, want id validation error", m.data.status)
	}

	m, _ = press(t, m, "esc", "f", "3")
	m, cmd = press(t, m, "enter")
	m = run(t, m, cmd)
	if m.data.fetched == nil || m.data.fetched.ID != 3 {
		t.Fatalf("fetched = %+v, want record 3", m.data.fetched)
	}

	m, _ = press(t, m, "f", "9")
	m, cmd = press(t, m, "enter")
	m = run(t, m, cmd)
	if m.data.fetched != nil || !strings.Contains(m.data.fetchErr, "#9") {
		t.Fatalf("fetched %+v err %q, want #9 failure", m.data.fetched, m.data.fetchErr)
	}
}

func TestModel_CycleThemeSavesPrefs(t *testing.T) {
	m, _ := newDataModel(t, 1)

	m, _ = press(t, m, "T")
	if m.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q, want Kanagawa", m.theme.Name)
	}
	p, err := prefs.Load(m.prefsPath)
	if err != nil {
		t.Fatalf("prefs.Load returned error: %v", err)
	}
	if p.Theme != "Kanagawa" {
		t.Fatalf("saved theme = %q, want Kanagawa", p.Theme)
	}
}

func TestModel_HelpOverlay(t *testing.T) {
	m, _ := newDataModel(t, 1)

	m, _ = press(t, m, "?")
	if !m.showHelp {
		t.Fatalf("? did not open help")
	}
	m, _ = press(t, m, "d")
	if m.showHelp || m.data.mode != dataBrowse {
		t.Fatalf("key while help open should only close it")
	}
}

func TestModel_CameraControls(t *testing.T) {
	m, ctrl, _ := newCameraModel(t)

	if ctrl.Snapshot().Status != stream.Idle {
		t.Fatalf("controller started before the camera view was shown")
	}
	m, _ = press(t, m, "2")
	if m.streamSnap.Status == stream.Idle {
		t.Fatalf("camera view did not start the session")
	}
	waitStatus(t, ctrl, stream.Live)

	next, _ := m.Update(previewTickMsg(time.Now()))
	m = next.(Model)
	next, _ = m.Update(streamMsg(ctrl.Snapshot()))
	m = next.(Model)
	next, _ = m.Update(previewTickMsg(time.Now()))
	m = next.(Model)
	if m.cam.preview == "" {
		t.Fatalf("preview empty while live")
	}

	m, _ = press(t, m, " ")
	snap := ctrl.Snapshot()
	if !snap.UserPaused || snap.Status != stream.Idle {
		t.Fatalf("after pause: paused=%v status=%v", snap.UserPaused, snap.Status)
	}
	if m.cam.preview != "" {
		t.Fatalf("preview kept after pause")
	}

	m, _ = press(t, m, "+", ">", "g")
	params := ctrl.Snapshot().Params
	if params.Width != 750 || !params.Grayscale {
		t.Fatalf("params = %+v, want width 750 grayscale", params)
	}

	m, _ = press(t, m, "i", "q")
	if !m.cam.editing || m.cam.input.Value() != "q" {
		t.Fatalf("source input not focused: editing=%v value=%q", m.cam.editing, m.cam.input.Value())
	}
	m.cam.input.SetValue("  http://cam.local/mjpg  ")
	m, _ = press(t, m, "enter")
	snap = ctrl.Snapshot()
	if m.cam.editing || snap.Params.SourceURL != "http://cam.local/mjpg" {
		t.Fatalf("source = %q editing=%v", snap.Params.SourceURL, m.cam.editing)
	}
	if snap.Status != stream.Idle {
		t.Fatalf("apply while paused: status = %v, want IDLE", snap.Status)
	}

	m, _ = press(t, m, "p")
	if ctrl.Snapshot().UserPaused {
		t.Fatalf("p did not resume")
	}
	waitStatus(t, ctrl, stream.Live)
	if out := m.View(); !strings.Contains(out, "Preview") {
		t.Fatalf("camera view missing preview box")
	}
}

func TestModel_LeavingCameraStopsSession(t *testing.T) {
	m, ctrl, backend := newCameraModel(t)

	m, _ = press(t, m, "2")
	waitStatus(t, ctrl, stream.Live)
	if tok := ctrl.Snapshot().Params.Token; tok != 1 {
		t.Fatalf("first token = %d, want 1", tok)
	}

	m, _ = press(t, m, "1")
	snap := ctrl.Snapshot()
	if snap.Status != stream.Idle || snap.UserPaused || snap.StreamURL != "" {
		t.Fatalf("after leaving camera: %+v, want IDLE without pause", snap)
	}
	if m.streamSnap.Status != stream.Idle || m.cam.preview != "" {
		t.Fatalf("model kept live state: status %v preview %q", m.streamSnap.Status, m.cam.preview)
	}
	deadline := time.Now().Add(2 * time.Second)
	for backend.abortCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("aborts = %d, want 1", backend.abortCount())
		}
		time.Sleep(2 * time.Millisecond)
	}

	m, _ = press(t, m, "3", "4")
	time.Sleep(20 * time.Millisecond)
	if got := backend.abortCount(); got != 1 {
		t.Fatalf("aborts = %d after other views, want 1", got)
	}
	if ctrl.Snapshot().Status != stream.Idle {
		t.Fatalf("session reconnected outside the camera view")
	}

	_, _ = press(t, m, "2")
	waitStatus(t, ctrl, stream.Live)
	if tok := ctrl.Snapshot().Params.Token; tok != 2 {
		t.Fatalf("token after returning = %d, want 2", tok)
	}
	if got := backend.abortCount(); got != 1 {
		t.Fatalf("aborts = %d after returning, want 1", got)
	}
}

func TestModel_CameraPresets(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, err := stream.New(stream.Options{Backend: backend, Connector: liveConnector{}, ClientID: "ui-test"})
	if err != nil {
		t.Fatalf("stream.New returned error: %v", err)
	}
	defer ctrl.Close()

	cfg := config.Default()
	cfg.Stream.Presets = []string{"", "rtsp://cam/one"}
	m := New(Options{Controller: ctrl, Config: &cfg})
	m.currentView = ViewCamera

	m, _ = press(t, m, "c")
	if m.cam.input.Value() != "rtsp://cam/one" {
		t.Fatalf("preset input = %q, want rtsp://cam/one", m.cam.input.Value())
	}
	m, _ = press(t, m, "c")
	if m.cam.input.Value() != "" || m.cam.presetIdx != 0 {
		t.Fatalf("presets did not wrap: idx %d value %q", m.cam.presetIdx, m.cam.input.Value())
	}
}

func TestModel_HealthPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/healthz/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"db":"up"}`))
	}))
	defer srv.Close()

	hc, err := fetch.NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("fetch.NewClient returned error: %v", err)
	}
	health := &state.HealthStore{}
	m := New(Options{API: api.New(hc), Health: health})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)

	m, _ = press(t, m, "3")
	m, cmd := press(t, m, "r")
	if !m.pinging {
		t.Fatalf("pinging = false after r")
	}
	m = run(t, m, cmd)
	if m.pinging || m.healthSnap.Status != state.HealthOK || m.healthSnap.Payload["db"] != "up" {
		t.Fatalf("health = %+v, want OK with payload", m.healthSnap)
	}
	if health.Snapshot().Status != state.HealthOK {
		t.Fatalf("manual ping not recorded in the shared store")
	}
	if out := m.View(); !strings.Contains(out, "OK") {
		t.Fatalf("health view missing status")
	}
}

func TestModel_LogsView(t *testing.T) {
	m, _ := newDataModel(t, 1)
	lines := []string{
		`{"level":"debug","ts":"2025-01-02T03:04:05.000Z","logger":"periscope.stream","msg":"poll"}`,
		`{"level":"warn","ts":"2025-01-02T03:04:06.000Z","logger":"periscope.health","msg":"health check failed","error":"refused"}`,
	}
	if err := os.WriteFile(m.config.LogPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	m, cmd := press(t, m, "4")
	m = run(t, m, cmd)
	if len(m.logState.entries) != 2 || m.logState.err != nil {
		t.Fatalf("entries = %d err %v, want 2", len(m.logState.entries), m.logState.err)
	}
	if out := m.logViewport.View(); !strings.Contains(out, "health check failed") {
		t.Fatalf("viewport missing warn entry:\n%s", out)
	}

	m, _ = press(t, m, "v", "v")
	if out := m.logViewport.View(); strings.Contains(out, "poll") {
		t.Fatalf("debug entry shown at warn level:\n%s", out)
	}

	m, _ = press(t, m, " ")
	if m.logState.follow {
		t.Fatalf("space did not pause follow")
	}
}
