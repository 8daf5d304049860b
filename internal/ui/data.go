package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/five82/periscope/internal/api"
	"github.com/five82/periscope/internal/state"
)

type dataMode int

const (
	dataBrowse dataMode = iota
	dataSearching
	dataEditing
	dataConfirmDelete
	dataFetching
)

// formKind selects which write an open form submits.
type formKind int

const (
	formCreate formKind = iota
	formReplace
	formPatch
)

func (f formKind) label() string {
	switch f {
	case formReplace:
		return "Update (PUT)"
	case formPatch:
		return "Patch (PATCH)"
	default:
		return "Create"
	}
}

type dataState struct {
	mode     dataMode
	form     formKind
	targetID int64
	input    textinput.Model

	sort     state.SortMode
	perPage  int
	page     int
	selected int

	status    string
	statusErr bool
	busy      bool

	fetched  *api.Record
	fetchErr string
}

func newDataState() dataState {
	ti := textinput.New()
	ti.CharLimit = 2000
	return dataState{
		input:   ti,
		sort:    state.SortUpdatedDesc,
		perPage: state.DefaultPageSize,
		page:    1,
	}
}

func (d *dataState) clampSelection(rows []api.Record) {
	if d.selected >= len(rows) {
		d.selected = len(rows) - 1
	}
	if d.selected < 0 {
		d.selected = 0
	}
}

func (d *dataState) openInput(mode dataMode, placeholder, value string) {
	d.mode = mode
	d.input.Placeholder = placeholder
	d.input.SetValue(value)
	d.input.CursorEnd()
	d.input.Focus()
}

func (d *dataState) closeInput() {
	d.mode = dataBrowse
	d.input.Blur()
	d.input.SetValue("")
}

func (d *dataState) setStatus(msg string, isErr bool) {
	d.status = msg
	d.statusErr = isErr
}

// sortedRecords applies the current sort to the store snapshot.
func (m Model) sortedRecords() []api.Record {
	return state.SortRecords(m.snapshot.Items, m.data.sort)
}

// pageRecords returns the rows on the current page.
func (m Model) pageRecords() []api.Record {
	rows, _, _ := state.Paginate(m.sortedRecords(), m.data.page, m.data.perPage)
	return rows
}

func (m Model) selectedRecord() *api.Record {
	rows := m.pageRecords()
	if m.data.selected < 0 || m.data.selected >= len(rows) {
		return nil
	}
	rec := rows[m.data.selected]
	return &rec
}

// handleDataKey processes keyboard input for the data view.
func (m Model) handleDataKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.pageRecords()
	_, page, totalPages := state.Paginate(m.sortedRecords(), m.data.page, m.data.perPage)
	m.data.page = page

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.data.selected < len(rows)-1 {
			m.data.selected++
		}
	case key.Matches(msg, m.keys.Up):
		if m.data.selected > 0 {
			m.data.selected--
		}
	case key.Matches(msg, m.keys.Top):
		m.data.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.data.selected = maxInt(len(rows)-1, 0)

	case key.Matches(msg, m.keys.NextPage):
		if m.data.page < totalPages {
			m.data.page++
			m.data.selected = 0
		}
	case key.Matches(msg, m.keys.PrevPage):
		if m.data.page > 1 {
			m.data.page--
			m.data.selected = 0
		}
	case key.Matches(msg, m.keys.CycleSort):
		m.data.sort = m.data.sort.Next()
		m.data.page = 1
		m.data.selected = 0
	case key.Matches(msg, m.keys.PageSize):
		m.data.perPage = state.NextPageSize(m.data.perPage)
		m.data.page = 1
		m.data.selected = 0

	case key.Matches(msg, m.keys.Refresh):
		return m, m.storeCmd("refresh", func(ctx context.Context, s *state.Store) (*api.Record, error) {
			return nil, s.Refresh(ctx)
		})

	case key.Matches(msg, m.keys.Search):
		m.data.openInput(dataSearching, "search text (blank lists everything)", m.snapshot.Query)
	case key.Matches(msg, m.keys.Create):
		m.data.form = formCreate
		m.data.targetID = 0
		m.data.openInput(dataEditing, "record text", "")
	case key.Matches(msg, m.keys.Replace), key.Matches(msg, m.keys.Edit):
		rec := m.selectedRecord()
		if rec == nil {
			m.data.setStatus("select a record first", true)
			return m, nil
		}
		m.data.form = formReplace
		if key.Matches(msg, m.keys.Edit) {
			m.data.form = formPatch
		}
		m.data.targetID = rec.ID
		m.data.openInput(dataEditing, "record text", rec.Text)
	case key.Matches(msg, m.keys.Delete):
		rec := m.selectedRecord()
		if rec == nil {
			m.data.setStatus("select a record first", true)
			return m, nil
		}
		m.data.targetID = rec.ID
		m.data.mode = dataConfirmDelete
	case key.Matches(msg, m.keys.FetchByID):
		m.data.openInput(dataFetching, "record id", "")
	}
	return m, nil
}

// handleDataInput handles keys while a data text field or the delete
// confirmation is active.
func (m Model) handleDataInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.data.mode == dataConfirmDelete {
		id := m.data.targetID
		m.data.mode = dataBrowse
		if !key.Matches(msg, m.keys.ConfirmYes) {
			m.data.setStatus("delete cancelled", false)
			return m, nil
		}
		m.data.busy = true
		return m, m.storeCmd(fmt.Sprintf("deleted #%d", id), func(ctx context.Context, s *state.Store) (*api.Record, error) {
			return nil, s.Delete(ctx, id)
		})
	}

	switch {
	case key.Matches(msg, m.keys.Escape):
		m.data.closeInput()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		return m.submitDataInput()
	}

	var cmd tea.Cmd
	m.data.input, cmd = m.data.input.Update(msg)
	return m, cmd
}

func (m Model) submitDataInput() (tea.Model, tea.Cmd) {
	value := m.data.input.Value()

	switch m.data.mode {
	case dataSearching:
		term := strings.TrimSpace(value)
		m.data.closeInput()
		m.data.page = 1
		m.data.selected = 0
		return m, m.storeCmd("search", func(ctx context.Context, s *state.Store) (*api.Record, error) {
			return nil, s.Search(ctx, term)
		})

	case dataEditing:
		if strings.TrimSpace(value) == "" {
			m.data.setStatus(state.ErrEmptyText.Error(), true)
			return m, nil
		}
		form, id := m.data.form, m.data.targetID
		m.data.closeInput()
		m.data.busy = true
		var action string
		var run func(ctx context.Context, s *state.Store) (*api.Record, error)
		switch form {
		case formReplace:
			action = fmt.Sprintf("updated #%d", id)
			run = func(ctx context.Context, s *state.Store) (*api.Record, error) {
				rec, err := s.Update(ctx, id, value)
				return &rec, err
			}
		case formPatch:
			action = fmt.Sprintf("patched #%d", id)
			run = func(ctx context.Context, s *state.Store) (*api.Record, error) {
				rec, err := s.Patch(ctx, id, value)
				return &rec, err
			}
		default:
			action = "created"
			run = func(ctx context.Context, s *state.Store) (*api.Record, error) {
				rec, err := s.Create(ctx, value)
				return &rec, err
			}
		}
		return m, m.storeCmd(action, run)

	case dataFetching:
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || id < 1 {
			m.data.setStatus("id must be a positive integer", true)
			return m, nil
		}
		m.data.closeInput()
		return m, m.fetchRecordCmd(id)
	}

	m.data.closeInput()
	return m, nil
}

// Data messages

type dataResultMsg struct {
	action   string
	record   *api.Record
	err      error
	snapshot state.Snapshot
}

type fetchedMsg struct {
	id     int64
	record api.Record
	err    error
}

// storeCmd runs one store call off the update loop and reports the outcome
// with a fresh snapshot.
func (m Model) storeCmd(action string, run func(ctx context.Context, s *state.Store) (*api.Record, error)) tea.Cmd {
	store := m.store
	if store == nil {
		return nil
	}
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, storeTimeout)
		defer cancel()
		rec, err := run(ctx, store)
		return dataResultMsg{action: action, record: rec, err: err, snapshot: store.Snapshot()}
	}
}

func (m Model) fetchRecordCmd(id int64) tea.Cmd {
	store := m.store
	if store == nil {
		return nil
	}
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, storeTimeout)
		defer cancel()
		rec, err := store.Get(ctx, id)
		return fetchedMsg{id: id, record: rec, err: err}
	}
}

func (m *Model) handleDataResult(msg dataResultMsg) {
	m.data.busy = false
	m.snapshot = msg.snapshot
	m.data.clampSelection(m.pageRecords())

	if msg.err != nil {
		m.data.setStatus(fmt.Sprintf("%s failed: %v", msg.action, msg.err), true)
		if !errors.Is(msg.err, state.ErrEmptyText) {
			m.logger.Warn("data action failed", zap.String("action", msg.action), zap.Error(msg.err))
		}
		return
	}
	switch msg.action {
	case "refresh", "search":
		m.data.setStatus("", false)
	case "created":
		if msg.record != nil && msg.record.ID != 0 {
			m.data.setStatus(fmt.Sprintf("created #%d", msg.record.ID), false)
		} else {
			m.data.setStatus("created", false)
		}
	default:
		m.data.setStatus(msg.action, false)
	}
}

func (m *Model) handleFetched(msg fetchedMsg) {
	if msg.err != nil {
		m.data.fetched = nil
		m.data.fetchErr = fmt.Sprintf("#%d: %v", msg.id, msg.err)
		return
	}
	rec := msg.record
	m.data.fetched = &rec
	m.data.fetchErr = ""
}

// renderData renders the record table with its controls.
func (m Model) renderData() string {
	styles := m.theme.Styles()
	height := m.contentHeight()
	width := m.width

	sorted := m.sortedRecords()
	rows, page, totalPages := state.Paginate(sorted, m.data.page, m.data.perPage)

	var lines []string

	// Controls line
	query := m.snapshot.Query
	if query == "" {
		query = "(all)"
	}
	controls := []string{
		styles.MutedText.Render("search:") + " " + styles.AccentText.Render(truncate(query, 30)),
		styles.MutedText.Render("sort:") + " " + styles.Text.Render(m.data.sort.Label()),
		styles.MutedText.Render("page:") + " " + styles.Text.Render(fmt.Sprintf("%d/%d", page, totalPages)),
		styles.MutedText.Render("rows:") + " " + styles.Text.Render(fmt.Sprintf("%d", m.data.perPage)),
		styles.MutedText.Render("total:") + " " + styles.Text.Render(fmt.Sprintf("%d", len(sorted))),
	}
	if m.snapshot.Loading || m.data.busy {
		controls = append(controls, styles.WarningText.Render("loading…"))
	}
	lines = append(lines, strings.Join(controls, "  "))

	// Reserve space for the footer block.
	footer := m.renderDataFooter(styles)
	footerLines := strings.Count(footer, "\n") + 1
	tableHeight := maxInt(height-1-footerLines, 3)

	lines = append(lines, m.renderDataTable(rows, width, tableHeight, styles))
	lines = append(lines, footer)
	return strings.Join(lines, "\n")
}

func (m Model) renderDataTable(rows []api.Record, width, height int, styles Styles) string {
	const idW, updatedW = 7, 20
	textW := maxInt(width-idW-updatedW-6, 10)

	header := styles.MutedText.Bold(true).Render(
		padRight("ID", idW) + "  " + padRight("Text", textW) + "  " + padRight("Updated", updatedW))

	body := make([]string, 0, len(rows))
	if len(rows) == 0 {
		msg := "No records"
		if m.snapshot.Query != "" {
			msg = fmt.Sprintf("No records match %q", m.snapshot.Query)
		}
		body = append(body, styles.FaintText.Render(msg))
	}
	for i, rec := range rows {
		updated := rec.UpdatedAt
		if ts := rec.ParsedUpdatedAt(); !ts.IsZero() {
			updated = ts.Local().Format("2006-01-02 15:04:05")
		}
		line := padRight(fmt.Sprintf("%d", rec.ID), idW) + "  " +
			padRight(truncate(singleLine(rec.Text), textW), textW) + "  " +
			padRight(truncate(updated, updatedW), updatedW)
		if i == m.data.selected {
			body = append(body, styles.Selected.Width(width-2).Render(line))
		} else {
			body = append(body, styles.Text.Render(line))
		}
	}

	content := header + "\n" + strings.Join(body, "\n")
	return m.renderBox("Records", content, width, height, m.data.mode == dataBrowse)
}

func (m Model) renderDataFooter(styles Styles) string {
	var lines []string

	switch m.data.mode {
	case dataSearching:
		lines = append(lines, styles.AccentText.Render("Search ")+m.data.input.View())
	case dataEditing:
		label := m.data.form.label()
		if m.data.form != formCreate {
			label += fmt.Sprintf(" #%d", m.data.targetID)
		}
		lines = append(lines, styles.AccentText.Render(label+" ")+m.data.input.View())
	case dataFetching:
		lines = append(lines, styles.AccentText.Render("Fetch id ")+m.data.input.View())
	case dataConfirmDelete:
		lines = append(lines, styles.DangerText.Render(fmt.Sprintf("Delete #%d? ", m.data.targetID))+
			styles.MutedText.Render("y to confirm, any other key cancels"))
	}

	if m.data.status != "" {
		style := styles.SuccessText
		if m.data.statusErr {
			style = styles.DangerText
		}
		lines = append(lines, style.Render(m.data.status))
	}
	if err := m.snapshot.LastError; err != nil {
		lines = append(lines, styles.DangerText.Render("ERROR ")+styles.DangerText.Render(truncate(err.Error(), maxInt(m.width-8, 10))))
	}

	if m.data.fetched != nil {
		rec := m.data.fetched
		box := lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(lipgloss.Color(m.theme.BorderMuted))
		detail := fmt.Sprintf("#%d  %s\ncreated %s  updated %s",
			rec.ID, truncate(singleLine(rec.Text), maxInt(m.width-10, 10)), rec.CreatedAt, rec.UpdatedAt)
		lines = append(lines, box.Render(styles.InfoText.Render("Fetched ")+styles.Text.Render(detail)))
	} else if m.data.fetchErr != "" {
		lines = append(lines, styles.DangerText.Render("Fetch "+m.data.fetchErr))
	}

	if len(lines) == 0 {
		return styles.FaintText.Render("a:create  u:update  e:patch  d:delete  f:fetch  /:search  s:sort  z:rows  [ ]:page")
	}
	return strings.Join(lines, "\n")
}
