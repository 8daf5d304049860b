package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/periscope/internal/stream"
)

const (
	widthStep    = 10
	widthStepBig = 100
	controlsW    = 52
)

type cameraState struct {
	editing   bool
	input     textinput.Model
	presets   []string
	presetIdx int
	preview   string
}

func newCameraState(presets []string) cameraState {
	ti := textinput.New()
	ti.Placeholder = "rtsp://... or http://... (MJPEG); blank uses the backend CAMERA_URL"
	ti.CharLimit = 1024
	if len(presets) == 0 {
		presets = []string{""}
	}
	return cameraState{input: ti, presets: presets}
}

func presetLabel(p string) string {
	if p == "" {
		return "(backend default CAMERA_URL)"
	}
	return p
}

// handleCameraKey processes keyboard input for the camera view.
func (m Model) handleCameraKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.ctrl == nil {
		return m, nil
	}
	params := m.ctrl.Snapshot().Params

	switch {
	case key.Matches(msg, m.keys.EditSource):
		m.cam.editing = true
		m.cam.input.CursorEnd()
		return m, m.cam.input.Focus()

	case key.Matches(msg, m.keys.NextPreset):
		m.cam.presetIdx = (m.cam.presetIdx + 1) % len(m.cam.presets)
		m.cam.input.SetValue(m.cam.presets[m.cam.presetIdx])

	case key.Matches(msg, m.keys.ApplySource):
		m.ctrl.ApplySource(m.cam.input.Value())

	case key.Matches(msg, m.keys.WidthUp):
		m.ctrl.SetWidth(params.Width + widthStep)
	case key.Matches(msg, m.keys.WidthDown):
		m.ctrl.SetWidth(params.Width - widthStep)
	case key.Matches(msg, m.keys.WidthUpBig):
		m.ctrl.SetWidth(params.Width + widthStepBig)
	case key.Matches(msg, m.keys.WidthDnBig):
		m.ctrl.SetWidth(params.Width - widthStepBig)

	case key.Matches(msg, m.keys.Grayscale):
		m.ctrl.SetGrayscale(!params.Grayscale)

	case key.Matches(msg, m.keys.Pause):
		m.ctrl.TogglePause()

	case key.Matches(msg, m.keys.Reload):
		m.ctrl.Reload()

	default:
		return m, nil
	}

	m.streamSnap = m.ctrl.Snapshot()
	if m.streamSnap.Status != stream.Live {
		m.cam.preview = ""
	}
	return m, nil
}

// handleCameraInput handles keys while the source field is focused. Enter
// applies the source, Esc leaves the field without applying.
func (m Model) handleCameraInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.cam.editing = false
		m.cam.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		m.cam.editing = false
		m.cam.input.Blur()
		if m.ctrl != nil {
			m.ctrl.ApplySource(m.cam.input.Value())
			m.streamSnap = m.ctrl.Snapshot()
			m.cam.preview = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.cam.input, cmd = m.cam.input.Update(msg)
	return m, cmd
}

// previewArea is the cell budget for the frame preview.
func (m Model) previewArea() (int, int) {
	height := m.contentHeight()
	if m.width >= controlsW+40 {
		return m.width - controlsW - 4, height - 2
	}
	return m.width - 2, maxInt(height-18, 4)
}

// refreshPreview re-renders the latest frame while the camera view is
// visible and live.
func (m *Model) refreshPreview() {
	if m.currentView != ViewCamera || m.ctrl == nil || m.streamSnap.Status != stream.Live {
		return
	}
	cols, rows := m.previewArea()
	m.cam.preview = renderFrame(m.ctrl.Frame(), cols, rows)
}

func (m *Model) resizeInputs() {
	m.cam.input.Width = maxInt(minInt(m.width, controlsW)-12, 10)
	m.data.input.Width = maxInt(m.width-24, 10)
}

// renderCamera renders the camera controls next to (or above) the preview.
func (m Model) renderCamera() string {
	if m.ctrl == nil {
		return m.theme.Styles().MutedText.Render("camera unavailable")
	}
	height := m.contentHeight()
	controls := m.renderCameraControls()

	if m.width >= controlsW+40 {
		left := m.renderBox("Camera", controls, controlsW+2, height, m.cam.editing)
		right := m.renderBox("Preview", m.renderPreviewBody(), m.width-controlsW-2, height, !m.cam.editing)
		return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}

	ctrlH := strings.Count(controls, "\n") + 3
	top := m.renderBox("Camera", controls, m.width, ctrlH, m.cam.editing)
	bottom := m.renderBox("Preview", m.renderPreviewBody(), m.width, maxInt(height-ctrlH, 4), !m.cam.editing)
	return top + "\n" + bottom
}

func (m Model) renderCameraControls() string {
	styles := m.theme.Styles()
	snap := m.streamSnap
	p := snap.Params
	label := func(s string) string { return styles.MutedText.Render(padRight(s, 10)) }
	width := controlsW - 12

	var lines []string

	lines = append(lines, label("Preset")+styles.Text.Render(truncate(presetLabel(m.cam.presets[m.cam.presetIdx]), width)))
	lines = append(lines, label("Input")+m.cam.input.View())
	active := p.SourceURL
	if active == "" {
		active = "(backend default)"
	}
	lines = append(lines, label("Source")+styles.AccentText.Render(truncateMiddle(active, width)))
	if snap.SourceHint != "" {
		lines = append(lines, label("")+styles.WarningText.Render(truncate(snap.SourceHint, width)))
	}

	lines = append(lines, "")
	lines = append(lines, label("Width")+styles.Text.Render(fmt.Sprintf("%d px", p.Width))+
		styles.FaintText.Render(fmt.Sprintf("  (%d-%d)", stream.MinWidth, stream.MaxWidth)))
	lines = append(lines, label("Grayscale")+styles.Text.Render(ternary(p.Grayscale, "on", "off")))

	status := snap.Status.String()
	badge := m.theme.Styles().StatusStyle(status).Render(status)
	if snap.UserPaused {
		badge += " " + m.theme.Styles().StatusStyle("PAUSED").Render("PAUSED")
	} else if snap.Disconnecting {
		badge += " " + styles.FaintText.Render("reconnecting…")
	}
	lines = append(lines, label("Status")+badge)
	if snap.Message != "" {
		msgStyle := styles.MutedText
		if snap.Status == stream.Error {
			msgStyle = styles.DangerText
		}
		lines = append(lines, label("")+msgStyle.Render(truncate(snap.Message, width)))
	}
	if snap.FrameSize.X > 0 {
		lines = append(lines, label("Frame")+styles.Text.Render(fmt.Sprintf("%dx%d", snap.FrameSize.X, snap.FrameSize.Y)))
	}

	lines = append(lines, "")
	lines = append(lines, label("Client")+styles.FaintText.Render(truncate(p.ClientID, width)))
	lines = append(lines, label("Token")+styles.FaintText.Render(fmt.Sprintf("%d", p.Token)))
	reqURL := snap.StreamURL
	if reqURL == "" || snap.Paused() {
		reqURL = "(paused)"
	}
	lines = append(lines, label("Request")+styles.FaintText.Render(truncateMiddle(reqURL, width)))

	lines = append(lines, "")
	lines = append(lines, m.renderProof(label, width)...)
	return strings.Join(lines, "\n")
}

func (m Model) renderProof(label func(string) string, width int) []string {
	styles := m.theme.Styles()
	snap := m.streamSnap

	switch {
	case snap.ProofPending:
		return []string{label("Proof") + styles.FaintText.Render("fetching…")}
	case snap.ProofErr != "":
		return []string{label("Proof") + styles.DangerText.Render(truncate(snap.ProofErr, width))}
	case snap.Proof == nil:
		return []string{label("Proof") + styles.FaintText.Render("(none)")}
	}

	pr := snap.Proof
	via := ternary(pr.ViaBackend, "via backend", "direct")
	out := []string{label("Proof") + styles.SuccessText.Render(via)}
	rows := []struct{ k, v string }{
		{"server", pr.ServerTime},
		{"camera", strings.TrimSpace(pr.CameraProtocol + " " + pr.CameraHost)},
		{"request", pr.RequestID},
		{"signature", pr.CameraSignature},
	}
	for _, r := range rows {
		if r.v == "" {
			continue
		}
		out = append(out, label(" "+r.k)+styles.Text.Render(truncateMiddle(r.v, width)))
	}
	return out
}

func (m Model) renderPreviewBody() string {
	styles := m.theme.Styles()
	snap := m.streamSnap
	switch {
	case snap.Paused():
		return styles.MutedText.Render("stream paused")
	case snap.Status == stream.Error:
		return styles.DangerText.Render(snap.Message)
	case snap.Status == stream.Connecting:
		return styles.WarningText.Render("connecting…")
	case snap.Status == stream.Live && m.cam.preview != "":
		return m.cam.preview
	case snap.Status == stream.Live:
		return styles.SuccessText.Render("live")
	default:
		return styles.FaintText.Render("idle")
	}
}
