package stream

import (
	"regexp"
	"strings"

	"github.com/five82/periscope/internal/api"
)

// Width bounds for the requested frame width.
const (
	MinWidth     = 160
	MaxWidth     = 1920
	DefaultWidth = 640
)

// Status is the connection state shown next to the viewer.
type Status int

const (
	Idle Status = iota
	Connecting
	Live
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Connecting:
		return "CONNECTING"
	case Live:
		return "LIVE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Params identifies one logical viewing session.
type Params struct {
	SourceURL string `json:"source_url" yaml:"source_url"`
	Grayscale bool   `json:"grayscale" yaml:"grayscale"`
	Width     int    `json:"width" yaml:"width"`
	ClientID  string `json:"client_id" yaml:"client_id"`
	Token     uint64 `json:"token" yaml:"token"`
}

// Query converts p into the API's URL parameters.
func (p Params) Query() api.StreamQuery {
	return api.StreamQuery{
		SourceURL: p.SourceURL,
		Grayscale: p.Grayscale,
		Width:     p.Width,
		ClientID:  p.ClientID,
		Token:     p.Token,
	}
}

// ClampWidth forces w into [MinWidth, MaxWidth].
func ClampWidth(w int) int {
	if w < MinWidth {
		return MinWidth
	}
	if w > MaxWidth {
		return MaxWidth
	}
	return w
}

var sourcePattern = regexp.MustCompile(`(?i)^(https?:|rtsp:)`)

// SourceHint returns a warning for a non-empty source that is neither an
// http(s) MJPEG nor an rtsp URL. The source is still accepted.
func SourceHint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || sourcePattern.MatchString(raw) {
		return ""
	}
	return "source does not look like an http(s) MJPEG or rtsp URL"
}
