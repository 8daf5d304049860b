package api

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	// FieldText is the default record schema field.
	FieldText = "text"
	// FieldContent is the alternate schema some deployments use.
	FieldContent = "content"
)

// Record mirrors one /data/ entry. Text holds whichever of text or content
// the backend sent.
type Record struct {
	ID        int64  `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
	UpdatedAt string `json:"updated_at" yaml:"updated_at"`
}

// UnmarshalJSON accepts both the text and content schema variants.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        int64   `json:"id"`
		Text      *string `json:"text"`
		Content   *string `json:"content"`
		CreatedAt string  `json:"created_at"`
		UpdatedAt string  `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = raw.ID
	r.CreatedAt = raw.CreatedAt
	r.UpdatedAt = raw.UpdatedAt
	switch {
	case raw.Text != nil:
		r.Text = *raw.Text
	case raw.Content != nil:
		r.Text = *raw.Content
	default:
		r.Text = ""
	}
	return nil
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (r Record) ParsedCreatedAt() time.Time {
	return parseTime(r.CreatedAt)
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (r Record) ParsedUpdatedAt() time.Time {
	return parseTime(r.UpdatedAt)
}

// Health mirrors /healthz/. Raw keeps the full payload for display.
type Health struct {
	OK  bool           `json:"ok" yaml:"ok"`
	Raw map[string]any `json:"-" yaml:"raw,omitempty"`
}

// Proof is the server-attested session metadata from /stream/proof/.
type Proof struct {
	ViaBackend      bool   `json:"via_backend" yaml:"via_backend"`
	ClientID        string `json:"client_id" yaml:"client_id"`
	RequestID       string `json:"request_id" yaml:"request_id"`
	ServerTime      string `json:"server_time" yaml:"server_time"`
	CameraProtocol  string `json:"camera_protocol" yaml:"camera_protocol"`
	CameraHost      string `json:"camera_host" yaml:"camera_host"`
	CameraSignature string `json:"camera_signature" yaml:"camera_signature"`
}

// ParsedServerTime returns the proof timestamp when parseable.
func (p Proof) ParsedServerTime() time.Time {
	return parseTime(p.ServerTime)
}

// AbortResult mirrors the /stream/abort/ response.
type AbortResult struct {
	Aborted bool `json:"aborted" yaml:"aborted"`
}

// StreamQuery carries the parameters encoded into /stream/ and
// /stream/proof/ URLs.
type StreamQuery struct {
	SourceURL string
	Grayscale bool
	Width     int
	ClientID  string
	Token     uint64
}

func normalizeField(field string) string {
	if strings.EqualFold(strings.TrimSpace(field), FieldContent) {
		return FieldContent
	}
	return FieldText
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
