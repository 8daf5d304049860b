package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout reports that a request exceeded the client timeout.
var ErrTimeout = errors.New("request timeout")

// StatusError is returned for any non-2xx response. Body holds the parsed
// response: decoded JSON when possible, raw text otherwise.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   any
}

func (e *StatusError) Error() string {
	detail := e.Detail()
	if detail == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Status, detail)
}

// Detail extracts a short human message from the body. DRF style
// {"detail": "..."} and {"error": "..."} payloads are recognised.
func (e *StatusError) Detail() string {
	switch body := e.Body.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(body)
	case map[string]any:
		for _, key := range []string{"detail", "error", "message"} {
			if s, ok := body[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return fmt.Sprint(e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
