package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file is not an error.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one structured log line.
type Entry struct {
	Time   time.Time
	Level  zapcore.Level
	Logger string
	Msg    string
	Caller string
	Fields map[string]any
	Raw    string
}

var timeLayouts = []string{
	"2006-01-02T15:04:05.000Z0700",
	time.RFC3339Nano,
	time.RFC3339,
}

var reservedKeys = map[string]struct{}{
	"ts": {}, "level": {}, "logger": {}, "msg": {}, "caller": {}, "stacktrace": {},
}

// Parse decodes one JSON line written by the file logger. Lines that are
// not JSON objects come back as an info entry whose Msg is the raw text.
func Parse(line string) Entry {
	entry := Entry{Level: zapcore.InfoLevel, Raw: line, Msg: strings.TrimSpace(line)}

	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return entry
	}

	if v, ok := raw["level"].(string); ok {
		if lvl, err := zapcore.ParseLevel(v); err == nil {
			entry.Level = lvl
		}
	}
	if v, ok := raw["ts"].(string); ok {
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				entry.Time = ts
				break
			}
		}
	}
	entry.Logger, _ = raw["logger"].(string)
	entry.Msg, _ = raw["msg"].(string)
	entry.Caller, _ = raw["caller"].(string)

	for k, v := range raw {
		if _, skip := reservedKeys[k]; skip {
			continue
		}
		if entry.Fields == nil {
			entry.Fields = make(map[string]any)
		}
		entry.Fields[k] = v
	}
	return entry
}

// ParseAll parses every line, skipping blank ones.
func ParseAll(lines []string) []Entry {
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, Parse(line))
	}
	return out
}

// Filter keeps entries at or above min.
func Filter(entries []Entry, min zapcore.Level) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Level >= min {
			out = append(out, e)
		}
	}
	return out
}

// FieldString renders Fields as sorted key=value pairs.
func (e Entry) FieldString() string {
	if len(e.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := e.Fields[k]
		var s string
		switch val := v.(type) {
		case string:
			s = val
			if strings.ContainsAny(s, " \t") {
				s = fmt.Sprintf("%q", s)
			}
		default:
			b, err := json.Marshal(val)
			if err != nil {
				s = fmt.Sprint(val)
			} else {
				s = string(b)
			}
		}
		parts = append(parts, k+"="+s)
	}
	return strings.Join(parts, " ")
}
