package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(APIBaseEnv, "")

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != defaultAPIBase {
		t.Fatalf("APIBase = %q, want %q", cfg.APIBase, defaultAPIBase)
	}
	if cfg.RequestTimeout != defaultRequestTimeout {
		t.Fatalf("RequestTimeout = %v, want %v", cfg.RequestTimeout, defaultRequestTimeout)
	}
	if cfg.ContentField != "text" {
		t.Fatalf("ContentField = %q, want text", cfg.ContentField)
	}

	wantLog, err := expandPath(defaultLogPath)
	if err != nil {
		t.Fatalf("expandPath(defaultLogPath) returned error: %v", err)
	}
	if cfg.LogPath != wantLog {
		t.Fatalf("LogPath = %q, want %q", cfg.LogPath, wantLog)
	}
	if cfg.Stream.Width != 640 || cfg.Stream.Grayscale {
		t.Fatalf("Stream = %+v, want width 640 color", cfg.Stream)
	}
	if cfg.Stream.ReconnectDelay != 500*time.Millisecond {
		t.Fatalf("ReconnectDelay = %v, want 500ms", cfg.Stream.ReconnectDelay)
	}
	if cfg.Stream.ConnectTimeout != 8*time.Second {
		t.Fatalf("ConnectTimeout = %v, want 8s", cfg.Stream.ConnectTimeout)
	}
	if len(cfg.Stream.Presets) != 3 || cfg.Stream.Presets[0] != "" {
		t.Fatalf("Presets = %q, want 3 entries starting with backend default", cfg.Stream.Presets)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(APIBaseEnv, "")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_base = "  http://10.0.0.5:9999/api  "
request_timeout = "3s"
content_field = " Content "
log_path = "  ~/.periscope/app.log  "
log_level = "DEBUG"
health_interval = "1m"

[stream]
width = 800
grayscale = true
reconnect_delay = "250ms"
connect_timeout = "0s"
frame_poll_interval = "20ms"
presets = [" http://cam/mjpeg ", ""]
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != "http://10.0.0.5:9999/api" {
		t.Fatalf("APIBase = %q, want %q", cfg.APIBase, "http://10.0.0.5:9999/api")
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
	if cfg.ContentField != "content" {
		t.Fatalf("ContentField = %q, want content", cfg.ContentField)
	}
	if !strings.HasPrefix(cfg.LogPath, home) {
		t.Fatalf("LogPath = %q, want it under HOME %q", cfg.LogPath, home)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.HealthInterval != time.Minute {
		t.Fatalf("HealthInterval = %v, want 1m", cfg.HealthInterval)
	}
	if cfg.Stream.Width != 800 || !cfg.Stream.Grayscale {
		t.Fatalf("Stream = %+v, want width 800 grayscale", cfg.Stream)
	}
	if cfg.Stream.ReconnectDelay != 250*time.Millisecond {
		t.Fatalf("ReconnectDelay = %v, want 250ms", cfg.Stream.ReconnectDelay)
	}
	if cfg.Stream.ConnectTimeout != 0 {
		t.Fatalf("ConnectTimeout = %v, want 0 (disabled)", cfg.Stream.ConnectTimeout)
	}
	if cfg.Stream.FramePollInterval != 20*time.Millisecond {
		t.Fatalf("FramePollInterval = %v, want 20ms", cfg.Stream.FramePollInterval)
	}
	if len(cfg.Stream.Presets) != 2 || cfg.Stream.Presets[0] != "http://cam/mjpeg" {
		t.Fatalf("Presets = %q, want trimmed entries", cfg.Stream.Presets)
	}
}

func TestLoad_EnvOverridesAPIBase(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(APIBaseEnv, "  https://cams.example.com/api  ")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_base = "http://file/api"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != "https://cams.example.com/api" {
		t.Fatalf("APIBase = %q, want env override", cfg.APIBase)
	}

	cfg, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != "https://cams.example.com/api" {
		t.Fatalf("APIBase = %q, want env override without a file", cfg.APIBase)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(APIBaseEnv, "   ")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_base = "   "
log_path = ""
request_timeout = ""
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != defaultAPIBase {
		t.Fatalf("APIBase = %q, want %q", cfg.APIBase, defaultAPIBase)
	}
	if cfg.RequestTimeout != defaultRequestTimeout {
		t.Fatalf("RequestTimeout = %v, want %v", cfg.RequestTimeout, defaultRequestTimeout)
	}
	if cfg.Stream.ConnectTimeout != defaultConnectTimeout {
		t.Fatalf("ConnectTimeout = %v, want default when key is absent", cfg.Stream.ConnectTimeout)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"invalid toml", `api_base = [`, "parse config"},
		{"bad duration", `request_timeout = "soon"`, "request_timeout"},
		{"negative duration", "[stream]\nreconnect_delay = \"-1s\"", "must not be negative"},
		{"unknown content field", `content_field = "body"`, "content_field"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatalf("Load returned nil error, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load error = %q, want it to mention %q", err.Error(), tc.want)
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}

func TestLogDir_DefaultsWhenLogPathEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var cfg Config
	got := cfg.LogDir()
	if !strings.HasPrefix(got, home) {
		t.Fatalf("LogDir = %q, want it under HOME %q", got, home)
	}
	if !strings.HasSuffix(got, filepath.FromSlash("/periscope")) {
		t.Fatalf("LogDir = %q, want it to end with /periscope", got)
	}
}
