package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything periscope reads at startup.
type Config struct {
	APIBase        string
	RequestTimeout time.Duration
	ContentField   string
	LogPath        string
	LogLevel       string
	HealthInterval time.Duration
	Stream         StreamConfig
}

// StreamConfig holds the camera viewer defaults.
type StreamConfig struct {
	Width             int
	Grayscale         bool
	ReconnectDelay    time.Duration
	ConnectTimeout    time.Duration
	FramePollInterval time.Duration
	Presets           []string
}

// APIBaseEnv overrides api_base when set to a non-blank value.
const APIBaseEnv = "PERISCOPE_API_BASE"

const (
	defaultConfigPath        = "~/.config/periscope/config.toml"
	defaultLogPath           = "~/.local/share/periscope/periscope.log"
	defaultAPIBase           = "http://127.0.0.1:8000/api"
	defaultRequestTimeout    = 10 * time.Second
	defaultContentField      = "text"
	defaultLogLevel          = "info"
	defaultHealthInterval    = 5 * time.Second
	defaultWidth             = 640
	defaultReconnectDelay    = 500 * time.Millisecond
	defaultConnectTimeout    = 8 * time.Second
	defaultFramePollInterval = 50 * time.Millisecond
)

var defaultPresets = []string{
	"",
	"http://demo.ivsbroker.com/mjpeg",
	"rtsp://192.168.1.10:554/stream1",
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBase:        defaultAPIBase,
		RequestTimeout: defaultRequestTimeout,
		ContentField:   defaultContentField,
		LogPath:        mustExpand(defaultLogPath),
		LogLevel:       defaultLogLevel,
		HealthInterval: defaultHealthInterval,
		Stream: StreamConfig{
			Width:             defaultWidth,
			ReconnectDelay:    defaultReconnectDelay,
			ConnectTimeout:    defaultConnectTimeout,
			FramePollInterval: defaultFramePollInterval,
			Presets:           append([]string(nil), defaultPresets...),
		},
	}
}

// Load locates and parses the periscope config, falling back to defaults when
// missing. The PERISCOPE_API_BASE environment variable wins over the file.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBase        string `toml:"api_base"`
		RequestTimeout string `toml:"request_timeout"`
		ContentField   string `toml:"content_field"`
		LogPath        string `toml:"log_path"`
		LogLevel       string `toml:"log_level"`
		HealthInterval string `toml:"health_interval"`
		Stream         struct {
			Width             int      `toml:"width"`
			Grayscale         bool     `toml:"grayscale"`
			ReconnectDelay    string   `toml:"reconnect_delay"`
			ConnectTimeout    *string  `toml:"connect_timeout"`
			FramePollInterval string   `toml:"frame_poll_interval"`
			Presets           []string `toml:"presets"`
		} `toml:"stream"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBase); v != "" {
		cfg.APIBase = v
	}
	if v := strings.ToLower(strings.TrimSpace(raw.ContentField)); v != "" {
		if v != "text" && v != "content" {
			return Config{}, fmt.Errorf("parse config: content_field %q must be text or content", raw.ContentField)
		}
		cfg.ContentField = v
	}
	if v := strings.TrimSpace(raw.LogPath); v != "" {
		cfg.LogPath = mustExpand(v)
	}
	if v := strings.ToLower(strings.TrimSpace(raw.LogLevel)); v != "" {
		cfg.LogLevel = v
	}

	durations := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"request_timeout", raw.RequestTimeout, &cfg.RequestTimeout},
		{"health_interval", raw.HealthInterval, &cfg.HealthInterval},
		{"stream.reconnect_delay", raw.Stream.ReconnectDelay, &cfg.Stream.ReconnectDelay},
		{"stream.frame_poll_interval", raw.Stream.FramePollInterval, &cfg.Stream.FramePollInterval},
	}
	for _, d := range durations {
		if err := parseDuration(d.name, d.value, d.dest); err != nil {
			return Config{}, err
		}
	}
	// connect_timeout = "0s" disables the stall timeout, so an explicit zero
	// must survive; only an absent key falls back to the default.
	if raw.Stream.ConnectTimeout != nil {
		if err := parseDuration("stream.connect_timeout", *raw.Stream.ConnectTimeout, &cfg.Stream.ConnectTimeout); err != nil {
			return Config{}, err
		}
	}

	if raw.Stream.Width > 0 {
		cfg.Stream.Width = raw.Stream.Width
	}
	cfg.Stream.Grayscale = raw.Stream.Grayscale
	if len(raw.Stream.Presets) > 0 {
		cfg.Stream.Presets = trimAll(raw.Stream.Presets)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// LogDir returns the directory holding the log file.
func (c Config) LogDir() string {
	if strings.TrimSpace(c.LogPath) == "" {
		return filepath.Dir(mustExpand(defaultLogPath))
	}
	return filepath.Dir(c.LogPath)
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(APIBaseEnv)); v != "" {
		cfg.APIBase = v
	}
}

func parseDuration(name, value string, dest *time.Duration) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse config: %s: %w", name, err)
	}
	if d < 0 {
		return fmt.Errorf("parse config: %s must not be negative", name)
	}
	*dest = d
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
