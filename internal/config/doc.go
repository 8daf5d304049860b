// Package config loads periscope's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/periscope/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. PERISCOPE_API_BASE, when non-blank, replaces api_base
//
// # Default Values
//
//   - API base: http://127.0.0.1:8000/api
//   - Request timeout: 10s
//   - Record text field: "text" (set content_field = "content" for the other schema)
//   - Log file: ~/.local/share/periscope/periscope.log
//   - Health interval: 5s
//   - Stream width 640, color, reconnect delay 500ms, connect timeout 8s
//
// # TOML Format
//
//	api_base = "http://127.0.0.1:8000/api"
//	request_timeout = "10s"
//	content_field = "text"
//	log_path = "~/.local/share/periscope/periscope.log"
//	log_level = "info"
//	health_interval = "5s"
//
//	[stream]
//	width = 640
//	grayscale = false
//	reconnect_delay = "500ms"
//	connect_timeout = "8s"      # "0s" disables the stall timeout
//	frame_poll_interval = "50ms"
//	presets = ["", "http://demo.ivsbroker.com/mjpeg"]
//
// Durations use time.ParseDuration syntax. Tilde expansion is performed for
// the config and log paths.
//
// Missing config files are NOT an error. Malformed files are: a TOML syntax
// error, an unparsable or negative duration, or an unknown content_field.
package config
