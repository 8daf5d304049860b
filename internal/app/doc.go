// Package app is the composition root of the periscope TUI.
//
// # Overview
//
// Run wires configuration, logging, the API client, the shared stores, the
// health poller and the stream controller together, then hands control to
// the Bubble Tea program in package ui. The CLI commands in cmd/periscope
// reuse LoadConfig, NewClient and NewController so the TUI and the one-shot
// commands build their dependencies the same way.
//
// # Startup
//
//  1. Load ~/.config/periscope/config.toml (missing file means defaults) and
//     apply PERISCOPE_API_BASE and the --api-base flag
//  2. Open the zap file logger; the terminal belongs to Bubble Tea
//  3. Load the persisted theme from prefs.toml
//  4. Build the fetch and api clients
//  5. Create state.Store and state.HealthStore, start the health poller
//  6. Build the stream controller (idle until the camera view mounts)
//  7. Refresh the record list once, then run the UI until the user quits
//
// On return the controller is closed, which sends one final abort for the
// session's client id, and the poller's context is cancelled.
//
// # Health Polling
//
// StartHealthPoller pings /healthz/ every health_interval (default 5s).
// Consecutive failures back off exponentially from that interval, capped at
// 30 seconds:
//
//	failures  delay (5s base)
//	0         5s
//	1         10s
//	2         20s
//	3+        30s
//
// The store marks the backend offline after two consecutive failures.
//
// # Error Handling
//
// Only bootstrap failures are returned from Run: an unreadable or invalid
// config file, a log file that cannot be opened, an unparsable API base.
// A backend that is down at startup is not fatal; the header shows it as
// offline and the poller keeps trying.
package app
