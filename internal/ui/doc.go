// Package ui implements the periscope terminal interface with Bubble Tea.
//
// # Views
//
//   - Data: the record table from state.Store with search, sort modes,
//     rows per page, paging, inline create/update/patch forms, a delete
//     confirmation and a fetch-by-id panel
//   - Camera: stream controls bound to stream.Controller (source input and
//     presets, width, grayscale, pause/resume, reload), the connection
//     status, the request URL, the proof returned by the backend and a
//     half-block preview of the latest frame
//   - Health: the last /healthz/ result with a manual ping
//   - Logs: the tail of periscope's own log file with a minimum level
//
// # Update Loop
//
// Model follows the usual Init/Update/View contract. A one second tick
// re-reads the store and health snapshots (both cheap copies) and, when the
// Logs view follows, the log file. Controller snapshots arrive through a
// Subscribe channel and are forwarded as streamMsg values, one receive per
// command, so status changes render without waiting for the tick. A faster
// preview tick redraws the frame only while the Camera view is visible and
// the stream is live.
//
// Network calls never run inside Update: store mutations, searches, record
// fetches and manual pings are tea.Cmd functions that report back with a
// message carrying a fresh snapshot.
//
// # Keyboard
//
// Keys are declared once in keys.go with bubbles/key and rendered by the
// help overlay (?). While a text field is focused it receives every key
// except ctrl+c, so typing "q" into a search does not quit.
//
// # Themes
//
// Nightfox, Kanagawa and Slate palettes; T cycles them and the choice is
// written to prefs.toml. BgStyle paints every segment of the header and
// command bar with the bar background to avoid gaps between styled runs.
package ui
