// Package stream implements the camera session controller.
//
// A Controller holds the parameters of one viewing session (source, width,
// grayscale, client id and cache-bust token) and its connection status:
// IDLE, CONNECTING, LIVE or ERROR. Every parameter change, reload or resume
// runs the same sequence: cancel the pending reconnect, detach the current
// connection, ask the backend to abort the client's stream, wait the
// reconnect delay, then connect again with a new token. Pause stops
// immediately and stays stopped until Resume.
//
// Timers come from an injected Clock and connections from a Connector, so
// the whole sequence can be driven deterministically. Background calls
// (abort, proof, open) re-enter through the controller's mutex and compare
// a generation counter; results from a superseded session are dropped.
package stream
