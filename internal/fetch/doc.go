// Package fetch is the thin HTTP layer under the API surface.
//
// Each call issues one request bounded by the client timeout. A request that
// runs out of time fails with ErrTimeout (test with errors.Is). Response
// bodies are parsed as JSON when they are JSON and returned as text when not.
// Any non-2xx response becomes a *StatusError carrying the status and the
// parsed body, so callers can show the backend's own message.
package fetch
