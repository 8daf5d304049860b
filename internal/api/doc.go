// Package api provides typed verbs over the demo backend's REST surface.
//
// # Endpoints
//
// Paths are relative to the configured base (default
// http://127.0.0.1:8000/api):
//
//   - GET /healthz/: liveness, {"ok": true}
//   - GET /data/?search=term: record list, filtered case-insensitively
//   - GET, PUT, PATCH, DELETE /data/<id>/ and POST /data/: record CRUD
//   - GET /stream/: MJPEG stream (built with StreamURL, read by package mjpeg)
//   - GET /stream/proof/: server-attested session metadata
//   - POST /stream/abort/?client=<id>: release the stream held by a client
//
// # Schema Variants
//
// Some deployments name the record body "content" instead of "text".
// Decoding accepts either; writes use the field chosen with
// WithContentField.
//
// # Errors
//
// Errors come straight from package fetch: fetch.ErrTimeout for requests
// that ran out of time and *fetch.StatusError for non-2xx responses.
package api
