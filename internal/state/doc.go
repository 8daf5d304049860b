// Package state provides thread-safe state shared between background work and
// the periscope UI.
//
// # Overview
//
// Two stores live here:
//
//   - Store: the record list behind the Data view, with loading and error
//     flags, the remembered search query, and mutation helpers
//   - HealthStore: the latest /healthz/ result written by the health poller
//     and by manual pings
//
// Both follow the same pattern: a mutex-protected Snapshot that is copied on
// read, so the UI can render it without holding any lock.
//
// # Record Store Semantics
//
// The backend is the only source of truth. Nothing is updated optimistically:
//
//	store.Search(ctx, " foo ")   // lists ?search=foo, remembers "foo"
//	store.Refresh(ctx)           // repeats the remembered query
//	store.Create(ctx, "hello")   // POST, then exactly one Refresh
//
// A failed write records the error and skips the refresh. Blank text is
// rejected with ErrEmptyText before any request is made. When two listings
// overlap, only the most recently started one may replace the items.
//
// # Failure Tracking
//
// ConsecutiveFailures counts list (or ping) failures in a row; IsOffline
// reports two or more. A success resets the counter.
//
// # Table Helpers
//
// SortRecords and Paginate implement the table's sort modes
// (updated_desc, updated_asc, id_desc, id_asc) and page sizes (5, 10, 20, 50).
package state
