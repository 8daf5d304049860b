package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/five82/periscope/internal/api"
)

// ErrEmptyText rejects a create or update whose text is blank.
var ErrEmptyText = errors.New("text must not be empty")

// DataAPI is the subset of the backend the record store needs.
type DataAPI interface {
	ListData(ctx context.Context, search string) ([]api.Record, error)
	GetData(ctx context.Context, id int64) (api.Record, error)
	CreateData(ctx context.Context, text string) (api.Record, error)
	UpdateData(ctx context.Context, id int64, text string) (api.Record, error)
	PatchData(ctx context.Context, id int64, text string) (api.Record, error)
	DeleteData(ctx context.Context, id int64) error
}

// Snapshot represents the latest record list available to the UI.
type Snapshot struct {
	Items               []api.Record
	Loading             bool
	Query               string
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive list failures
}

// IsOffline returns true when listing has failed several times in a row.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store holds the record list. The backend is the only source of truth:
// every successful write is followed by exactly one refresh, nothing is
// updated locally.
type Store struct {
	api DataAPI

	mu       sync.RWMutex
	snapshot Snapshot
	inflight int
	seq      uint64
}

// NewStore returns an empty store backed by client.
func NewStore(client DataAPI) *Store {
	return &Store{api: client}
}

// Refresh repeats the last query, initially the unfiltered list.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	query := s.snapshot.Query
	s.mu.RUnlock()
	return s.load(ctx, query)
}

// Search remembers the trimmed term and lists with it. A blank term means
// no filter.
func (s *Store) Search(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)
	s.mu.Lock()
	s.snapshot.Query = term
	s.mu.Unlock()
	return s.load(ctx, term)
}

// Get fetches one record without touching the list.
func (s *Store) Get(ctx context.Context, id int64) (api.Record, error) {
	rec, err := s.api.GetData(ctx, id)
	if err != nil {
		return api.Record{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

// Create adds a record and refreshes.
func (s *Store) Create(ctx context.Context, text string) (api.Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return api.Record{}, s.fail(ErrEmptyText)
	}
	var rec api.Record
	err := s.mutate(ctx, "create record", func() (err error) {
		rec, err = s.api.CreateData(ctx, text)
		return err
	})
	return rec, err
}

// Update replaces a record's text and refreshes.
func (s *Store) Update(ctx context.Context, id int64, text string) (api.Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return api.Record{}, s.fail(ErrEmptyText)
	}
	var rec api.Record
	err := s.mutate(ctx, fmt.Sprintf("update record %d", id), func() (err error) {
		rec, err = s.api.UpdateData(ctx, id, text)
		return err
	})
	return rec, err
}

// Patch partially updates a record and refreshes.
func (s *Store) Patch(ctx context.Context, id int64, text string) (api.Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return api.Record{}, s.fail(ErrEmptyText)
	}
	var rec api.Record
	err := s.mutate(ctx, fmt.Sprintf("patch record %d", id), func() (err error) {
		rec, err = s.api.PatchData(ctx, id, text)
		return err
	})
	return rec, err
}

// Delete removes a record and refreshes.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.mutate(ctx, fmt.Sprintf("delete record %d", id), func() error {
		return s.api.DeleteData(ctx, id)
	})
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Items = cloneRecords(s.snapshot.Items)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

// mutate runs write and, only when it succeeds, one refresh. A refresh
// failure is recorded in the snapshot but does not fail the write.
func (s *Store) mutate(ctx context.Context, what string, write func() error) error {
	s.mu.Lock()
	s.snapshot.LastError = nil
	s.mu.Unlock()

	if err := write(); err != nil {
		return s.fail(fmt.Errorf("%s: %w", what, err))
	}
	_ = s.Refresh(ctx)
	return nil
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastError = err
	return err
}

// load lists with query. Only the most recently started load may replace
// the items, so an older response arriving late is discarded.
func (s *Store) load(ctx context.Context, query string) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.inflight++
	s.snapshot.Loading = true
	s.snapshot.LastError = nil
	s.mu.Unlock()

	items, err := s.api.ListData(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.snapshot.Loading = s.inflight > 0
	if seq != s.seq {
		return err
	}
	s.snapshot.LastUpdated = time.Now()
	if err != nil {
		s.snapshot.LastError = fmt.Errorf("list records: %w", err)
		s.snapshot.ConsecutiveFailures++
		return s.snapshot.LastError
	}
	s.snapshot.Items = cloneRecords(items)
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
	return nil
}

func cloneRecords(items []api.Record) []api.Record {
	if len(items) == 0 {
		return nil
	}
	dup := make([]api.Record, len(items))
	copy(dup, items)
	return dup
}
