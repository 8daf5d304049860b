package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/periscope/internal/api"
)

// HealthStatus is the backend liveness shown in the header.
type HealthStatus string

const (
	HealthUnknown HealthStatus = "UNKNOWN"
	HealthOK      HealthStatus = "OK"
	HealthBad     HealthStatus = "BAD"
)

// HealthSnapshot is the latest /healthz/ result.
type HealthSnapshot struct {
	Status              HealthStatus
	Payload             map[string]any
	LastChecked         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the backend has been unreachable for multiple pings.
func (s HealthSnapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// HealthStore coordinates health updates from the poller and manual pings.
type HealthStore struct {
	mu       sync.RWMutex
	snapshot HealthSnapshot
}

// Update records one ping. A reply with ok=false counts as BAD but not as a
// connection failure.
func (s *HealthStore) Update(h *api.Health, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastChecked = time.Now()
	if err != nil {
		s.snapshot.Status = HealthBad
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return
	}
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
	s.snapshot.Payload = nil
	if h == nil {
		s.snapshot.Status = HealthUnknown
		return
	}
	s.snapshot.Payload = cloneMap(h.Raw)
	if h.OK {
		s.snapshot.Status = HealthOK
	} else {
		s.snapshot.Status = HealthBad
	}
}

// Snapshot returns a copy of the current health.
func (s *HealthStore) Snapshot() HealthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	if snap.Status == "" {
		snap.Status = HealthUnknown
	}
	snap.Payload = cloneMap(s.snapshot.Payload)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	dup := make(map[string]any, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}
