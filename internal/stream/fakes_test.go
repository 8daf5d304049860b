package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/five82/periscope/internal/api"
	"github.com/five82/periscope/internal/fetch"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward, running due callbacks in order on the
// calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.timers = pruneTimers(c.timers)
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].seq < due[j].seq
			}
			return due[i].at.Before(due[j].at)
		})
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func pruneTimers(timers []*fakeTimer) []*fakeTimer {
	out := timers[:0]
	for _, t := range timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

type fakeBackend struct {
	api *api.Client

	mu       sync.Mutex
	events   []string
	aborts   []string
	proofs   []api.StreamQuery
	abortErr error
	proofErr error
	block    chan struct{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	hc, err := fetch.NewClient("http://cam.local/api")
	if err != nil {
		t.Fatalf("fetch.NewClient returned error: %v", err)
	}
	return &fakeBackend{api: api.New(hc)}
}

func (b *fakeBackend) StreamURL(q api.StreamQuery) string {
	return b.api.StreamURL(q)
}

func (b *fakeBackend) AbortStream(ctx context.Context, clientID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aborts = append(b.aborts, clientID)
	b.events = append(b.events, "abort")
	return b.abortErr == nil, b.abortErr
}

func (b *fakeBackend) FetchProof(ctx context.Context, q api.StreamQuery) (api.Proof, error) {
	b.mu.Lock()
	b.proofs = append(b.proofs, q)
	n := len(b.proofs)
	block := b.block
	err := b.proofErr
	b.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return api.Proof{}, ctx.Err()
		}
	}
	if err != nil {
		return api.Proof{}, err
	}
	return api.Proof{ViaBackend: true, ClientID: q.ClientID, RequestID: fmt.Sprint(n)}, nil
}

func (b *fakeBackend) abortCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.aborts)
}

func (b *fakeBackend) proofCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.proofs)
}

type fakeSource struct {
	mu     sync.Mutex
	size   image.Point
	err    error
	closed bool
}

func (s *fakeSource) Size() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *fakeSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) Frame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size == (image.Point{}) {
		return nil
	}
	return image.NewGray(image.Rectangle{Max: s.size})
}

func (s *fakeSource) setSize(w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = image.Pt(w, h)
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeConnector struct {
	backend *fakeBackend

	mu      sync.Mutex
	urls    []string
	sources []*fakeSource
	openErr error
}

func (f *fakeConnector) Open(ctx context.Context, url string) (FrameSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.backend != nil {
		f.backend.mu.Lock()
		f.backend.events = append(f.backend.events, "open")
		f.backend.mu.Unlock()
	}
	if f.openErr != nil {
		return nil, f.openErr
	}
	src := &fakeSource{}
	f.sources = append(f.sources, src)
	return src, nil
}

func (f *fakeConnector) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

func (f *fakeConnector) lastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.urls) == 0 {
		return ""
	}
	return f.urls[len(f.urls)-1]
}

func (f *fakeConnector) lastSource() *fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sources) == 0 {
		return nil
	}
	return f.sources[len(f.sources)-1]
}

var errRefused = errors.New("connection refused")

type harness struct {
	t         *testing.T
	clock     *fakeClock
	backend   *fakeBackend
	connector *fakeConnector
	ctrl      *Controller
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	clock := newFakeClock()
	backend := newFakeBackend(t)
	connector := &fakeConnector{backend: backend}
	opts := Options{
		Backend:        backend,
		Connector:      connector,
		Clock:          clock,
		ClientID:       "client-1",
		Width:          640,
		ConnectTimeout: DefaultConnectTimeout,
	}
	if mutate != nil {
		mutate(&opts)
	}
	ctrl, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	h := &harness{t: t, clock: clock, backend: backend, connector: connector, ctrl: ctrl}
	t.Cleanup(ctrl.Close)
	return h
}

// settle waits for the controller's background calls to finish.
func (h *harness) settle() {
	h.ctrl.wg.Wait()
}

// goLive starts the controller and delivers a first frame.
func (h *harness) goLive() {
	h.t.Helper()
	h.ctrl.Start()
	h.settle()
	src := h.connector.lastSource()
	if src == nil {
		h.t.Fatalf("no source opened")
	}
	src.setSize(640, 480)
	h.clock.Advance(DefaultFramePollInterval)
	if got := h.ctrl.Snapshot().Status; got != Live {
		h.t.Fatalf("status = %v, want LIVE", got)
	}
}

func (h *harness) status() Status {
	return h.ctrl.Snapshot().Status
}
