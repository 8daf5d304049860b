package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/five82/periscope/internal/api"
)

// LoadFailedMessage is shown when the stream cannot be loaded.
const LoadFailedMessage = "stream connection failed (check CAMERA_URL / url parameter / backend logs)"

const (
	DefaultReconnectDelay    = 500 * time.Millisecond
	DefaultConnectTimeout    = 8 * time.Second
	DefaultFramePollInterval = 50 * time.Millisecond
	defaultAbortTimeout      = 3 * time.Second
	subscriberBuffer         = 16
)

// Options configures a Controller. Backend and Connector are required.
type Options struct {
	Backend   Backend
	Connector Connector
	Clock     Clock
	Logger    *zap.Logger

	ClientID  string
	SourceURL string
	Grayscale bool
	Width     int

	ReconnectDelay    time.Duration
	ConnectTimeout    time.Duration // zero or negative disables the timeout
	FramePollInterval time.Duration
	AbortTimeout      time.Duration
}

// Snapshot is an immutable view of the controller.
type Snapshot struct {
	Params        Params
	Status        Status
	UserPaused    bool
	Disconnecting bool
	Message       string
	Cause         string
	SourceHint    string
	StreamURL     string
	FrameSize     image.Point
	Proof         *api.Proof
	ProofErr      string
	ProofPending  bool
	ConnectingAt  time.Time
	LiveAt        time.Time
	UpdatedAt     time.Time
	Closed        bool
}

// Paused reports the effective pause: user intent or a pending reconnect.
func (s Snapshot) Paused() bool {
	return s.UserPaused || s.Disconnecting
}

type connection struct {
	gen    uint64
	cancel context.CancelFunc
	source FrameSource
}

// Controller owns one camera viewing session: its parameters, connection
// status and the abort/delay/reconnect choreography between connections.
type Controller struct {
	backend   Backend
	connector Connector
	clock     Clock
	logger    *zap.Logger

	reconnectDelay time.Duration
	connectTimeout time.Duration
	pollInterval   time.Duration
	abortTimeout   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	params        Params
	status        Status
	userPaused    bool
	disconnecting bool
	started       bool
	closed        bool
	gen           uint64
	message       string
	cause         string
	hint          string
	streamURL     string
	frameSize     image.Point
	proof         *api.Proof
	proofErr      string
	proofPending  bool
	connectingAt  time.Time
	liveAt        time.Time
	updatedAt     time.Time

	reconnect Timer
	poll      Timer
	deadline  Timer
	conn      *connection

	subs    map[int]chan Snapshot
	nextSub int
}

// New builds an idle controller. Call Start to issue the first connection.
func New(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, errors.New("stream controller requires a backend")
	}
	if opts.Connector == nil {
		return nil, errors.New("stream controller requires a connector")
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ClientID == "" {
		opts.ClientID = uuid.NewString()
	}
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.ConnectTimeout < 0 {
		opts.ConnectTimeout = 0
	}
	if opts.FramePollInterval <= 0 {
		opts.FramePollInterval = DefaultFramePollInterval
	}
	if opts.AbortTimeout <= 0 {
		opts.AbortTimeout = defaultAbortTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:        opts.Backend,
		connector:      opts.Connector,
		clock:          opts.Clock,
		logger:         opts.Logger.Named("stream").With(zap.String("client_id", opts.ClientID)),
		reconnectDelay: opts.ReconnectDelay,
		connectTimeout: opts.ConnectTimeout,
		pollInterval:   opts.FramePollInterval,
		abortTimeout:   opts.AbortTimeout,
		ctx:            ctx,
		cancel:         cancel,
		params: Params{
			SourceURL: trimSource(opts.SourceURL),
			Grayscale: opts.Grayscale,
			Width:     ClampWidth(opts.Width),
			ClientID:  opts.ClientID,
		},
		subs: make(map[int]chan Snapshot),
	}
	c.hint = SourceHint(c.params.SourceURL)
	c.updatedAt = c.clock.Now()
	return c, nil
}

// Start issues a connection without an abort. It does nothing while the
// session is already running (connected, paused or restarting). After Stop
// it re-arms the session and connects again with the next token.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.started {
		return
	}
	c.started = true
	if c.userPaused {
		return
	}
	c.connectLocked()
	c.notifyLocked()
}

// ApplySource switches to raw (trimmed; empty means the backend default).
// A user-paused session records the source and stays Idle until Resume.
func (c *Controller) ApplySource(raw string) {
	source := trimSource(raw)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.params.SourceURL = source
	c.hint = SourceHint(source)
	if c.userPaused {
		c.setStatusLocked(Idle, "", "")
		c.notifyLocked()
		return
	}
	c.restartLocked("apply source")
}

// SetWidth changes the requested width, clamped to [MinWidth, MaxWidth].
func (c *Controller) SetWidth(width int) {
	width = ClampWidth(width)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.params.Width == width {
		return
	}
	c.params.Width = width
	if c.userPaused {
		c.notifyLocked()
		return
	}
	c.restartLocked("width")
}

// SetGrayscale toggles server-side grayscale conversion.
func (c *Controller) SetGrayscale(gray bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.params.Grayscale == gray {
		return
	}
	c.params.Grayscale = gray
	if c.userPaused {
		c.notifyLocked()
		return
	}
	c.restartLocked("grayscale")
}

// TogglePause pauses a running session or resumes a paused one.
func (c *Controller) TogglePause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.userPaused {
		c.resumeLocked()
		return
	}
	c.pauseLocked()
}

// Pause stops the session immediately. Pausing twice is a no-op.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.userPaused {
		return
	}
	c.pauseLocked()
}

// Resume reconnects a paused session after the reconnect delay.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.userPaused {
		return
	}
	c.resumeLocked()
}

// Reload forces a fresh connection. It does nothing while paused.
func (c *Controller) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.userPaused {
		return
	}
	c.restartLocked("reload")
}

// Stop ends the session without closing the controller: timers are
// cancelled, the connection is detached, one abort is sent and the status
// goes Idle. UserPaused and the parameters are kept. A later Start
// reconnects. A paused session was already torn down by Pause, so Stop only
// disarms it. Stop on a session that is not running does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.started {
		return
	}
	c.started = false
	if c.userPaused {
		return
	}
	c.stopReconnectLocked()
	c.detachLocked()
	c.gen++
	c.abortLocked()
	c.disconnecting = false
	c.proofPending = false
	c.streamURL = ""
	c.setStatusLocked(Idle, "", "")
	c.logger.Debug("stream stopped")
	c.notifyLocked()
}

// Close tears the session down: timers are cancelled, the connection is
// detached and one final abort is sent. It waits for in-flight background
// calls and is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopReconnectLocked()
	c.detachLocked()
	c.gen++
	c.abortLocked()
	c.disconnecting = false
	c.proofPending = false
	c.streamURL = ""
	c.setStatusLocked(Idle, "", "")
	c.closed = true
	c.logger.Debug("stream closed")
	c.notifyLocked()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Frame returns the latest decoded frame of the live connection, if any.
func (c *Controller) Frame() image.Image {
	c.mu.Lock()
	var source FrameSource
	if c.conn != nil {
		source = c.conn.source
	}
	c.mu.Unlock()
	if f, ok := source.(Framer); ok {
		return f.Frame()
	}
	return nil
}

// Subscribe returns a channel of snapshots, sent after every change, and a
// function that ends the subscription. A slow reader loses the oldest
// snapshots, never the newest. The channel is closed by Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			close(sub)
			delete(c.subs, id)
		}
	}
}

func (c *Controller) pauseLocked() {
	c.started = true
	c.userPaused = true
	c.stopReconnectLocked()
	c.detachLocked()
	c.gen++
	c.abortLocked()
	c.disconnecting = false
	c.proofPending = false
	c.streamURL = ""
	c.setStatusLocked(Idle, "", "")
	c.logger.Debug("stream paused")
	c.notifyLocked()
}

func (c *Controller) resumeLocked() {
	c.userPaused = false
	c.logger.Debug("stream resumed")
	c.restartLocked("resume")
}

// restartLocked is the teardown-then-reconnect sequence. The abort and the
// detach happen before the reconnect timer is armed.
func (c *Controller) restartLocked(reason string) {
	c.started = true
	c.stopReconnectLocked()
	c.detachLocked()
	c.gen++
	c.abortLocked()
	c.disconnecting = true
	c.proofPending = false
	c.streamURL = ""
	c.setStatusLocked(Idle, "", "")
	c.logger.Debug("stream restart", zap.String("reason", reason), zap.Duration("delay", c.reconnectDelay))

	gen := c.gen
	c.reconnect = c.clock.AfterFunc(c.reconnectDelay, func() { c.reconnectFired(gen) })
	c.notifyLocked()
}

func (c *Controller) reconnectFired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	c.reconnect = nil
	c.disconnecting = false
	if !c.userPaused {
		c.connectLocked()
	}
	c.notifyLocked()
}

// connectLocked issues a new connection for the current generation.
func (c *Controller) connectLocked() {
	c.params.Token++
	query := c.params.Query()
	url := c.backend.StreamURL(query)
	c.streamURL = url
	c.frameSize = image.Point{}
	c.connectingAt = c.clock.Now()
	c.liveAt = time.Time{}
	c.setStatusLocked(Connecting, "", "")

	gen := c.gen
	ctx, cancel := context.WithCancel(c.ctx)
	c.conn = &connection{gen: gen, cancel: cancel}
	c.goAsync(func() { c.open(ctx, gen, url) })
	if c.connectTimeout > 0 {
		c.deadline = c.clock.AfterFunc(c.connectTimeout, func() { c.deadlineFired(gen) })
	}
	c.fetchProofLocked(gen, query)
}

func (c *Controller) open(ctx context.Context, gen uint64, url string) {
	source, err := c.connector.Open(ctx, url)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen || c.conn == nil || c.conn.gen != gen {
		if source != nil {
			c.goAsync(func() { _ = source.Close() })
		}
		return
	}
	if err != nil {
		c.failLocked(err)
		c.notifyLocked()
		return
	}
	c.conn.source = source
	c.schedulePollLocked(gen)
}

func (c *Controller) schedulePollLocked(gen uint64) {
	c.poll = c.clock.AfterFunc(c.pollInterval, func() { c.pollFired(gen) })
}

// pollFired checks the source for its first frame or a failure and
// reschedules itself while the connection lives.
func (c *Controller) pollFired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen || c.conn == nil || c.conn.gen != gen || c.conn.source == nil {
		return
	}
	source := c.conn.source
	if err := source.Err(); err != nil {
		c.failLocked(err)
		c.notifyLocked()
		return
	}

	changed := false
	if size := source.Size(); size.X > 0 && size.Y > 0 {
		if size != c.frameSize {
			c.frameSize = size
			changed = true
		}
		if c.status == Connecting {
			c.stopTimer(&c.deadline)
			c.liveAt = c.clock.Now()
			c.setStatusLocked(Live, "", "")
			changed = true
		}
	}
	c.schedulePollLocked(gen)
	if changed {
		c.notifyLocked()
	}
}

func (c *Controller) deadlineFired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen || c.status != Connecting {
		return
	}
	c.deadline = nil
	c.detachLocked()
	c.setStatusLocked(Error, fmt.Sprintf("no frame received within %s", c.connectTimeout), "")
	c.notifyLocked()
}

func (c *Controller) failLocked(err error) {
	c.logger.Debug("stream load failed", zap.Error(err))
	c.detachLocked()
	c.setStatusLocked(Error, LoadFailedMessage, err.Error())
}

func (c *Controller) fetchProofLocked(gen uint64, query api.StreamQuery) {
	c.proof = nil
	c.proofErr = ""
	c.proofPending = true
	ctx := c.ctx
	c.goAsync(func() {
		proof, err := c.backend.FetchProof(ctx, query)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.gen {
			return
		}
		c.proofPending = false
		if err != nil {
			c.logger.Warn("stream proof failed", zap.Error(err))
			c.proofErr = err.Error()
		} else {
			c.proof = &proof
		}
		c.updatedAt = c.clock.Now()
		c.notifyLocked()
	})
}

// abortLocked fires the best-effort server-side abort for the client id.
func (c *Controller) abortLocked() {
	clientID := c.params.ClientID
	timeout := c.abortTimeout
	c.goAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		aborted, err := c.backend.AbortStream(ctx, clientID)
		if err != nil {
			c.logger.Debug("stream abort failed", zap.Error(err))
			return
		}
		c.logger.Debug("stream abort", zap.Bool("aborted", aborted))
	})
}

// detachLocked drops the current connection and its timers.
func (c *Controller) detachLocked() {
	c.stopTimer(&c.poll)
	c.stopTimer(&c.deadline)
	if c.conn == nil {
		return
	}
	c.conn.cancel()
	if source := c.conn.source; source != nil {
		c.goAsync(func() { _ = source.Close() })
	}
	c.conn = nil
}

func (c *Controller) stopReconnectLocked() {
	c.stopTimer(&c.reconnect)
}

func (c *Controller) stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (c *Controller) setStatusLocked(status Status, message, cause string) {
	if status != c.status {
		c.logger.Debug("stream status",
			zap.Stringer("from", c.status),
			zap.Stringer("to", status),
			zap.Uint64("token", c.params.Token),
		)
	}
	c.status = status
	c.message = message
	c.cause = cause
	c.updatedAt = c.clock.Now()
}

func (c *Controller) snapshotLocked() Snapshot {
	var proof *api.Proof
	if c.proof != nil {
		cp := *c.proof
		proof = &cp
	}
	return Snapshot{
		Params:        c.params,
		Status:        c.status,
		UserPaused:    c.userPaused,
		Disconnecting: c.disconnecting,
		Message:       c.message,
		Cause:         c.cause,
		SourceHint:    c.hint,
		StreamURL:     c.streamURL,
		FrameSize:     c.frameSize,
		Proof:         proof,
		ProofErr:      c.proofErr,
		ProofPending:  c.proofPending,
		ConnectingAt:  c.connectingAt,
		LiveAt:        c.liveAt,
		UpdatedAt:     c.updatedAt,
		Closed:        c.closed,
	}
}

func (c *Controller) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (c *Controller) goAsync(f func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		f()
	}()
}

func trimSource(raw string) string {
	return strings.TrimSpace(raw)
}
