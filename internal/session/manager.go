// Package session owns the printer connection lifecycle: dialing the
// telemetry websocket, the receive loop, reconnecting with backoff, and the
// asynchronous snapshot fetch trigger.
package session

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/domain"
	"github.com/VincentDePincent/EnderV3KE-integration/internal/filter"
	"github.com/VincentDePincent/EnderV3KE-integration/internal/metrics"
	"github.com/VincentDePincent/EnderV3KE-integration/internal/publish"
	"github.com/VincentDePincent/EnderV3KE-integration/internal/sanitize"
)

const (
	pingInterval  = 20 * time.Second
	pongWait      = 20 * time.Second
	writeWait     = 5 * time.Second
	maxFrameBytes = 1 << 20
)

// Snapshotter is the slice of snapshot.Fetcher the manager needs.
type Snapshotter interface {
	Fetch(ctx context.Context) error
}

// Config fixes the session's endpoints and cadences. Read once at
// construction; changing any of it means a new Manager.
type Config struct {
	WSURL            string
	PublishInterval  time.Duration
	SnapshotInterval time.Duration
	PublicImagePath  string
	BackoffMin       time.Duration
	BackoffMax       time.Duration
}

// Manager runs one logical session against one printer. All session state
// lives here; the receive loop is single-threaded, with only the snapshot
// worker running concurrently.
type Manager struct {
	cfg    Config
	filt   *filter.ChangeFilter
	pub    publish.Publisher
	snap   Snapshotter
	log    *zap.Logger
	met    *metrics.Metrics
	clock  clock.Clock
	dialer *websocket.Dialer

	jobs          *jobTracker
	lastRecord    *domain.Record
	lastPublish   time.Time
	lastFetch     time.Time
	fetchInFlight atomic.Bool
}

// Option adjusts a Manager at construction.
type Option func(*Manager)

// WithClock substitutes the timing source, for tests.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithDialer substitutes the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// New creates a session manager. snap may be nil when no snapshot endpoint
// is configured.
func New(cfg Config, filt *filter.ChangeFilter, pub publish.Publisher, snap Snapshotter, met *metrics.Metrics, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:   cfg,
		filt:  filt,
		pub:   pub,
		snap:  snap,
		log:   log,
		met:   met,
		clock: clock.New(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		jobs: newJobTracker(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run drives the connect/receive/backoff loop until ctx is cancelled. The
// loop is unbounded: the printer is expected to be intermittently
// reachable, so every transport failure backs off and retries. Run only
// returns on shutdown, and always returns nil.
func (m *Manager) Run(ctx context.Context) error {
	bo := m.newBackOff()
	var failures int

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, _, err := m.dialer.DialContext(ctx, m.cfg.WSURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			wait := bo.NextBackOff()
			// One report per failure, not per retry tick.
			m.log.Warn("printer connection failed",
				zap.String("url", m.cfg.WSURL),
				zap.Int("consecutive_failures", failures),
				zap.Duration("retry_in", wait),
				zap.Error(err))
			m.met.ReconnectsTotal.Inc()
			if !m.wait(ctx, wait) {
				return nil
			}
			continue
		}

		m.log.Info("printer connected", zap.String("url", m.cfg.WSURL))
		failures = 0
		bo.Reset()

		err = m.readLoop(ctx, conn)
		conn.Close()
		frames, jobs := m.jobs.Stats()
		if ctx.Err() != nil {
			m.log.Info("session stopped", zap.Int("frames", frames), zap.Int("jobs", jobs))
			return nil
		}

		failures++
		wait := bo.NextBackOff()
		m.log.Warn("printer connection lost",
			zap.Duration("retry_in", wait),
			zap.Int("frames", frames),
			zap.Error(err))
		m.met.ReconnectsTotal.Inc()
		if !m.wait(ctx, wait) {
			return nil
		}
	}
}

// readLoop receives frames until the connection fails or ctx is cancelled.
// A keepalive goroutine pings the printer and closes the connection on
// shutdown so the blocking read returns promptly.
func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait + pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait + pingInterval))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := m.clock.Ticker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		m.handleFrame(ctx, msg)
	}
}

// handleFrame runs one frame through sanitize, the snapshot triggers, and
// the publish decision. Bad field data never disconnects the session.
func (m *Manager) handleFrame(ctx context.Context, msg []byte) {
	var raw domain.RawFrame
	if err := json.Unmarshal(msg, &raw); err != nil || raw == nil {
		m.met.FramesRejectedTotal.Inc()
		m.log.Debug("skipping unparseable frame", zap.ByteString("frame", msg))
		return
	}
	m.met.FramesTotal.Inc()

	rec := sanitize.Sanitize(raw, m.lastRecord)
	rec.ImageURL = m.cfg.PublicImagePath
	m.lastRecord = &rec

	if m.jobs.Observe(rec) {
		m.triggerFetch(ctx, "new_job")
	} else if m.snap != nil && m.clock.Since(m.lastFetch) >= m.cfg.SnapshotInterval {
		m.triggerFetch(ctx, "cadence")
	}

	now := m.clock.Now()
	if now.Sub(m.lastPublish) < m.cfg.PublishInterval {
		return
	}
	if !m.filt.Check(rec) {
		return
	}
	m.lastPublish = now

	if err := m.pub.Publish(ctx, rec); err != nil {
		// Not retried: the next accepted record supersedes this one.
		m.met.PublishErrorsTotal.Inc()
		m.log.Warn("publish failed", zap.Error(err))
		return
	}
	m.met.PublishesTotal.Inc()
	m.met.LastPublishUnix.Set(float64(now.Unix()))
	m.log.Debug("published record",
		zap.Float64("progress", rec.Progress),
		zap.String("filename", rec.Filename))
}

// triggerFetch starts an asynchronous snapshot fetch. At most one fetch is
// in flight; triggers while one is running are skipped.
func (m *Manager) triggerFetch(ctx context.Context, reason string) {
	if m.snap == nil {
		return
	}
	if !m.fetchInFlight.CompareAndSwap(false, true) {
		return
	}
	m.lastFetch = m.clock.Now()

	go func() {
		defer m.fetchInFlight.Store(false)
		if err := m.snap.Fetch(ctx); err != nil {
			m.met.SnapshotsTotal.WithLabelValues("error").Inc()
			m.log.Warn("snapshot fetch failed", zap.String("reason", reason), zap.Error(err))
			return
		}
		m.met.SnapshotsTotal.WithLabelValues("ok").Inc()
		m.log.Info("snapshot updated", zap.String("reason", reason))
	}()
}

// wait blocks for d or until ctx is cancelled; reports false on cancel.
func (m *Manager) wait(ctx context.Context, d time.Duration) bool {
	t := m.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// newBackOff builds the reconnect policy: exponential growth from the floor
// to the ceiling with randomization, never giving up.
func (m *Manager) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.BackoffMin
	bo.MaxInterval = m.cfg.BackoffMax
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}
