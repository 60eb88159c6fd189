package shortener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sundayezeilo/shortlink/internal/idgen"
)

const (
	DefaultTrackerWorkers = 4
	DefaultTrackerBuffer  = 1024
	DefaultTrackerTimeout = 5 * time.Second

	maxIPLength        = 45
	maxUserAgentLength = 500
	maxRefererLength   = 500
	maxGeoFieldLength  = 100
)

// ClickRecorder accepts clicks without blocking the caller.
type ClickRecorder interface {
	Record(in ClickInput) bool
}

// GeoLocator derives a coarse location from a client address.
type GeoLocator interface {
	Locate(ctx context.Context, ip string) (country, city string, err error)
}

// TrackerConfig holds configuration for the click tracker.
type TrackerConfig struct {
	Workers     int
	BufferSize  int
	Timeout     time.Duration // per-event store deadline
	IDGenerator idgen.Generator
	Geo         GeoLocator
	Logger      *slog.Logger
	Now         func() time.Time
}

// TrackerStats counts tracker outcomes since start.
type TrackerStats struct {
	Recorded int64 `json:"recorded"`
	Vanished int64 `json:"vanished"`
	Dropped  int64 `json:"dropped"`
	Failed   int64 `json:"failed"`
}

// Tracker persists click events off the request path. Accounting is
// at-most-once: a full buffer or a store failure loses the click.
type Tracker struct {
	repo    Repository
	ids     idgen.Generator
	geo     GeoLocator
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
	workers int

	events chan ClickEvent
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool

	recorded atomic.Int64
	vanished atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

// NewTracker creates a tracker. Call Start before Record has any effect
// beyond buffering.
func NewTracker(repo Repository, config *TrackerConfig) *Tracker {
	if config == nil {
		config = &TrackerConfig{}
	}

	t := &Tracker{
		repo:    repo,
		ids:     idgen.OrDefault(config.IDGenerator),
		geo:     config.Geo,
		logger:  config.Logger,
		now:     config.Now,
		timeout: config.Timeout,
		workers: config.Workers,
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTrackerTimeout
	}
	if t.workers <= 0 {
		t.workers = DefaultTrackerWorkers
	}
	buffer := config.BufferSize
	if buffer <= 0 {
		buffer = DefaultTrackerBuffer
	}
	t.events = make(chan ClickEvent, buffer)
	return t
}

// Start launches the worker goroutines. Calling it twice is a no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.closed {
		return
	}
	t.started = true

	for i := 0; i < t.workers; i++ {
		t.wg.Add(1)
		go t.worker(i)
	}
	t.logger.Info("click tracker started", "workers", t.workers, "buffer", cap(t.events))
}

// Record enqueues a click and reports whether it was accepted. It never blocks.
func (t *Tracker) Record(in ClickInput) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.dropped.Add(1)
		return false
	}

	ev := ClickEvent{
		Code:      in.Code,
		ClickedAt: t.now().UTC(),
		IPAddress: truncate(in.IPAddress, maxIPLength),
		UserAgent: truncate(in.UserAgent, maxUserAgentLength),
		Referer:   truncate(in.Referer, maxRefererLength),
	}

	select {
	case t.events <- ev:
		return true
	default:
		t.dropped.Add(1)
		t.logger.Warn("click buffer full, dropping click", "code", in.Code)
		return false
	}
}

// Stop stops intake and drains buffered clicks until ctx is done.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.events)
	started := t.started
	t.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("click tracker stopped", "stats", t.Stats())
		return nil
	case <-ctx.Done():
		return fmt.Errorf("click tracker drain: %w", ctx.Err())
	}
}

// Stats returns a snapshot of the outcome counters.
func (t *Tracker) Stats() TrackerStats {
	return TrackerStats{
		Recorded: t.recorded.Load(),
		Vanished: t.vanished.Load(),
		Dropped:  t.dropped.Load(),
		Failed:   t.failed.Load(),
	}
}

func (t *Tracker) worker(n int) {
	defer t.wg.Done()
	for ev := range t.events {
		t.persist(n, ev)
	}
}

func (t *Tracker) persist(worker int, ev ClickEvent) {
	defer func() {
		if r := recover(); r != nil {
			t.failed.Add(1)
			t.logger.Error("click tracker panic", "worker", worker, "code", ev.Code, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	id, err := t.ids.Generate()
	if err != nil {
		t.failed.Add(1)
		t.logger.Error("click id generation failed", "code", ev.Code, "error", err)
		return
	}
	ev.ID = id

	if t.geo != nil && ev.IPAddress != "" {
		country, city, err := t.geo.Locate(ctx, ev.IPAddress)
		if err != nil {
			t.logger.Debug("geo lookup failed", "ip", ev.IPAddress, "error", err)
		} else {
			ev.Country = truncate(country, maxGeoFieldLength)
			ev.City = truncate(city, maxGeoFieldLength)
		}
	}

	ok, err := t.repo.RecordClick(ctx, ev)
	switch {
	case err != nil:
		t.failed.Add(1)
		t.logger.Error("click not recorded", "code", ev.Code, "error", err)
	case !ok:
		t.vanished.Add(1)
		t.logger.Debug("click for vanished link ignored", "code", ev.Code)
	default:
		t.recorded.Add(1)
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
