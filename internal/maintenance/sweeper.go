// Package maintenance runs the periodic cleanup cycle over the link store:
// expiring links, trimming the click log and reclaiming abandoned links.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sundayezeilo/shortlink/internal/errx"
)

const (
	DefaultInterval                = time.Hour
	DefaultClickRetentionMonths    = 6
	DefaultDeadLinkRetentionMonths = 12
	DefaultBatchSize               = 1000
)

// Store is the part of shortener.Repository the sweeper needs.
type Store interface {
	DeactivateExpired(ctx context.Context, now time.Time) ([]string, error)
	CountClicksBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteClicksBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	DeleteDeadLinks(ctx context.Context, cutoff time.Time) (int64, error)
}

// Evicter drops cached projections for deactivated codes.
type Evicter interface {
	Evict(ctx context.Context, code string) error
}

// Config holds sweeper settings. Zero values fall back to the defaults.
type Config struct {
	Interval                time.Duration
	ClickRetentionMonths    int
	DeadLinkRetentionMonths int
	BatchSize               int
	Cache                   Evicter
	Logger                  *slog.Logger
	Now                     func() time.Time
}

// Report summarizes one cycle.
type Report struct {
	Deactivated   int      `json:"deactivated"`
	Evicted       int      `json:"evicted"`
	ClicksDeleted int64    `json:"clicks_deleted"`
	LinksDeleted  int64    `json:"links_deleted"`
	Errors        []string `json:"errors,omitempty"`
}

// OK reports whether every sweep in the cycle succeeded.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Sweeper runs maintenance cycles against a Store. Cycles never overlap.
type Sweeper struct {
	store       Store
	cache       Evicter
	interval    time.Duration
	clickMonths int
	deadMonths  int
	batchSize   int
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Sweeper. config may be nil.
func New(store Store, config *Config) *Sweeper {
	if config == nil {
		config = &Config{}
	}

	s := &Sweeper{
		store:       store,
		cache:       config.Cache,
		interval:    config.Interval,
		clickMonths: config.ClickRetentionMonths,
		deadMonths:  config.DeadLinkRetentionMonths,
		batchSize:   config.BatchSize,
		logger:      config.Logger,
		now:         config.Now,
	}

	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.clickMonths <= 0 {
		s.clickMonths = DefaultClickRetentionMonths
	}
	if s.deadMonths <= 0 {
		s.deadMonths = DefaultDeadLinkRetentionMonths
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// Run executes a cycle immediately and then one cycle per interval, measured
// from the end of the previous cycle, until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("sweeper started", "interval", s.interval.String())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-timer.C:
		}

		s.RunOnce(ctx)
		timer.Reset(s.interval)
	}
}

// RunOnce performs the expiry, click retention and dead link sweeps in
// order. A failing sweep is recorded in the report and does not stop the
// others.
func (s *Sweeper) RunOnce(ctx context.Context) Report {
	var report Report
	now := s.now().UTC()
	start := time.Now()

	s.step(ctx, &report, "expiry", func(ctx context.Context) error {
		return s.sweepExpired(ctx, now, &report)
	})
	s.step(ctx, &report, "click_retention", func(ctx context.Context) error {
		return s.sweepClicks(ctx, now, &report)
	})
	s.step(ctx, &report, "dead_links", func(ctx context.Context) error {
		return s.sweepDeadLinks(ctx, now, &report)
	})

	s.logger.Info("sweep cycle finished",
		"deactivated", report.Deactivated,
		"evicted", report.Evicted,
		"clicks_deleted", report.ClicksDeleted,
		"links_deleted", report.LinksDeleted,
		"errors", len(report.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report
}

func (s *Sweeper) step(ctx context.Context, report *Report, name string, fn func(context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("sweep panicked", "sweep", name, "panic", rec)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: panic: %v", name, rec))
		}
	}()

	if err := ctx.Err(); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", name, err))
		return
	}

	if err := fn(ctx); err != nil {
		s.logger.Error("sweep failed",
			"sweep", name,
			"op", errx.OpOf(err),
			"kind", errx.KindOf(err).String(),
			"error", err,
		)
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", name, err))
	}
}

func (s *Sweeper) sweepExpired(ctx context.Context, now time.Time, report *Report) error {
	codes, err := s.store.DeactivateExpired(ctx, now)
	if err != nil {
		return err
	}
	report.Deactivated = len(codes)

	if s.cache != nil {
		for _, code := range codes {
			if err := s.cache.Evict(ctx, code); err != nil {
				s.logger.Warn("cache evict failed", "code", code, "error", err)
				continue
			}
			report.Evicted++
		}
	}

	s.logger.Info("expired links deactivated", "count", len(codes))
	return nil
}

func (s *Sweeper) sweepClicks(ctx context.Context, now time.Time, report *Report) error {
	cutoff := now.AddDate(0, -s.clickMonths, 0)

	pending, err := s.store.CountClicksBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if pending == 0 {
		s.logger.Info("no click events to purge", "cutoff", cutoff)
		return nil
	}

	for {
		n, err := s.store.DeleteClicksBefore(ctx, cutoff, s.batchSize)
		report.ClicksDeleted += n
		if err != nil {
			return err
		}
		if n < int64(s.batchSize) {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	s.logger.Info("old click events purged", "count", report.ClicksDeleted, "cutoff", cutoff)
	return nil
}

func (s *Sweeper) sweepDeadLinks(ctx context.Context, now time.Time, report *Report) error {
	cutoff := now.AddDate(0, -s.deadMonths, 0)

	n, err := s.store.DeleteDeadLinks(ctx, cutoff)
	if err != nil {
		return err
	}
	report.LinksDeleted = n

	s.logger.Info("dead links deleted", "count", n, "cutoff", cutoff)
	return nil
}
