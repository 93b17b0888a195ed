package monitor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Archiver copies settled flows older than a cutoff to cold storage.
type Archiver interface {
	Archive(ctx context.Context, before time.Time) (int, error)
}

// Monitor runs the checker and the archiver on their own tickers.
type Monitor struct {
	checker         *Checker
	archiver        Archiver
	interval        time.Duration
	archiveInterval time.Duration
	archiveAfter    time.Duration
	logger          *slog.Logger
}

// New creates a Monitor. archiver may be nil.
func New(checker *Checker, archiver Archiver, interval, archiveInterval, archiveAfter time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if archiveInterval <= 0 {
		archiveInterval = 24 * time.Hour
	}
	if archiveAfter <= 0 {
		archiveAfter = 30 * 24 * time.Hour
	}
	return &Monitor{
		checker:         checker,
		archiver:        archiver,
		interval:        interval,
		archiveInterval: archiveInterval,
		archiveAfter:    archiveAfter,
		logger:          logger.With(slog.String("component", "monitor")),
	}
}

// Run blocks until ctx is done. Call in a goroutine.
func (m *Monitor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return every(ctx, m.interval, func() {
			if _, err := m.checker.Check(ctx); err != nil {
				m.logger.ErrorContext(ctx, "health check failed", slog.String("error", err.Error()))
			}
		})
	})
	if m.archiver != nil {
		g.Go(func() error {
			return every(ctx, m.archiveInterval, func() {
				n, err := m.archiver.Archive(ctx, time.Now().Add(-m.archiveAfter))
				if err != nil {
					m.logger.ErrorContext(ctx, "flow archive failed", slog.String("error", err.Error()))
					return
				}
				if n > 0 {
					m.logger.InfoContext(ctx, "flows archived", slog.Int("count", n))
				}
			})
		})
	}
	return g.Wait()
}

// every runs fn now and then on each tick.
func every(ctx context.Context, d time.Duration, fn func()) error {
	fn()
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}
