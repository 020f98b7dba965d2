package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweepable drops expired entries and reports how many it removed.
type Sweepable interface {
	Sweep() int
}

// Sweeper periodically evicts expired entries from an in-process store.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper for target.
func NewSweeper(target Sweepable, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{target: target, interval: interval, logger: logger}
}

// Start runs until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if n := s.target.Sweep(); n > 0 {
				s.logger.Debug("expired entries swept", slog.Int("removed", n))
			}
		}
	}
}
