// Package maintenance schedules housekeeping for the in-process cache.
package maintenance

import (
	"fmt"
	"time"

	"github.com/mileusna/crontab"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"astro-rag/pkg/logging/logging"
)

// DefaultSchedule runs the sweep every five minutes.
const DefaultSchedule = "*/5 * * * *"

// Cleaner drops expired entries and reports how many it removed.
type Cleaner interface {
	CleanupExpired() int
}

// Sweeper runs Cleaner.CleanupExpired on a crontab schedule.
type Sweeper struct {
	ctab    *crontab.Crontab
	target  Cleaner
	logger  *zap.Logger
	runs    atomic.Int64
	removed atomic.Int64
}

// Start registers the sweep on schedule (DefaultSchedule when empty).
func Start(schedule string, target Cleaner, logger *zap.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	s := &Sweeper{
		ctab:   crontab.New(),
		target: target,
		logger: logging.Or(logger).Named("maintenance"),
	}
	if err := s.ctab.AddJob(schedule, func() { s.Sweep() }); err != nil {
		s.ctab.Shutdown()
		return nil, fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	s.logger.Info("cache sweep scheduled", zap.String("schedule", schedule))
	return s, nil
}

// Sweep runs one cleanup pass now.
func (s *Sweeper) Sweep() int {
	start := time.Now()
	n := s.target.CleanupExpired()
	s.runs.Inc()
	s.removed.Add(int64(n))
	s.logger.Debug("cache sweep finished",
		zap.Int("removed", n),
		zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
	)
	return n
}

// Runs and Removed report totals since Start.
func (s *Sweeper) Runs() int64    { return s.runs.Load() }
func (s *Sweeper) Removed() int64 { return s.removed.Load() }

func (s *Sweeper) Stop() {
	s.ctab.Shutdown()
}
