// Package jobs runs the background work that lives next to the HTTP server.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/storyline/internal/metrics"
)

// sweepTimeout bounds a single sweep so a stuck database cannot hold the
// loop forever.
const sweepTimeout = time.Minute

// StorySweeper is the part of the story service the sweeper drives.
type StorySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper deactivates expired stories once a day at a fixed wall-clock time.
// Visibility never depends on it: an expired story is hidden whether or not
// the sweep has run. The sweep only brings IsActive in line with ExpiresAt.
type Sweeper struct {
	stories StorySweeper
	hour    int
	minute  int
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSweeper schedules the sweep for hour:minute UTC.
func NewSweeper(stories StorySweeper, hour, minute int, m *metrics.Metrics, logger *slog.Logger) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		stories: stories,
		hour:    hour,
		minute:  minute,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		ctx:     ctx,
		cancel:  cancel,
	}
}

// NextRun returns the first hour:minute strictly after now, in now's
// location.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

// Start launches the schedule loop. Calling it more than once has no effect.
func (s *Sweeper) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("starting story sweeper",
			slog.Int("hour", s.hour),
			slog.Int("minute", s.minute),
			slog.Time("nextRun", NextRun(s.now(), s.hour, s.minute)),
		)
		s.wg.Add(1)
		go s.loop()
	})
}

// Stop cancels a sweep in progress and waits for the loop to exit.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping story sweeper")
		s.cancel()
		s.wg.Wait()
	})
}

// RunOnce performs one sweep now. Errors are logged, counted and returned;
// the schedule loop ignores the return value.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := s.now()
	n, err := s.stories.SweepExpired(ctx, start)
	if err != nil {
		s.metrics.SweepFailed()
		s.logger.Error("story sweep failed", slog.String("error", err.Error()))
		return 0, err
	}

	s.metrics.SweepSucceeded(n)
	s.logger.Info("story sweep finished",
		slog.Int64("deactivated", n),
		slog.Duration("took", s.now().Sub(start)),
	)
	return n, nil
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	for {
		now := s.now()
		timer := time.NewTimer(NextRun(now, s.hour, s.minute).Sub(now))

		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			_, _ = s.RunOnce(s.ctx)
		}
	}
}
