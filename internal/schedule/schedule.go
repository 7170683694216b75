// Package schedule decides when posting may start and then runs one posting
// cycle per fixed interval until a cycle fails or the context ends.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Cycle is one fetch, upload, post round.
type Cycle func(ctx context.Context) error

// NextAllowed is the earliest time a post may follow one made at last.
func NextAllowed(last time.Time, interval time.Duration) time.Time {
	return last.Add(interval)
}

// Cooldown is how long to wait at now before the first post; never negative.
func Cooldown(last, now time.Time, interval time.Duration) time.Duration {
	wait := NextAllowed(last, interval).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Scheduler runs cycles on a fixed cadence anchored at the first cycle. The
// cadence does not stretch to absorb cycle run time, and ticks are never
// dropped: when a cycle overruns, the ticks it missed run back to back.
type Scheduler struct {
	interval time.Duration
	log      zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		log:      log,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Run waits out the cooldown after last, then runs cycle immediately and on
// every tick after that. Ticks fall on whole intervals from the first cycle. It returns the first cycle error, or ctx's error once ctx ends.
// Failed cycles are not retried.
func (s *Scheduler) Run(ctx context.Context, last time.Time, cycle Cycle) error {
	if s.interval <= 0 {
		return fmt.Errorf("post interval must be positive, got %v", s.interval)
	}

	if wait := Cooldown(last, s.now(), s.interval); wait > 0 {
		s.log.Info().
			Time("next_allowed", NextAllowed(last, s.interval)).
			Dur("wait", wait).
			Msg("Waiting until next tweet can be posted...")
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}

	next := s.now()
	for {
		if err := cycle(ctx); err != nil {
			return err
		}
		next = next.Add(s.interval)
		if wait := next.Sub(s.now()); wait > 0 {
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.log.Warn().Time("tick", next).Msg("Cycle overran the post interval, catching up")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
