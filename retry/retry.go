// Package retry provides the bounded retry loop used wherever the engine
// waits on a shared hardware resource. Every loop carries a mandatory
// liveness check so that it cannot spin forever against a dead device.
package retry

import (
	"context"
	"log"
	"time"
)

// Outcome classifies the result of one attempt.
type Outcome int

// Outcomes of an attempt.
const (
	// Done ends the loop successfully.
	Done Outcome = iota
	// Retry asks for another attempt.
	Retry
	// Fail ends the loop with the error returned by the attempt.
	Fail
)

// Op is one attempt. The attempt number starts from 1.
type Op func(attempt uint64) (Outcome, error)

// Policy configures a retry loop.
type Policy struct {
	// Liveness reports a non-nil error once the resource being waited on
	// can never become available. It is required.
	Liveness func() error

	// EagerChecks is the number of leading attempts after each of which the
	// liveness check runs.
	EagerChecks uint64

	// CheckEvery runs the liveness check after every CheckEvery-th attempt
	// once the eager checks are used up. Zero means every attempt.
	CheckEvery uint64

	// MaxAttempts bounds the loop. Zero means unbounded.
	MaxAttempts uint64

	// Backoff returns how long to wait before the given attempt. Nil means
	// retry immediately.
	Backoff func(attempt uint64) time.Duration

	// OnRetry is called before each repeated attempt.
	OnRetry func(attempt uint64, err error)

	// Exhausted is returned when MaxAttempts is reached.
	Exhausted error
}

// ShouldCheck tells if the liveness check runs after the given attempt.
func (p Policy) ShouldCheck(attempt uint64) bool {
	if attempt <= p.EagerChecks {
		return true
	}

	if p.CheckEvery == 0 {
		return true
	}

	return attempt%p.CheckEvery == 0
}

// Do runs op until it reports Done or Fail, the liveness check fails, the
// attempts are exhausted, or ctx is cancelled.
func Do(ctx context.Context, p Policy, op Op) error {
	if p.Liveness == nil {
		log.Panic("retry policy must have a liveness check")
	}

	var lastErr error

	for attempt := uint64(1); ; attempt++ {
		outcome, err := op(attempt)
		switch outcome {
		case Done:
			return nil
		case Fail:
			return err
		}

		lastErr = err

		if p.ShouldCheck(attempt) {
			if lerr := p.Liveness(); lerr != nil {
				return lerr
			}
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			if p.Exhausted != nil {
				return p.Exhausted
			}

			return lastErr
		}

		if err := wait(ctx, p, attempt+1); err != nil {
			return err
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, lastErr)
		}
	}
}

func wait(ctx context.Context, p Policy, nextAttempt uint64) error {
	if err := ctx.Err(); err != nil || p.Backoff == nil {
		return err
	}

	d := p.Backoff(nextAttempt)
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Interval returns a backoff that always waits d.
func Interval(d time.Duration) func(uint64) time.Duration {
	return func(uint64) time.Duration { return d }
}

// Exponential returns a backoff that doubles from base up to max.
func Exponential(base, max time.Duration) func(uint64) time.Duration {
	return func(attempt uint64) time.Duration {
		d := base
		for i := uint64(2); i < attempt && d < max; i++ {
			d *= 2
		}

		if d > max {
			d = max
		}

		return d
	}
}
