package retry_test

import (
	"context"
	"errors"
	"time"

	"github.com/sarchlab/davidrt/retry"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var errBusy = errors.New("busy")
var errDown = errors.New("down")
var errHard = errors.New("hard")

func alive() error { return nil }

var _ = Describe("Do", func() {
	It("should panic without a liveness check", func() {
		Expect(func() {
			_ = retry.Do(context.Background(), retry.Policy{}, func(uint64) (retry.Outcome, error) {
				return retry.Done, nil
			})
		}).To(Panic())
	})

	It("should retry until done", func() {
		calls := uint64(0)
		retried := 0
		p := retry.Policy{
			Liveness: alive,
			OnRetry:  func(uint64, error) { retried++ },
		}

		err := retry.Do(context.Background(), p, func(attempt uint64) (retry.Outcome, error) {
			calls = attempt
			if attempt < 5 {
				return retry.Retry, errBusy
			}
			return retry.Done, nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(uint64(5)))
		Expect(retried).To(Equal(4))
	})

	It("should stop on a hard failure", func() {
		calls := 0
		err := retry.Do(context.Background(), retry.Policy{Liveness: alive},
			func(uint64) (retry.Outcome, error) {
				calls++
				return retry.Fail, errHard
			})

		Expect(err).To(MatchError(errHard))
		Expect(calls).To(Equal(1))
	})

	It("should stop within CheckEvery attempts once the device is down", func() {
		down := false
		calls := uint64(0)
		p := retry.Policy{
			Liveness: func() error {
				if down {
					return errDown
				}
				return nil
			},
			EagerChecks: 2,
			CheckEvery:  100,
		}

		err := retry.Do(context.Background(), p, func(attempt uint64) (retry.Outcome, error) {
			calls = attempt
			if attempt == 3 {
				down = true
			}
			return retry.Retry, errBusy
		})

		Expect(err).To(MatchError(errDown))
		Expect(calls).To(Equal(uint64(100)))
	})

	It("should stop at MaxAttempts", func() {
		exhausted := errors.New("exhausted")
		p := retry.Policy{Liveness: alive, MaxAttempts: 3, Exhausted: exhausted}

		err := retry.Do(context.Background(), p, func(uint64) (retry.Outcome, error) {
			return retry.Retry, errBusy
		})

		Expect(err).To(MatchError(exhausted))
	})

	It("should return the last error without an exhausted error", func() {
		p := retry.Policy{Liveness: alive, MaxAttempts: 2}

		err := retry.Do(context.Background(), p, func(uint64) (retry.Outcome, error) {
			return retry.Retry, errBusy
		})

		Expect(err).To(MatchError(errBusy))
	})

	It("should stop on cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		p := retry.Policy{Liveness: alive, Backoff: retry.Interval(time.Millisecond)}

		err := retry.Do(ctx, p, func(attempt uint64) (retry.Outcome, error) {
			if attempt == 3 {
				cancel()
			}
			return retry.Retry, errBusy
		})

		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("Backoff", func() {
	It("should double up to the max", func() {
		b := retry.Exponential(time.Millisecond, 5*time.Millisecond)

		Expect(b(2)).To(Equal(time.Millisecond))
		Expect(b(3)).To(Equal(2 * time.Millisecond))
		Expect(b(4)).To(Equal(4 * time.Millisecond))
		Expect(b(10)).To(Equal(5 * time.Millisecond))
	})
})
