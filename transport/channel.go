// Package transport delivers encoded records to a device driver and
// classifies what the driver reports.
package transport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/driver"
	"github.com/sarchlab/davidrt/retry"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/sqe"
)

const pkgName = "transport"

// Request is a batch of records to append to one submission queue.
type Request struct {
	SqID    uint32
	Records []byte
	Count   uint16

	// OnStall, if set, runs at every liveness check that finds the device
	// alive while the queue keeps reporting backpressure.
	OnStall func(attempt uint64)
}

// Result describes a delivered request.
type Result struct {
	// Attempts is the number of sends, including the successful one.
	Attempts uint64
}

// Channel sends records to the submission queues of one device.
type Channel struct {
	name        string
	drv         driver.Driver
	devID       uint32
	tsID        uint32
	logger      zerolog.Logger
	hotLogger   zerolog.Logger
	eagerChecks uint64
	checkEvery  uint64
	maxAttempts uint64
	backoff     func(uint64) time.Duration

	sent        atomic.Uint64
	retried     atomic.Uint64
	hardFailure atomic.Uint64
}

// Name returns the name of the channel.
func (c *Channel) Name() string {
	return c.name
}

// DeviceID returns the id of the device the channel talks to.
func (c *Channel) DeviceID() uint32 {
	return c.devID
}

// TsID returns the id of the task scheduler.
func (c *Channel) TsID() uint32 {
	return c.tsID
}

// Driver returns the driver behind the channel.
func (c *Channel) Driver() driver.Driver {
	return c.drv
}

// Stats returns the number of delivered requests, of backpressure retries,
// and of requests that failed.
func (c *Channel) Stats() (sent, retried, failed uint64) {
	return c.sent.Load(), c.retried.Load(), c.hardFailure.Load()
}

// DeviceAlive reports a DrvError once the device is down.
func (c *Channel) DeviceAlive() error {
	if c.drv.DeviceState(c.devID) == driver.StateDown {
		return rterr.New(rterr.ErrDrv, pkgName, "liveness", driver.ErrDeviceDown)
	}

	return nil
}

// Send delivers the records. Backpressure from the driver is retried until
// the records are accepted or the device is found down. Any other driver
// error fails the request at once.
func (c *Channel) Send(ctx context.Context, req Request) (Result, error) {
	if req.Count == 0 || len(req.Records) < int(req.Count)*sqe.RecordSize {
		return Result{}, rterr.New(rterr.ErrInvalidValue, pkgName, "send", nil)
	}

	info := &driver.SendInfo{
		SqID:    req.SqID,
		TsID:    c.tsID,
		Count:   req.Count,
		Records: req.Records[:int(req.Count)*sqe.RecordSize],
	}

	var attempts uint64

	policy := retry.Policy{
		Liveness: func() error {
			if err := c.DeviceAlive(); err != nil {
				c.logger.Error().
					Uint32("sq", req.SqID).
					Uint64("attempts", attempts).
					Msg("device down while sending")
				return err
			}

			if req.OnStall != nil {
				req.OnStall(attempts)
			}

			return nil
		},
		EagerChecks: c.eagerChecks,
		CheckEvery:  c.checkEvery,
		MaxAttempts: c.maxAttempts,
		Backoff:     c.backoff,
		OnRetry: func(attempt uint64, err error) {
			c.retried.Add(1)
			c.hotLogger.Warn().
				Err(err).
				Uint32("sq", req.SqID).
				Uint16("count", req.Count).
				Uint64("attempt", attempt).
				Msg("send retried on backpressure")
		},
		Exhausted: rterr.New(rterr.ErrDrv, pkgName, "send", driver.ErrNoResources),
	}

	err := retry.Do(ctx, policy, func(attempt uint64) (retry.Outcome, error) {
		attempts = attempt

		err := c.drv.SqTaskSend(c.devID, info)
		switch {
		case err == nil:
			return retry.Done, nil
		case driver.IsNoResources(err):
			return retry.Retry, err
		default:
			c.logger.Error().
				Err(err).
				Uint32("sq", req.SqID).
				Msg("send failed")
			return retry.Fail, rterr.New(rterr.ErrDrv, pkgName, "send", err)
		}
	})
	if err != nil {
		c.hardFailure.Add(1)

		if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
			return Result{Attempts: attempts},
				rterr.New(rterr.ErrContextAbort, pkgName, "send", err)
		}

		return Result{Attempts: attempts}, err
	}

	c.sent.Add(1)

	return Result{Attempts: attempts}, nil
}

// CrossesBoundary tells if a task of sqeNum records claimed at pos reaches
// the end of a ring of the given depth. The flip number of the stream
// advances after such a task is sent.
func CrossesBoundary(pos, sqeNum, depth uint16) bool {
	return uint32(pos)+uint32(sqeNum) >= uint32(depth)
}
