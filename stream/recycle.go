package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/retry"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/task"
	"github.com/sarchlab/davidrt/taskres"
)

const maxCqePerPoll = 64

// DeviceHead returns the position of the next record the device executes.
func (s *Stream) DeviceHead() (uint16, error) {
	head, err := s.dev.Driver().SqHead(s.dev.ID(), s.dev.TsID(), s.sqID)
	if err != nil {
		if statusErr := s.dev.AbortStatus(); statusErr != nil {
			return 0, statusErr
		}

		return 0, rterr.New(rterr.ErrDrv, pkgName, "sq head", err)
	}

	return head, nil
}

// Finish tells if the task at pos is finished given the device head and
// the current tail of the ring.
func (s *Stream) Finish(head, pos uint16) bool {
	return taskres.IsTaskFinished(head, s.ring.Tail(), pos)
}

// QueryTaskFinished asks the device for its head and tells if the task at
// pos is finished.
func (s *Stream) QueryTaskFinished(pos uint16) (bool, error) {
	head, err := s.DeviceHead()
	if err != nil {
		return false, err
	}

	return s.Finish(head, pos), nil
}

// IsDone tells if a submitted task is finished. A task whose slot has been
// recycled is finished even if the slot is in use again.
func (s *Stream) IsDone(ref TaskRef) (bool, error) {
	if ref.TaskSn <= s.finishedSn.Load() {
		return true, nil
	}

	return s.QueryTaskFinished(ref.Pos)
}

// TryRecycle recycles the tasks that the device has executed.
func (s *Stream) TryRecycle(ctx context.Context) error {
	s.syncLock.Lock()
	defer s.syncLock.Unlock()

	return s.reclaimLocked(ctx)
}

// reclaimLocked runs one reclaim pass. The sync lock must be held.
func (s *Stream) reclaimLocked(_ context.Context) error {
	if s.isDestroyed.Load() {
		return nil
	}

	s.drainCompletions()

	head, err := s.DeviceHead()
	if err != nil {
		return err
	}

	s.postProcessPublic(head)

	s.ring.Reclaim(head, s.release)
	s.flushArgs()

	return nil
}

func (s *Stream) drainCompletions() {
	cqes, err := s.dev.Driver().PollCq(s.dev.ID(), s.dev.TsID(), s.cqID, maxCqePerPoll)
	if err != nil {
		s.hotLogger.Warn().Err(err).Msg("poll completion queue failed")
		return
	}

	for _, cqe := range cqes {
		if cqe.Error != 0 {
			s.logger.Error().
				Uint16("pos", cqe.Pos).
				Uint16("sq_head", cqe.SqHead).
				Uint32("error", cqe.Error).
				Msg("task reported an error")
		}
	}
}

func (s *Stream) postProcessPublic(head uint16) {
	lastDone := uint16((uint32(head) + uint32(s.depth) - 1) % uint32(s.depth))

	for {
		pos, err := s.PublicTaskHead(lastDone)
		if err != nil {
			return
		}

		s.invokeTaskHook(HookPosTaskPostProc, s.ring.Get(pos))

		if err := s.UpdatePublicQueue(); err != nil {
			return
		}
	}
}

func (s *Stream) release(d *task.Descriptor) {
	s.invokeTaskHook(HookPosTaskComplete, d)

	if d.Args != nil {
		s.argRecycle.Add(d.Args)
		d.Args = nil
	}

	if d.TaskSn > s.finishedSn.Load() {
		s.finishedSn.Store(d.TaskSn)
	}
}

func (s *Stream) flushArgs() {
	for s.argRecycle.Length() > 0 {
		s.argRecycle.Remove().(task.Releaser).Release()
	}
}

// SyncTask waits until a task is finished. A negative timeout waits
// forever. On timeout, the task no longer asks for individual completion
// tracking and SyncTimeout is returned.
func (s *Stream) SyncTask(ctx context.Context, ref TaskRef, timeout time.Duration) error {
	s.syncLock.Lock()
	defer s.syncLock.Unlock()

	return s.syncTaskLocked(ctx, ref, timeout)
}

// syncTaskLocked waits for a task. The sync lock must be held.
func (s *Stream) syncTaskLocked(
	ctx context.Context,
	ref TaskRef,
	timeout time.Duration,
) error {
	if s.bound {
		return rterr.New(rterr.ErrStreamInvalid, pkgName, "sync", nil)
	}

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	timedOut := rterr.New(rterr.ErrSyncTimeout, pkgName, "sync", nil)

	op := func(uint64) (retry.Outcome, error) {
		if err := s.AbortStatus(); err != nil {
			return retry.Fail, err
		}

		done, err := s.IsDone(ref)
		if err != nil {
			return retry.Fail, err
		}

		if done {
			return retry.Done, nil
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return retry.Fail, timedOut
		}

		return retry.Retry, nil
	}

	err := retry.Do(ctx, retry.Policy{
		Liveness: s.dev.AbortStatus,
		Backoff:  retry.Interval(s.syncPoll),
	}, op)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
			err = rterr.New(rterr.ErrContextAbort, pkgName, "sync", err)
		}

		if rterr.Is(err, rterr.ErrSyncTimeout) || rterr.Is(err, rterr.ErrContextAbort) {
			s.clearConcern(ref)
		}

		if rterr.Is(err, rterr.ErrSyncTimeout) && s.NumHooks() > 0 {
			s.InvokeHook(hooking.HookCtx{Domain: s, Pos: HookPosSyncTimeout, Item: ref})
		}

		return err
	}

	return s.reclaimLocked(ctx)
}

// clearConcern stops a pending task from asking for individual completion
// tracking, so that later recycling does not wait on it again.
func (s *Stream) clearConcern(ref TaskRef) {
	if ref.TaskSn <= s.finishedSn.Load() {
		return
	}

	d := s.ring.Get(ref.Pos)
	if d.TaskSn == ref.TaskSn {
		d.CqeNeedConcern = false
	}
}

// Synchronize waits until every task submitted so far is finished and
// recycled.
func (s *Stream) Synchronize(ctx context.Context, timeout time.Duration) error {
	if s.bound {
		return rterr.New(rterr.ErrStreamInvalid, pkgName, "synchronize", nil)
	}

	ref, ok := s.LastTask()
	if !ok {
		return nil
	}

	return s.SyncTask(ctx, ref, timeout)
}

// Recycler reclaims the slots of the streams of a context in the background,
// for streams created with separate recycling.
type Recycler struct {
	ctx      *Context
	interval time.Duration
	wake     chan struct{}
	passes   atomic.Uint64
}

func newRecycler(ctx *Context, interval time.Duration) *Recycler {
	if interval <= 0 {
		interval = time.Millisecond
	}

	return &Recycler{
		ctx:      ctx,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Wake asks the recycler to run a pass soon. A wake-up that arrives during
// a pass is kept for the next one. It never blocks.
func (r *Recycler) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Passes returns the number of passes run so far.
func (r *Recycler) Passes() uint64 {
	return r.passes.Load()
}

// Run recycles in the background until ctx is done.
func (r *Recycler) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.wake:
			case <-ticker.C:
			}

			r.Pass(ctx)
		}
	}()
}

// Pass runs one reclaim pass over every unbound stream of the context.
func (r *Recycler) Pass(ctx context.Context) {
	for _, s := range r.ctx.Streams() {
		if s.bound {
			continue
		}

		if err := s.TryRecycle(ctx); err != nil {
			s.hotLogger.Warn().Err(err).Msg("background reclaim failed")
		}
	}

	r.passes.Add(1)
}
