package stream

import (
	"context"

	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/retry"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/task"
)

// Alloc claims sqeNum contiguous slots for a task and returns the zero-filled
// descriptor with its id, record count, sequence number, flip number and
// stream linkage set. While the stream captures, the slots may come from a
// capture stream, which is returned as dst. Callers must continue with dst.
//
// The allocation lock of s must be held. Alloc may release and reacquire it
// while waiting for slots.
func (s *Stream) Alloc(
	ctx context.Context,
	sqeNum uint16,
) (d *task.Descriptor, dst *Stream, err error) {
	if sqeNum == 0 || sqeNum > s.maxSqePerTask {
		return nil, nil, rterr.New(rterr.ErrInvalidValue, pkgName, "alloc", nil)
	}

	if s.isCapturing() {
		d, dst, err = s.allocCapture(sqeNum)
		if !rterr.Is(err, rterr.ErrStreamCaptureExit) {
			return d, dst, err
		}
	}

	d, err = s.allocLocal(ctx, sqeNum)
	if err != nil {
		return nil, nil, err
	}

	return d, s, nil
}

// allocLocal claims slots in the stream's own ring. Unless the stream is
// persistent, a full ring is retried after reclaiming completed tasks.
func (s *Stream) allocLocal(
	ctx context.Context,
	sqeNum uint16,
) (*task.Descriptor, error) {
	var d *task.Descriptor

	op := func(attempt uint64) (retry.Outcome, error) {
		if attempt > 1 {
			if err := s.AbortStatus(); err != nil {
				return retry.Fail, err
			}

			s.lock.Unlock()
			s.reclaimForAlloc(ctx, attempt)
			s.lock.Lock()
		}

		claimed, _, err := s.ring.Alloc(sqeNum)

		switch {
		case err == nil:
			d = claimed
			return retry.Done, nil
		case !rterr.Is(err, rterr.ErrQueueFull):
			return retry.Fail, err
		case s.persistent:
			return retry.Fail, rterr.New(rterr.ErrStreamFull, pkgName, "alloc", err)
		default:
			return retry.Retry, err
		}
	}

	policy := retry.Policy{
		Liveness: func() error {
			if err := s.dev.AbortStatus(); err != nil {
				return err
			}

			s.DFXCheck("ring full")

			return nil
		},
		CheckEvery: s.checkEvery,
		OnRetry: func(attempt uint64, err error) {
			s.hotLogger.Warn().
				Err(err).
				Uint16("sqe_num", sqeNum).
				Uint64("attempt", attempt).
				Msg("task ring full, waiting for slots")
		},
	}

	if err := retry.Do(ctx, policy, op); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
			return nil, rterr.New(rterr.ErrContextAbort, pkgName, "alloc", err)
		}

		return nil, err
	}

	s.stamp(d)

	return d, nil
}

// stamp fills the fields every new task receives from its stream.
func (s *Stream) stamp(d *task.Descriptor) {
	d.StreamID = s.id
	d.SqID = s.sqID
	d.FlipNum = s.FlipNum()
	d.TaskSn = s.ctx.rt.NextTaskSn()

	s.invokeTaskHook(HookPosTaskAlloc, d)
}

// reclaimForAlloc runs one reclaim pass on behalf of an allocation that
// found the ring full. The allocation lock must not be held.
func (s *Stream) reclaimForAlloc(ctx context.Context, attempt uint64) {
	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosReclaimPass,
			Item:   attempt,
		})
	}

	s.syncLock.Lock()
	defer s.syncLock.Unlock()

	if s.separateRecycle {
		s.ctx.recycler.Wake()
		return
	}

	if err := s.reclaimLocked(ctx); err != nil {
		s.hotLogger.Warn().Err(err).Msg("reclaim failed")
	}
}
