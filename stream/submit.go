package stream

import (
	"context"
	"time"

	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/sqe"
	"github.com/sarchlab/davidrt/task"
	"github.com/sarchlab/davidrt/transport"
)

// SubmitOptions controls how a task is submitted.
type SubmitOptions struct {
	// Sync makes Submit wait until the device has executed the task.
	Sync bool

	// Timeout bounds a synchronous wait. Infinite, or any negative value,
	// waits forever.
	Timeout time.Duration

	// PostProc queues the task for post processing after it completes.
	PostProc bool

	// CqeNeedConcern asks the device for a completion report.
	CqeNeedConcern bool

	// Args is owned by the task until it is recycled.
	Args task.Releaser
}

// SubmitOption modifies SubmitOptions.
type SubmitOption func(o *SubmitOptions)

// WithSync makes the submission wait for the task with the given timeout.
func WithSync(timeout time.Duration) SubmitOption {
	return func(o *SubmitOptions) {
		o.Sync = true
		o.Timeout = timeout
	}
}

// WithPostProc queues the task for post processing.
func WithPostProc() SubmitOption {
	return func(o *SubmitOptions) {
		o.PostProc = true
	}
}

// WithCqe asks the device for a completion report of the task.
func WithCqe() SubmitOption {
	return func(o *SubmitOptions) {
		o.CqeNeedConcern = true
	}
}

// WithArgs hands an argument buffer over to the task.
func WithArgs(args task.Releaser) SubmitOption {
	return func(o *SubmitOptions) {
		o.Args = args
	}
}

// rollbackGuard undoes a claim on every exit path unless disarmed.
type rollbackGuard struct {
	armed bool
	undo  func()
}

func (g *rollbackGuard) disarm() {
	g.armed = false
}

func (g *rollbackGuard) run() {
	if g.armed {
		g.undo()
	}
}

// Submit allocates, encodes and sends one task. Unless the task is
// synchronous, Submit returns once the device has accepted the task, and
// recycles completed tasks on the way out. On any failure before the device
// accepts the task, the claimed slots are returned to the ring.
func (s *Stream) Submit(
	ctx context.Context,
	p task.Payload,
	opts ...SubmitOption,
) (TaskRef, error) {
	var o SubmitOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := task.ValidatePayload(p, s.maxSqePerTask); err != nil {
		if p != nil && p.SqeNum() > s.maxSqePerTask {
			s.logger.Error().
				Stringer("kind", p.Kind()).
				Uint16("sqe_num", p.SqeNum()).
				Msg("task takes too many records")
		}

		return TaskRef{}, err
	}

	if err := s.checkCanSend(); err != nil {
		return TaskRef{}, err
	}

	s.lock.Lock()

	d, dst, err := s.Alloc(ctx, p.SqeNum())
	if err != nil {
		s.lock.Unlock()
		return TaskRef{}, err
	}

	if o.Args != nil {
		d.Args = o.Args
	}

	var captured *CaptureSession
	if dst != s {
		captured = s.CaptureSession()
	}

	pos := d.ID
	guard := &rollbackGuard{armed: true, undo: func() {
		d.ReleaseArgs()
		if rbErr := dst.ring.RollbackTail(pos); rbErr != nil {
			dst.logger.Error().Err(rbErr).Uint16("pos", pos).Msg("rollback failed")
		}

		if captured != nil {
			captured.uncount()
		}
	}}

	d.Fill(p)
	d.NeedStreamSync = o.Sync
	d.CqeNeedConcern = d.CqeNeedConcern || o.CqeNeedConcern || o.Sync
	d.NeedPostProc = o.PostProc

	err = dst.send(ctx, d)
	if err != nil {
		guard.run()
		s.lock.Unlock()

		return TaskRef{}, err
	}

	guard.disarm()
	ref := dst.refOf(d)
	s.lock.Unlock()

	return ref, dst.postProc(ctx, ref, o)
}

func (s *Stream) checkCanSend() error {
	if err := s.AbortStatus(); err != nil {
		return err
	}

	if s.dev.IsDown() {
		return rterr.New(rterr.ErrDrv, pkgName, "submit", nil)
	}

	return nil
}

func (s *Stream) refOf(d *task.Descriptor) TaskRef {
	return TaskRef{
		Stream:  s,
		Pos:     d.ID,
		FlipNum: d.FlipNum,
		TaskSn:  d.TaskSn,
		Kind:    d.Kind,
	}
}

// submitDirect sends a task on the stream's own ring without capture
// routing, waiting or post processing. Its own allocation lock is taken.
func (s *Stream) submitDirect(ctx context.Context, p task.Payload) (TaskRef, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	d, _, err := s.ring.Alloc(p.SqeNum())
	if err != nil {
		if rterr.Is(err, rterr.ErrQueueFull) {
			return TaskRef{}, rterr.New(rterr.ErrStreamFull, pkgName, "submit", err)
		}

		return TaskRef{}, err
	}

	s.stamp(d)
	d.Fill(p)

	if err := s.send(ctx, d); err != nil {
		if rbErr := s.ring.RollbackTail(d.ID); rbErr != nil {
			s.logger.Error().Err(rbErr).Uint16("pos", d.ID).Msg("rollback failed")
		}

		return TaskRef{}, err
	}

	return s.refOf(d), nil
}

// send encodes a filled descriptor, queues it for post processing if
// needed and hands the records to the device. On success, the flip number
// advances if the task reached the end of the ring. On failure, a public
// queue entry added for the task is removed again.
func (s *Stream) send(ctx context.Context, d *task.Descriptor) error {
	var flags sqe.Flags
	if s.ring.NeedHeadUpdate() {
		flags |= sqe.FlagHeadUpdate
	}

	records, err := s.encode(d, flags)
	if err != nil {
		return err
	}

	added := false
	if d.NeedPostProc && !s.bound {
		if err := s.AddPublicTask(d.ID); err != nil {
			s.ShowPublicQueue()
			return err
		}

		added = true
	}

	_, err = s.channel.Send(ctx, transport.Request{
		SqID:    s.sqID,
		Records: records,
		Count:   d.SqeNum,
		OnStall: func(uint64) { s.DFXCheck("device queue full") },
	})
	if err != nil {
		if added {
			s.undoPublicTask(d.ID)
		}

		return err
	}

	if !s.bound && transport.CrossesBoundary(d.ID, d.SqeNum, s.depth) {
		s.flipNum.Add(1)
	}

	flipID := d.FlipTaskID()
	s.lastTaskID.Store(flipID)
	if d.NeedStreamSync || d.CqeNeedConcern {
		s.latestConcernedTaskID.Store(flipID)
	}

	ref := s.refOf(d)
	s.lastRef.Store(&ref)

	s.invokeTaskHook(HookPosTaskSubmit, d)

	s.logger.Debug().
		Uint16("pos", d.ID).
		Uint16("flip", d.FlipNum).
		Uint64("task_sn", d.TaskSn).
		Stringer("kind", d.Kind).
		Msg("task sent")

	return nil
}

// encode writes the records of a task. With a host ring, the records are
// written in place at the slot of the task.
func (s *Stream) encode(d *task.Descriptor, flags sqe.Flags) ([]byte, error) {
	size := int(d.SqeNum) * sqe.RecordSize

	if s.hostRing == nil {
		buf := make([]byte, size)
		if err := sqe.Encode(d, buf, flags); err != nil {
			return nil, err
		}

		return buf, nil
	}

	if err := sqe.EncodeAt(s.hostRing, d, flags); err != nil {
		return nil, err
	}

	start := sqe.Offset(d.ID)
	if start+size <= len(s.hostRing) {
		return s.hostRing[start : start+size], nil
	}

	buf := make([]byte, 0, size)
	buf = append(buf, s.hostRing[start:]...)
	buf = append(buf, s.hostRing[:size-len(buf)]...)

	return buf, nil
}

// postProc runs after the allocation lock is released: a synchronous wait,
// or a recycling step.
func (s *Stream) postProc(ctx context.Context, ref TaskRef, o SubmitOptions) error {
	if s.bound {
		return nil
	}

	if o.Sync {
		s.syncLock.Lock()
		defer s.syncLock.Unlock()

		return s.syncTaskLocked(ctx, ref, o.Timeout)
	}

	if s.separateRecycle {
		if s.ring.AllocTimes()%s.recycleEvery == 0 {
			s.ctx.recycler.Wake()
		}

		return nil
	}

	return s.TryRecycle(ctx)
}
