package stream

import (
	"context"
	"sync"

	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/idgen"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/task"
)

// CaptureStatus is the state of a capture session.
type CaptureStatus int

// Capture states.
const (
	CaptureNone CaptureStatus = iota
	CaptureActive
	CaptureInvalidated
	CaptureEnded
)

func (s CaptureStatus) String() string {
	switch s {
	case CaptureActive:
		return "active"
	case CaptureInvalidated:
		return "invalidated"
	case CaptureEnded:
		return "ended"
	default:
		return "none"
	}
}

// A CaptureSession records the tasks submitted to a stream into bound
// streams instead of executing them. When the current bound stream runs low
// on slots, the session continues on a new one, linked to the previous one
// by a stream active task.
type CaptureSession struct {
	id     string
	origin *Stream

	lock            sync.Mutex
	status          CaptureStatus
	target          *Stream
	chain           []*Stream
	taskGroupBroken bool
	invalidErr      error
	numTasks        int
}

// ID returns the id of the session.
func (cs *CaptureSession) ID() string {
	return cs.id
}

// Status returns the state of the session.
func (cs *CaptureSession) Status() CaptureStatus {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	return cs.status
}

// Target returns the stream that receives the next captured task, or nil
// once the session is over.
func (cs *CaptureSession) Target() *Stream {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	return cs.target
}

// Streams returns the bound streams of the session in cascade order.
func (cs *CaptureSession) Streams() []*Stream {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	out := make([]*Stream, len(cs.chain))
	copy(out, cs.chain)

	return out
}

// NumTasks returns the number of tasks captured so far.
func (cs *CaptureSession) NumTasks() int {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	return cs.numTasks
}

// uncount drops a captured task whose slots were returned to the ring.
func (cs *CaptureSession) uncount() {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	if cs.numTasks > 0 {
		cs.numTasks--
	}
}

// InterruptTaskGroup marks the task group being captured as broken. Later
// captured allocations fail with StreamTaskGroupInterrupt.
func (cs *CaptureSession) InterruptTaskGroup() {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	cs.taskGroupBroken = true
}

// Terminate tears the session down. Tasks submitted afterwards go to the
// capturing stream as if it did not capture, and EndCapture reports the
// session as invalidated.
func (cs *CaptureSession) Terminate(cause error) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	cs.terminateLocked(cause)
}

func (cs *CaptureSession) terminateLocked(cause error) {
	if cs.status != CaptureActive {
		return
	}

	cs.status = CaptureInvalidated
	cs.target = nil
	cs.invalidErr = rterr.New(rterr.ErrCaptureInvalidated, pkgName, "capture", cause)

	cs.origin.logger.Warn().
		Err(cause).
		Str("session", cs.id).
		Msg("capture terminated")
}

// BeginCapture starts capturing the tasks submitted to the stream.
func (s *Stream) BeginCapture() (*CaptureSession, error) {
	if s.bound {
		return nil, rterr.New(rterr.ErrStreamInvalid, pkgName, "begin capture", nil)
	}

	s.captureLock.Lock()
	defer s.captureLock.Unlock()

	if s.capture != nil {
		return nil, rterr.New(rterr.ErrInvalidValue, pkgName, "begin capture", nil)
	}

	first, err := s.ctx.allocCaptureStream(s)
	if err != nil {
		return nil, err
	}

	cs := &CaptureSession{
		id:     idgen.SessionID(),
		origin: s,
		status: CaptureActive,
		target: first,
		chain:  []*Stream{first},
	}
	s.capture = cs

	s.logger.Debug().Str("session", cs.id).Msg("capture begins")

	return cs, nil
}

// CaptureSession returns the session the stream captures into, if any.
func (s *Stream) CaptureSession() *CaptureSession {
	s.captureLock.Lock()
	defer s.captureLock.Unlock()

	return s.capture
}

func (s *Stream) isCapturing() bool {
	return s.CaptureSession() != nil
}

// EndCapture stops capturing and returns the captured model. If the session
// was invalidated, its streams are destroyed and CaptureInvalidated is
// returned.
func (s *Stream) EndCapture() (*Model, error) {
	s.captureLock.Lock()
	cs := s.capture
	s.capture = nil
	s.captureLock.Unlock()

	if cs == nil {
		return nil, rterr.New(rterr.ErrStreamNotCapturing, pkgName, "end capture", nil)
	}

	cs.lock.Lock()
	status := cs.status
	invalidErr := cs.invalidErr
	chain := cs.chain
	numTasks := cs.numTasks
	if status == CaptureActive {
		cs.status = CaptureEnded
	}
	cs.target = nil
	cs.lock.Unlock()

	if status != CaptureActive {
		for _, bound := range chain {
			_ = s.ctx.DestroyStream(bound)
		}

		return nil, invalidErr
	}

	s.logger.Debug().
		Str("session", cs.id).
		Int("streams", len(chain)).
		Int("tasks", numTasks).
		Msg("capture ends")

	return &Model{
		id:       cs.id,
		ctx:      s.ctx,
		streams:  chain,
		numTasks: numTasks,
	}, nil
}

// allocCapture claims slots on the current capture stream, cascading to a
// new capture stream when the current one runs low. The allocation lock of
// s must be held.
func (s *Stream) allocCapture(sqeNum uint16) (*task.Descriptor, *Stream, error) {
	cs := s.CaptureSession()
	if cs == nil {
		return nil, nil, rterr.New(rterr.ErrStreamCaptureExit, pkgName, "capture", nil)
	}

	cs.lock.Lock()
	defer cs.lock.Unlock()

	target := cs.target
	if cs.status != CaptureActive || target == nil {
		return nil, nil, rterr.New(rterr.ErrStreamCaptureExit, pkgName, "capture", nil)
	}

	if !target.persistent {
		return nil, nil, rterr.New(rterr.ErrStreamInvalid, pkgName, "capture", nil)
	}

	if cs.taskGroupBroken {
		return nil, nil, rterr.New(
			rterr.ErrStreamTaskGroupInterrupt, pkgName, "capture", nil)
	}

	if uint32(target.ring.Tail())+uint32(target.captureReserved)+uint32(sqeNum) >=
		uint32(target.depth) {
		next, err := s.cascade(cs, target)
		if err != nil {
			return nil, nil, err
		}

		target = next
	}

	d, _, err := target.ring.Alloc(sqeNum)
	if err != nil {
		cs.terminateLocked(err)
		return nil, nil, cs.invalidErr
	}

	target.stamp(d)
	cs.numTasks++

	return d, target, nil
}

// cascade continues the session on a new capture stream. The new stream is
// activated by a stream active task at the end of the current one, so it
// only starts executing after the current one is done. Any failure
// terminates the session. The session lock must be held.
func (s *Stream) cascade(cs *CaptureSession, current *Stream) (*Stream, error) {
	next, err := s.ctx.allocCaptureStream(current)
	if err != nil {
		cs.terminateLocked(err)
		return nil, cs.invalidErr
	}

	// The reserved slots of the current stream guarantee room for the link.
	_, err = current.submitDirect(context.Background(), task.StreamActive{
		StreamID: next.id,
		SqID:     next.sqID,
	})
	if err != nil {
		_ = s.ctx.DestroyStream(next)
		cs.terminateLocked(err)

		return nil, cs.invalidErr
	}

	cs.chain = append(cs.chain, next)
	cs.target = next

	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosCaptureCascade,
			Item:   next,
			Detail: current,
		})
	}

	s.logger.Debug().
		Str("session", cs.id).
		Uint32("from", current.id).
		Uint32("to", next.id).
		Msg("capture cascades")

	return next, nil
}

// allocCaptureStream creates a bound stream shaped like like. At least one
// slot is reserved for the link to the next capture stream.
func (c *Context) allocCaptureStream(like *Stream) (*Stream, error) {
	s, err := c.StreamBuilder().
		WithDepth(like.depth).
		WithMaxSqePerTask(like.maxSqePerTask).
		WithCaptureReserved(max(like.captureReserved, 1)).
		WithBound(true).
		Build("")
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Model is the result of a capture: bound streams that execute the captured
// tasks in order once launched.
type Model struct {
	id       string
	ctx      *Context
	streams  []*Stream
	numTasks int
}

// ID returns the id of the model, which is the id of the capture session.
func (m *Model) ID() string {
	return m.id
}

// Streams returns the bound streams in execution order.
func (m *Model) Streams() []*Stream {
	return m.streams
}

// NumTasks returns the number of captured tasks.
func (m *Model) NumTasks() int {
	return m.numTasks
}

// Launch starts executing the model after the tasks already submitted to
// the given stream.
func (m *Model) Launch(ctx context.Context, on *Stream) (TaskRef, error) {
	if len(m.streams) == 0 {
		return TaskRef{}, rterr.New(rterr.ErrStreamEmpty, pkgName, "launch", nil)
	}

	first := m.streams[0]

	return on.Submit(ctx, task.StreamActive{StreamID: first.id, SqID: first.sqID})
}

// Release destroys the bound streams of the model.
func (m *Model) Release() error {
	var firstErr error

	for _, s := range m.streams {
		if err := m.ctx.DestroyStream(s); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.streams = nil

	return firstErr
}
