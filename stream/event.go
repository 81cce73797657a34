package stream

import (
	"context"
	"sync"
	"time"

	"github.com/sarchlab/davidrt/driver"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/task"
)

// Event marks a point in a stream that other streams and the host can wait
// on.
//
// A timeline event records through the count notify of the recording
// stream, so that waiting does not consume the record and later records do
// not disturb earlier waits. A timeline event falls back to its own notify
// once the count notify of the stream runs out of versions.
type Event struct {
	ctx      *Context
	id       uint32
	notifyID uint32
	timeline bool

	lock      sync.Mutex
	recorded  bool
	ref       TaskRef
	cntNotify uint32
	cntValue  uint32
	destroyed bool
}

// CreateEvent creates an event backed by a device notify.
func (c *Context) CreateEvent() (*Event, error) {
	return c.createEvent(false)
}

// CreateTimelineEvent creates an event that records through the count
// notify of the recording stream.
func (c *Context) CreateTimelineEvent() (*Event, error) {
	return c.createEvent(true)
}

func (c *Context) createEvent(timeline bool) (*Event, error) {
	if err := c.AbortStatus(); err != nil {
		return nil, err
	}

	notifyID, err := c.allocNotifyID("create event")
	if err != nil {
		return nil, err
	}

	return &Event{
		ctx:       c,
		id:        c.allocEventID(),
		notifyID:  notifyID,
		timeline:  timeline,
		cntNotify: noNotify,
	}, nil
}

func (c *Context) allocNotifyID(op string) (uint32, error) {
	id, err := c.dev.Driver().AllocNotifyID(c.dev.ID(), c.dev.TsID())
	if err == nil {
		return id, nil
	}

	if rterr.Is(err, driver.ErrExhausted) {
		return 0, rterr.New(rterr.ErrResourceExhausted, pkgName, op, err)
	}

	return 0, rterr.New(rterr.ErrDrv, pkgName, op, err)
}

// ID returns the event id.
func (e *Event) ID() uint32 {
	return e.id
}

// NotifyID returns the id of the notify that backs the event.
func (e *Event) NotifyID() uint32 {
	return e.notifyID
}

// IsRecorded tells if the event has been recorded since creation or the
// last reset.
func (e *Event) IsRecorded() bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.recorded
}

// Record submits a record of the event to s.
func (e *Event) Record(ctx context.Context, s *Stream) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.destroyed {
		return rterr.New(rterr.ErrInvalidValue, pkgName, "record event", nil)
	}

	if e.timeline && !s.IsCntNotifyReachThreshold() {
		return e.recordTimeline(ctx, s)
	}

	ref, err := s.Submit(ctx, task.EventRecord{
		EventID:  e.id,
		NotifyID: e.notifyID,
	}, WithCqe())
	if err != nil {
		return err
	}

	e.recorded = true
	e.ref = ref
	e.cntNotify = noNotify

	return nil
}

func (e *Event) recordTimeline(ctx context.Context, s *Stream) error {
	cntID, err := s.ApplyCntNotifyID()
	if err != nil {
		return err
	}

	value, err := s.ApplyCntValue()
	if err != nil {
		return err
	}

	ref, err := s.Submit(ctx, task.CountNotify{
		NotifyID: cntID,
		Value:    value,
		Mode:     task.CountModeSet,
	}, WithCqe())
	if err != nil {
		return err
	}

	e.recorded = true
	e.ref = ref
	e.cntNotify = cntID
	e.cntValue = value

	return nil
}

// Wait makes s wait until the last record of the event has executed. Waiting
// on an event that was never recorded does nothing. A non-negative timeout
// bounds the wait on the device.
func (e *Event) Wait(
	ctx context.Context,
	s *Stream,
	timeout time.Duration,
) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.destroyed {
		return rterr.New(rterr.ErrInvalidValue, pkgName, "wait event", nil)
	}

	if !e.recorded {
		return nil
	}

	if e.cntNotify != noNotify {
		_, err := s.Submit(ctx, task.CountNotify{
			NotifyID: e.cntNotify,
			Value:    e.cntValue,
			Mode:     task.CountModeWaitGreaterOrEqual,
			Timeout:  deviceTimeout(timeout),
			Wait:     true,
		})

		return err
	}

	_, err := s.Submit(ctx, task.EventWait{
		EventID:      e.id,
		NotifyID:     e.notifyID,
		Timeout:      deviceTimeout(timeout),
		RecordTaskSn: e.ref.TaskSn,
	})

	return err
}

// Reset submits a reset of the event to s. The event counts as not
// recorded afterwards.
func (e *Event) Reset(ctx context.Context, s *Stream) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.destroyed {
		return rterr.New(rterr.ErrInvalidValue, pkgName, "reset event", nil)
	}

	_, err := s.Submit(ctx, task.EventReset{
		EventID:  e.id,
		NotifyID: e.notifyID,
	})
	if err != nil {
		return err
	}

	e.recorded = false
	e.cntNotify = noNotify

	return nil
}

// Query tells if the last record of the event has executed. An event that
// was never recorded counts as complete.
func (e *Event) Query() (bool, error) {
	e.lock.Lock()
	recorded, ref := e.recorded, e.ref
	e.lock.Unlock()

	if !recorded {
		return true, nil
	}

	s := ref.Stream
	if s.isDestroyed.Load() {
		return true, nil
	}

	// After two wraps the slot can only belong to a later task.
	if !s.bound && s.FlipNum()-ref.FlipNum >= 2 {
		return true, nil
	}

	return s.IsDone(ref)
}

// Synchronize blocks until the last record of the event has executed.
func (e *Event) Synchronize(ctx context.Context, timeout time.Duration) error {
	e.lock.Lock()
	recorded, ref := e.recorded, e.ref
	e.lock.Unlock()

	if !recorded {
		return nil
	}

	return ref.Stream.SyncTask(ctx, ref, timeout)
}

// Destroy releases the notify of the event.
func (e *Event) Destroy() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.destroyed {
		return nil
	}

	e.destroyed = true

	return e.ctx.freeNotifyID(e.notifyID, "destroy event")
}

// deviceTimeout converts a wait timeout to the milliseconds carried by a
// wait record, where zero means forever.
func deviceTimeout(timeout time.Duration) uint32 {
	if timeout < 0 {
		return 0
	}

	ms := timeout.Milliseconds()
	if ms == 0 {
		return 1
	}

	if ms > int64(^uint32(0)) {
		return ^uint32(0)
	}

	return uint32(ms)
}
