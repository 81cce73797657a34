package stream

import (
	"context"
	"time"

	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/task"
)

// countNotifyThreshold is the record version after which the count notify
// of a stream is no longer used for timeline events.
const countNotifyThreshold = 1 << 31

// Notify is a device flag that one stream sets and another waits on. A wait
// consumes the record.
type Notify struct {
	ctx *Context
	id  uint32
}

// CreateNotify reserves a notify on the device of the context.
func (c *Context) CreateNotify() (*Notify, error) {
	if err := c.AbortStatus(); err != nil {
		return nil, err
	}

	id, err := c.allocNotifyID("create notify")
	if err != nil {
		return nil, err
	}

	return &Notify{ctx: c, id: id}, nil
}

// ID returns the notify id.
func (n *Notify) ID() uint32 {
	return n.id
}

// Record submits a record of the notify to s.
func (n *Notify) Record(ctx context.Context, s *Stream) (TaskRef, error) {
	return s.Submit(ctx, task.NotifyRecord{NotifyID: n.id})
}

// Wait makes s wait until the notify is recorded.
func (n *Notify) Wait(
	ctx context.Context,
	s *Stream,
	timeout time.Duration,
) (TaskRef, error) {
	return s.Submit(ctx, task.NotifyWait{
		NotifyID: n.id,
		Timeout:  deviceTimeout(timeout),
	})
}

// Destroy releases the notify.
func (n *Notify) Destroy() error {
	return n.ctx.freeNotifyID(n.id, "destroy notify")
}

// CountNotify is a device counter that streams set, add to and wait on.
type CountNotify struct {
	ctx *Context
	id  uint32
}

// CreateCountNotify reserves a counting notify on the device of the
// context.
func (c *Context) CreateCountNotify() (*CountNotify, error) {
	if err := c.AbortStatus(); err != nil {
		return nil, err
	}

	id, err := c.allocNotifyID("create count notify")
	if err != nil {
		return nil, err
	}

	return &CountNotify{ctx: c, id: id}, nil
}

// ID returns the notify id.
func (n *CountNotify) ID() uint32 {
	return n.id
}

// Record submits a write of value to s. The mode must be CountModeSet or
// CountModeAdd.
func (n *CountNotify) Record(
	ctx context.Context,
	s *Stream,
	value uint32,
	mode task.CountMode,
) (TaskRef, error) {
	if mode != task.CountModeSet && mode != task.CountModeAdd {
		return TaskRef{}, rterr.New(
			rterr.ErrInvalidValue, pkgName, "record count notify", nil)
	}

	return s.Submit(ctx, task.CountNotify{
		NotifyID: n.id,
		Value:    value,
		Mode:     mode,
	})
}

// Wait makes s wait until the counter compares to value as the mode
// requires. The mode must be one of the wait modes.
func (n *CountNotify) Wait(
	ctx context.Context,
	s *Stream,
	value uint32,
	mode task.CountMode,
	timeout time.Duration,
) (TaskRef, error) {
	if mode != task.CountModeWaitEqual &&
		mode != task.CountModeWaitGreaterOrEqual {
		return TaskRef{}, rterr.New(
			rterr.ErrInvalidValue, pkgName, "wait count notify", nil)
	}

	return s.Submit(ctx, task.CountNotify{
		NotifyID: n.id,
		Value:    value,
		Mode:     mode,
		Timeout:  deviceTimeout(timeout),
		Wait:     true,
	})
}

// Reset submits a clear of the counter to s.
func (n *CountNotify) Reset(ctx context.Context, s *Stream) (TaskRef, error) {
	return s.Submit(ctx, task.CountNotify{NotifyID: n.id, Clear: true})
}

// Destroy releases the notify.
func (n *CountNotify) Destroy() error {
	return n.ctx.freeNotifyID(n.id, "destroy count notify")
}

func (c *Context) freeNotifyID(id uint32, op string) error {
	err := c.dev.Driver().FreeNotifyID(c.dev.ID(), c.dev.TsID(), id)
	if err != nil {
		return rterr.New(rterr.ErrDrv, pkgName, op, err)
	}

	return nil
}

// ApplyCntNotifyID returns the count notify of the stream, reserving it on
// first use.
func (s *Stream) ApplyCntNotifyID() (uint32, error) {
	s.cntNotifyLock.Lock()
	defer s.cntNotifyLock.Unlock()

	if s.cntNotifyID == noNotify {
		id, err := s.ctx.allocNotifyID("apply count notify")
		if err != nil {
			s.logger.Error().Err(err).Msg("alloc count notify failed")
			return 0, err
		}

		s.cntNotifyID = id
		s.recordVersion = 0
	}

	return s.cntNotifyID, nil
}

// CntNotifyID returns the count notify of the stream, if reserved.
func (s *Stream) CntNotifyID() (uint32, bool) {
	s.cntNotifyLock.Lock()
	defer s.cntNotifyLock.Unlock()

	return s.cntNotifyID, s.cntNotifyID != noNotify
}

// ApplyCntValue returns the next record version of the count notify. The
// count notify must have been applied.
func (s *Stream) ApplyCntValue() (uint32, error) {
	s.cntNotifyLock.Lock()
	defer s.cntNotifyLock.Unlock()

	if s.cntNotifyID == noNotify {
		return 0, rterr.New(rterr.ErrInvalidValue, pkgName, "apply count value", nil)
	}

	s.recordVersion++

	return s.recordVersion, nil
}

// IsCntNotifyReachThreshold tells if the count notify has used up its
// record versions.
func (s *Stream) IsCntNotifyReachThreshold() bool {
	s.cntNotifyLock.Lock()
	defer s.cntNotifyLock.Unlock()

	return s.cntNotifyID != noNotify && s.recordVersion >= countNotifyThreshold
}
