package task

import (
	"fmt"

	"github.com/sarchlab/davidrt/rterr"
)

// MaxSqeNum is the hardware limit of records per task.
const MaxSqeNum = 32

// Releaser is a resource owned by a task until the task is recycled.
type Releaser interface {
	Release()
}

// Descriptor is one task in a stream's ring. A descriptor lives in the slot
// it was allocated at and is reset whenever the slot is claimed again.
type Descriptor struct {
	// ID is the slot position within the owning stream's ring.
	ID     uint16
	SqeNum uint16
	Kind   Kind

	StreamID uint32
	SqID     uint32

	// TaskSn is unique for the lifetime of the runtime and independent of
	// the slot position.
	TaskSn uint64

	// FlipNum is the ring wrap epoch of the stream at allocation time.
	FlipNum uint16

	NeedStreamSync bool
	CqeNeedConcern bool
	NeedPostProc   bool

	Payload Payload

	// Args is returned to its pool when the task is recycled.
	Args Releaser
}

// Reset zero-fills the descriptor.
func (d *Descriptor) Reset() {
	*d = Descriptor{}
}

// Fill sets the payload and the flags derived from it.
func (d *Descriptor) Fill(p Payload) {
	d.Payload = p
	d.Kind = p.Kind()
	d.CqeNeedConcern = d.CqeNeedConcern || d.Kind.NeedsCqe()
}

// FlipTaskID combines the wrap epoch and the slot position into an id that
// stays unique across ring wraps.
func (d *Descriptor) FlipTaskID() uint32 {
	return FlipTaskID(d.FlipNum, d.ID)
}

// FlipTaskID combines a wrap epoch and a slot position.
func FlipTaskID(flip uint16, pos uint16) uint32 {
	return uint32(flip)<<16 | uint32(pos)
}

// ReleaseArgs returns the argument buffer to its owner, if any.
func (d *Descriptor) ReleaseArgs() {
	if d.Args == nil {
		return
	}

	d.Args.Release()
	d.Args = nil
}

func (d *Descriptor) String() string {
	payload := "<nil>"
	if d.Payload != nil {
		payload = d.Payload.String()
	}

	return fmt.Sprintf("task sn=%d stream=%d pos=%d flip=%d sqeNum=%d %s",
		d.TaskSn, d.StreamID, d.ID, d.FlipNum, d.SqeNum, payload)
}

// ValidatePayload checks that the payload can be submitted as one task.
func ValidatePayload(p Payload, maxSqeNum uint16) error {
	if p == nil {
		return rterr.New(rterr.ErrInvalidValue, "task", "validate", nil)
	}

	if !p.Kind().Valid() {
		return rterr.New(rterr.ErrInvalidValue, "task", "validate_kind", nil)
	}

	n := p.SqeNum()
	if n == 0 || n > maxSqeNum {
		return rterr.New(rterr.ErrInvalidValue, "task", "validate_sqe_num", nil)
	}

	return nil
}
