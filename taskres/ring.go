// Package taskres manages the circular pool of task slots owned by a stream.
package taskres

import (
	"log"
	"sync"

	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/task"
)

// HeadUpdateInterval is the number of allocations between two requests for
// a device head write back.
const HeadUpdateInterval = 64

// Allocator is what the submission engine needs from a slot pool.
type Allocator interface {
	// Alloc claims sqeNum contiguous slots.
	Alloc(sqeNum uint16) (*task.Descriptor, uint16, error)

	// RollbackTail returns the most recent claim starting at pos.
	RollbackTail(pos uint16) error

	// Reclaim releases the tasks between the current head and newHead.
	Reclaim(newHead uint16, release func(d *task.Descriptor)) int

	// Get returns the descriptor at a slot.
	Get(pos uint16) *task.Descriptor

	// HeadTail returns a consistent snapshot of the head and the tail.
	HeadTail() (head, tail uint16)

	// Depth returns the number of slots.
	Depth() uint16
}

// Ring is a fixed-size circular pool of task slots. Tail is the next slot to
// allocate and head the oldest slot not yet recycled. The ring never fills
// completely, so head == tail always means empty.
type Ring struct {
	lock       sync.Mutex
	depth      uint16
	slots      []task.Descriptor
	head       uint16
	tail       uint16
	allocTimes uint64
}

// NewRing creates a ring with the given number of slots.
func NewRing(depth uint16) *Ring {
	if depth < 2 {
		log.Panic("task ring depth must be at least 2")
	}

	return &Ring{
		depth: depth,
		slots: make([]task.Descriptor, depth),
	}
}

// Depth returns the number of slots.
func (r *Ring) Depth() uint16 {
	return r.depth
}

// HeadTail returns a consistent snapshot of the head and the tail.
func (r *Ring) HeadTail() (head, tail uint16) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.head, r.tail
}

// Head returns the oldest slot not yet recycled.
func (r *Ring) Head() uint16 {
	h, _ := r.HeadTail()
	return h
}

// Tail returns the next slot to allocate.
func (r *Ring) Tail() uint16 {
	_, t := r.HeadTail()
	return t
}

// InFlight returns the number of claimed slots.
func (r *Ring) InFlight() uint16 {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.inFlight()
}

func (r *Ring) inFlight() uint16 {
	return uint16((uint32(r.tail) + uint32(r.depth) - uint32(r.head)) %
		uint32(r.depth))
}

// Free returns the number of slots that can still be claimed.
func (r *Ring) Free() uint16 {
	return r.depth - 1 - r.InFlight()
}

// AllocTimes returns the number of successful claims.
func (r *Ring) AllocTimes() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.allocTimes
}

// NeedHeadUpdate tells if the latest claim should ask the device to write
// back its head.
func (r *Ring) NeedHeadUpdate() bool {
	return r.AllocTimes()%HeadUpdateInterval == 0
}

// Alloc claims sqeNum contiguous slots starting at the tail. The slots may
// continue past the ring end at slot 0. The descriptor at the returned
// position is zero-filled with ID and SqeNum set. It returns ErrQueueFull if
// the claim would leave no free slot.
func (r *Ring) Alloc(sqeNum uint16) (*task.Descriptor, uint16, error) {
	if sqeNum == 0 || sqeNum >= r.depth {
		return nil, 0, rterr.New(rterr.ErrInvalidValue, "taskres", "alloc", nil)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if uint32(r.inFlight())+uint32(sqeNum) > uint32(r.depth)-1 {
		return nil, 0, rterr.New(rterr.ErrQueueFull, "taskres", "alloc", nil)
	}

	pos := r.tail
	r.tail = r.advance(r.tail, sqeNum)
	r.allocTimes++

	d := &r.slots[pos]
	d.Reset()
	d.ID = pos
	d.SqeNum = sqeNum

	return d, pos, nil
}

// RollbackTail returns the claim starting at pos. Only the most recent
// claim can be returned.
func (r *Ring) RollbackTail(pos uint16) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if pos >= r.depth {
		return rterr.New(rterr.ErrInvalidValue, "taskres", "rollback", nil)
	}

	d := &r.slots[pos]
	if d.SqeNum == 0 || r.advance(pos, d.SqeNum) != r.tail {
		return rterr.New(rterr.ErrInvalidValue, "taskres", "rollback", nil)
	}

	r.tail = pos
	r.allocTimes--
	d.Reset()

	return nil
}

// Get returns the descriptor at a slot.
func (r *Ring) Get(pos uint16) *task.Descriptor {
	return &r.slots[pos%r.depth]
}

// Reclaim walks the tasks from the head towards newHead, calls release on
// each task that is entirely before newHead and then moves the head past
// them. A newHead outside the claimed range is clamped to the tail. It
// returns the number of tasks released.
//
// Reclaim must not run concurrently with itself.
func (r *Ring) Reclaim(
	newHead uint16,
	release func(d *task.Descriptor),
) int {
	r.lock.Lock()
	head := r.head
	inFlight := r.inFlight()
	r.lock.Unlock()

	remaining := r.distance(head, newHead%r.depth)
	if remaining > inFlight {
		remaining = inFlight
	}

	released := 0

	for remaining > 0 {
		d := &r.slots[head]

		n := d.SqeNum
		if n == 0 {
			n = 1
		}

		if n > remaining {
			break
		}

		if release != nil {
			release(d)
		}

		head = r.advance(head, n)
		remaining -= n
		released++
	}

	r.lock.Lock()
	r.head = head
	r.lock.Unlock()

	return released
}

func (r *Ring) advance(pos, n uint16) uint16 {
	return uint16((uint32(pos) + uint32(n)) % uint32(r.depth))
}

func (r *Ring) distance(from, to uint16) uint16 {
	return uint16((uint32(to) + uint32(r.depth) - uint32(from)) %
		uint32(r.depth))
}
