// Package stream implements streams: ordered task queues that claim slots in
// a ring, encode tasks into submission records, send them to the device,
// and recycle the slots once the device has executed the tasks.
//
// Three locks protect a stream. The allocation lock serializes claiming,
// encoding and sending. The sync lock serializes recycling and synchronous
// waits. The public queue lock guards the queue of tasks that need post
// processing. The allocation lock is never held while waiting for the sync
// lock to be released by a waiter, and the public queue lock is never held
// together with another.
package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/core"
	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/naming"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/task"
	"github.com/sarchlab/davidrt/taskres"
	"github.com/sarchlab/davidrt/transport"
)

const noNotify = ^uint32(0)

// Infinite makes a synchronous wait never time out.
const Infinite time.Duration = -1

// TaskRef identifies a submitted task.
type TaskRef struct {
	// Stream is the stream that holds the task. During capture this may
	// differ from the stream the task was submitted to.
	Stream  *Stream
	Pos     uint16
	FlipNum uint16
	TaskSn  uint64
	Kind    task.Kind
}

// FlipTaskID returns the wrap-disambiguated id of the task.
func (r TaskRef) FlipTaskID() uint32 {
	return task.FlipTaskID(r.FlipNum, r.Pos)
}

// Stream is an ordered queue of tasks on one hardware submission queue.
type Stream struct {
	hooking.HookableBase
	naming.NamedBase

	id      uint32
	ctx     *Context
	dev     *core.Device
	channel *transport.Channel

	sqID            uint32
	cqID            uint32
	ring            *taskres.Ring
	hostRing        []byte
	depth           uint16
	maxSqePerTask   uint16
	captureReserved uint16
	persistent      bool
	bound           bool
	separateRecycle bool
	recycleEvery    uint64
	syncPoll        time.Duration
	checkEvery      uint64

	logger    zerolog.Logger
	hotLogger zerolog.Logger

	lock     sync.Mutex
	syncLock sync.Mutex

	flipNum atomic.Uint32

	publicLock       sync.Mutex
	publicQueue      []uint16
	publicQueueDepth uint16
	publicHead       uint16
	publicTail       uint16

	// argRecycle holds the argument buffers of recycled tasks until the end
	// of the reclaim pass. It is only touched with the sync lock held.
	argRecycle *queue.Queue

	lastTaskID            atomic.Uint32
	latestConcernedTaskID atomic.Uint32
	finishTaskID          atomic.Uint32
	finishedSn            atomic.Uint64
	lastRef               atomic.Pointer[TaskRef]

	statusLock  sync.Mutex
	abortStatus error

	captureLock sync.Mutex
	capture     *CaptureSession

	cntNotifyLock sync.Mutex
	cntNotifyID   uint32
	recordVersion uint32

	isDestroyed atomic.Bool
}

// ID returns the stream id.
func (s *Stream) ID() uint32 {
	return s.id
}

// Context returns the context that owns the stream.
func (s *Stream) Context() *Context {
	return s.ctx
}

// SqID returns the id of the hardware submission queue.
func (s *Stream) SqID() uint32 {
	return s.sqID
}

// CqID returns the id of the hardware completion queue.
func (s *Stream) CqID() uint32 {
	return s.cqID
}

// Depth returns the number of slots of the ring.
func (s *Stream) Depth() uint16 {
	return s.depth
}

// Ring returns the slot ring of the stream.
func (s *Stream) Ring() *taskres.Ring {
	return s.ring
}

// IsPersistent tells if allocation fails instead of waiting on a full ring.
func (s *Stream) IsPersistent() bool {
	return s.persistent
}

// IsBound tells if the stream is bound to a captured model.
func (s *Stream) IsBound() bool {
	return s.bound
}

// FlipNum returns the number of times the ring has wrapped.
func (s *Stream) FlipNum() uint16 {
	return uint16(s.flipNum.Load())
}

// LastTaskID returns the flip task id of the most recently submitted task.
func (s *Stream) LastTaskID() uint32 {
	return s.lastTaskID.Load()
}

// LatestConcernedTaskID returns the flip task id of the most recent task
// whose completion is tracked individually.
func (s *Stream) LatestConcernedTaskID() uint32 {
	return s.latestConcernedTaskID.Load()
}

// FinishTaskID returns the position of the most recently post-processed
// task.
func (s *Stream) FinishTaskID() uint32 {
	return s.finishTaskID.Load()
}

// LastTask returns the most recently submitted task, if any.
func (s *Stream) LastTask() (TaskRef, bool) {
	ref := s.lastRef.Load()
	if ref == nil {
		return TaskRef{}, false
	}

	return *ref, true
}

// Lock acquires the allocation lock.
func (s *Stream) Lock() {
	s.lock.Lock()
}

// Unlock releases the allocation lock.
func (s *Stream) Unlock() {
	s.lock.Unlock()
}

// SyncLock acquires the sync lock.
func (s *Stream) SyncLock() {
	s.syncLock.Lock()
}

// SyncUnlock releases the sync lock.
func (s *Stream) SyncUnlock() {
	s.syncLock.Unlock()
}

// Abort puts the stream into the abort state.
func (s *Stream) Abort() {
	s.statusLock.Lock()
	defer s.statusLock.Unlock()

	s.abortStatus = rterr.New(rterr.ErrStreamAbort, pkgName, "abort", nil)
}

// ClearAbort takes the stream out of the abort state.
func (s *Stream) ClearAbort() {
	s.statusLock.Lock()
	defer s.statusLock.Unlock()

	s.abortStatus = nil
}

// AbortStatus returns the first abort that applies to the stream: the
// context, the stream itself, or the device.
func (s *Stream) AbortStatus() error {
	if err := s.ctx.AbortStatus(); err != nil {
		return err
	}

	s.statusLock.Lock()
	status := s.abortStatus
	s.statusLock.Unlock()

	if status != nil {
		return status
	}

	if s.isDestroyed.Load() {
		return rterr.New(rterr.ErrStreamAbort, pkgName, "destroyed", nil)
	}

	return s.dev.AbortStatus()
}

func (s *Stream) invokeTaskHook(pos *hooking.HookPos, d *task.Descriptor) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   *d,
	})
}

func (s *Stream) teardown() error {
	if !s.isDestroyed.CompareAndSwap(false, true) {
		return nil
	}

	drv := s.dev.Driver()

	s.cntNotifyLock.Lock()
	if s.cntNotifyID != noNotify {
		_ = drv.FreeNotifyID(s.dev.ID(), s.dev.TsID(), s.cntNotifyID)
		s.cntNotifyID = noNotify
	}
	s.cntNotifyLock.Unlock()

	err := drv.FreeSqCq(s.dev.ID(), s.dev.TsID(), s.sqID, s.cqID)
	if err != nil {
		return rterr.New(rterr.ErrDrv, pkgName, "free sq", err)
	}

	s.logger.Debug().Msg("stream destroyed")

	return nil
}
