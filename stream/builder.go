package stream

import (
	"log"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/driver"
	"github.com/sarchlab/davidrt/naming"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/sqe"
	"github.com/sarchlab/davidrt/taskres"
)

// Builder can build streams.
type Builder struct {
	ctx              *Context
	depth            uint16
	publicQueueDepth uint16
	maxSqePerTask    uint16
	captureReserved  uint16
	persistent       bool
	bound            bool
	separateRecycle  bool
	recycleEvery     uint64
	syncPoll         time.Duration
	hostRing         bool
	logThrottle      uint32
	checkEvery       uint64
}

func makeBuilder(ctx *Context) Builder {
	cfg := ctx.cfg

	return Builder{
		ctx:              ctx,
		depth:            cfg.RingDepth,
		publicQueueDepth: cfg.PublicQueueDepth,
		maxSqePerTask:    cfg.MaxSqePerTask,
		captureReserved:  cfg.CaptureReserved,
		separateRecycle:  cfg.SeparateRecycle,
		recycleEvery:     cfg.RecycleEvery,
		syncPoll:         cfg.SyncPoll,
		logThrottle:      cfg.LogThrottle,
		checkEvery:       cfg.CheckEvery,
	}
}

// WithDepth sets the number of slots of the task ring.
func (b Builder) WithDepth(depth uint16) Builder {
	b.depth = depth
	return b
}

// WithPublicQueueDepth sets the number of entries of the public queue.
func (b Builder) WithPublicQueueDepth(depth uint16) Builder {
	b.publicQueueDepth = depth
	return b
}

// WithMaxSqePerTask sets the largest number of records one task may take.
func (b Builder) WithMaxSqePerTask(n uint16) Builder {
	b.maxSqePerTask = n
	return b
}

// WithCaptureReserved sets the number of slots kept free at the end of a
// capture stream's ring before the capture cascades to a new stream.
func (b Builder) WithCaptureReserved(n uint16) Builder {
	b.captureReserved = n
	return b
}

// WithPersistent makes allocation fail with StreamFull instead of waiting
// when the ring is full.
func (b Builder) WithPersistent(persistent bool) Builder {
	b.persistent = persistent
	return b
}

// WithBound binds the stream to a captured model. Bound streams are
// persistent, start inactive, and are recycled by maintenance tasks instead
// of per-task recycling.
func (b Builder) WithBound(bound bool) Builder {
	b.bound = bound
	if bound {
		b.persistent = true
	}

	return b
}

// WithSeparateRecycle lets the context's recycler reclaim slots instead of
// the submitting goroutine.
func (b Builder) WithSeparateRecycle(separate bool) Builder {
	b.separateRecycle = separate
	return b
}

// WithRecycleEvery sets after how many allocations the recycler is woken up
// when recycling is separate.
func (b Builder) WithRecycleEvery(n uint64) Builder {
	b.recycleEvery = n
	return b
}

// WithSyncPoll sets the polling interval of synchronous waits.
func (b Builder) WithSyncPoll(d time.Duration) Builder {
	b.syncPoll = d
	return b
}

// WithHostRing keeps a host copy of the submission ring. Records are then
// encoded in place at the slot position before being sent.
func (b Builder) WithHostRing(hostRing bool) Builder {
	b.hostRing = hostRing
	return b
}

// Build creates a stream. An empty name is replaced by a name derived from
// the stream id.
func (b Builder) Build(name string) (*Stream, error) {
	b.mustBeValid()

	id := b.ctx.allocStreamID()
	if name == "" {
		name = naming.BuildWithIndex(b.ctx.Name(), "Stream", int(id))
	}

	var flags driver.SqFlag
	if b.bound {
		flags |= driver.SqInactive
	}

	dev := b.ctx.dev

	sqID, cqID, err := dev.Driver().AllocSqCq(dev.ID(), dev.TsID(), b.depth, flags)
	if err != nil {
		return nil, rterr.New(rterr.ErrResourceExhausted, pkgName, "alloc sq", err)
	}

	s := &Stream{
		NamedBase:        naming.MakeNamedBase(name),
		id:               id,
		ctx:              b.ctx,
		dev:              dev,
		channel:          dev.Channel(),
		sqID:             sqID,
		cqID:             cqID,
		ring:             taskres.NewRing(b.depth),
		depth:            b.depth,
		maxSqePerTask:    b.maxSqePerTask,
		captureReserved:  b.captureReserved,
		persistent:       b.persistent,
		bound:            b.bound,
		separateRecycle:  b.separateRecycle,
		recycleEvery:     b.recycleEvery,
		syncPoll:         b.syncPoll,
		checkEvery:       b.checkEvery,
		publicQueue:      make([]uint16, b.publicQueueDepth),
		publicQueueDepth: b.publicQueueDepth,
		argRecycle:       queue.New(),
		cntNotifyID:      noNotify,
	}

	if b.hostRing {
		s.hostRing = make([]byte, int(b.depth)*sqe.RecordSize)
	}

	s.logger = b.ctx.logger.With().
		Uint32("stream", id).
		Uint32("sq", sqID).
		Logger()
	s.hotLogger = s.logger.Sample(&zerolog.BasicSampler{N: max(b.logThrottle, 1)})

	for _, h := range b.ctx.Hooks() {
		s.AcceptHook(h)
	}

	if err := b.ctx.register(s); err != nil {
		_ = dev.Driver().FreeSqCq(dev.ID(), dev.TsID(), sqID, cqID)
		return nil, err
	}

	s.logger.Debug().
		Bool("persistent", s.persistent).
		Bool("bound", s.bound).
		Uint16("depth", s.depth).
		Msg("stream created")

	return s, nil
}

func (b Builder) mustBeValid() {
	switch {
	case b.ctx == nil:
		log.Panic("stream builder requires a context")
	case b.depth < 2:
		log.Panic("stream ring depth must be at least 2")
	case b.publicQueueDepth < 2:
		log.Panic("public queue depth must be at least 2")
	case b.maxSqePerTask == 0 || b.maxSqePerTask >= b.depth:
		log.Panic("max records per task must be in [1, depth)")
	case b.recycleEvery == 0:
		log.Panic("recycle interval must be positive")
	}
}
