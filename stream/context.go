package stream

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/config"
	"github.com/sarchlab/davidrt/core"
	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/naming"
	"github.com/sarchlab/davidrt/rterr"
)

const pkgName = "stream"

// Context owns the streams created on one device of a runtime. Hooks
// accepted by the context are registered on every stream it creates later.
type Context struct {
	hooking.HookableBase
	naming.NamedBase

	rt       *core.Runtime
	dev      *core.Device
	cfg      config.Config
	logger   zerolog.Logger
	recycler *Recycler

	lock         sync.Mutex
	streams      map[uint32]*Stream
	nextStreamID uint32
	nextEventID  uint32
	abortStatus  error
	isClosed     bool
}

// NewContext creates a context on a device of the runtime. The context is
// closed together with the runtime.
func NewContext(rt *core.Runtime, dev *core.Device) *Context {
	name := naming.Build(
		naming.BuildWithIndex("", "Device", int(dev.ID())), "Context")

	c := &Context{
		NamedBase: naming.MakeNamedBase(name),
		rt:        rt,
		dev:       dev,
		cfg:       rt.Config(),
		logger: rt.Logger().With().
			Uint32("device", dev.ID()).
			Logger(),
		streams: make(map[uint32]*Stream),
	}
	c.recycler = newRecycler(c, c.cfg.SyncPoll)

	rt.OnClose(c.Close)

	return c
}

// Runtime returns the runtime of the context.
func (c *Context) Runtime() *core.Runtime {
	return c.rt
}

// Device returns the device of the context.
func (c *Context) Device() *core.Device {
	return c.dev
}

// Logger returns the logger of the context.
func (c *Context) Logger() zerolog.Logger {
	return c.logger
}

// Recycler returns the recycler that serves the streams of the context
// created with separate recycling.
func (c *Context) Recycler() *Recycler {
	return c.recycler
}

// StreamBuilder returns a stream builder preset from the runtime
// configuration.
func (c *Context) StreamBuilder() Builder {
	return makeBuilder(c)
}

// CreateStream creates a stream with the default parameters.
func (c *Context) CreateStream() (*Stream, error) {
	return c.StreamBuilder().Build("")
}

// Stream returns a stream by id.
func (c *Context) Stream(id uint32) (*Stream, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	s, ok := c.streams[id]

	return s, ok
}

// Streams returns all live streams, ordered by id.
func (c *Context) Streams() []*Stream {
	c.lock.Lock()
	out := make([]*Stream, 0, len(c.streams))
	for _, s := range c.streams {
		out = append(out, s)
	}
	c.lock.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })

	return out
}

// Abort puts the context into the abort state. Every blocking point of its
// streams returns ContextAbort afterwards.
func (c *Context) Abort() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.abortStatus = rterr.New(rterr.ErrContextAbort, pkgName, "abort", nil)
}

// ClearAbort takes the context out of the abort state.
func (c *Context) ClearAbort() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.abortStatus = nil
}

// AbortStatus returns nil unless the context is aborted or closed.
func (c *Context) AbortStatus() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.isClosed {
		return rterr.New(rterr.ErrContextAbort, pkgName, "closed", nil)
	}

	return c.abortStatus
}

func (c *Context) register(s *Stream) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.isClosed {
		return rterr.New(rterr.ErrContextAbort, pkgName, "create stream", nil)
	}

	c.streams[s.id] = s

	return nil
}

func (c *Context) allocStreamID() uint32 {
	c.lock.Lock()
	defer c.lock.Unlock()

	id := c.nextStreamID
	c.nextStreamID++

	return id
}

func (c *Context) allocEventID() uint32 {
	c.lock.Lock()
	defer c.lock.Unlock()

	id := c.nextEventID
	c.nextEventID++

	return id
}

// DestroyStream releases the hardware queues of a stream. Tasks still in
// flight are dropped.
func (c *Context) DestroyStream(s *Stream) error {
	c.lock.Lock()
	_, ok := c.streams[s.id]
	delete(c.streams, s.id)
	c.lock.Unlock()

	if !ok {
		return rterr.New(rterr.ErrStreamInvalid, pkgName, "destroy stream", nil)
	}

	return s.teardown()
}

// Close destroys all streams. Closing twice does nothing.
func (c *Context) Close() error {
	c.lock.Lock()
	if c.isClosed {
		c.lock.Unlock()
		return nil
	}

	c.isClosed = true
	streams := c.streams
	c.streams = make(map[uint32]*Stream)
	c.lock.Unlock()

	var firstErr error

	for _, s := range streams {
		if err := s.teardown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
