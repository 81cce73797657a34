package aicpu

import (
	"sync"

	"github.com/brickingsoft/errors"
	"github.com/eapache/queue"
)

// ErrUnknownEndpoint is returned when an event is sent to a name that no
// handler is registered under.
var ErrUnknownEndpoint = errors.Define("aicpu: unknown endpoint")

type envelope struct {
	dst string
	evt Event
}

// Bus is an in-process EventTransport. Sent events are buffered and handed
// to the registered handlers by Deliver, in the order they were sent.
type Bus struct {
	lock     sync.Mutex
	handlers map[string]Handler
	inbox    *queue.Queue
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string]Handler),
		inbox:    queue.New(),
	}
}

// Register binds a handler to an endpoint name.
func (b *Bus) Register(name string, h Handler) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.handlers[name] = h
}

// Send buffers an event for the named endpoint.
func (b *Bus) Send(dst string, evt Event) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if _, ok := b.handlers[dst]; !ok {
		return errors.From(ErrUnknownEndpoint, errors.WithMeta("dst", dst))
	}

	b.inbox.Add(envelope{dst: dst, evt: evt})

	return nil
}

// Pending returns the number of buffered events.
func (b *Bus) Pending() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.inbox.Length()
}

// Deliver hands buffered events to their handlers until the bus is empty,
// including the events sent by the handlers themselves. It returns the
// number of events delivered and the errors the handlers returned.
func (b *Bus) Deliver() (int, []error) {
	n := 0
	var errs []error

	for {
		b.lock.Lock()
		if b.inbox.Length() == 0 {
			b.lock.Unlock()
			return n, errs
		}

		env := b.inbox.Remove().(envelope)
		h := b.handlers[env.dst]
		b.lock.Unlock()

		n++
		if err := h.Handle(env.evt); err != nil {
			errs = append(errs, err)
		}
	}
}

// Recorder is a Handler that keeps every event it receives.
type Recorder struct {
	lock   sync.Mutex
	events []Event
}

// Handle records the event.
func (r *Recorder) Handle(evt Event) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.events = append(r.events, evt)

	return nil
}

// Events returns the events received so far.
func (r *Recorder) Events() []Event {
	r.lock.Lock()
	defer r.lock.Unlock()

	events := make([]Event, len(r.events))
	copy(events, r.events)

	return events
}
