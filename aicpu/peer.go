package aicpu

import (
	"sync"

	"github.com/brickingsoft/errors"
	"github.com/sarchlab/davidrt/naming"
)

// QueueScheduler is an in-process stand-in for the queue scheduler that the
// dispatcher forwards requests to. It keeps a route table and answers every
// request it receives, unless muted.
type QueueScheduler struct {
	naming.NamedBase

	transport EventTransport
	queueID   uint32

	lock   sync.Mutex
	routes []Route
	muted  bool
}

// NewQueueScheduler creates a queue scheduler that answers bind queue init
// with the given pipeline queue.
func NewQueueScheduler(
	name string,
	transport EventTransport,
	pipelineQueueID uint32,
) *QueueScheduler {
	naming.NameMustBeValid(name)

	return &QueueScheduler{
		NamedBase: naming.MakeNamedBase(name),
		transport: transport,
		queueID:   pipelineQueueID,
	}
}

// SetMuted makes the scheduler drop requests without answering.
func (q *QueueScheduler) SetMuted(muted bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.muted = muted
}

// Routes returns the bound routes.
func (q *QueueScheduler) Routes() []Route {
	q.lock.Lock()
	defer q.lock.Unlock()

	routes := make([]Route, len(q.routes))
	copy(routes, q.routes)

	return routes
}

// Handle answers a forwarded request.
func (q *QueueScheduler) Handle(evt Event) error {
	kind, ok := ResponseFor(evt.SubEvent)
	if !ok {
		return errors.From(
			ErrUnknownSubEvent,
			errors.WithMeta("sub_event", evt.SubEvent.String()),
		)
	}

	q.lock.Lock()
	if q.muted {
		q.lock.Unlock()
		return nil
	}

	res := Event{SubEvent: kind, Src: q.Name(), UserData: evt.UserData}

	switch evt.SubEvent {
	case SubEventBindQueueInit:
		res.Value = q.queueID
	case SubEventBindQueue:
		res.Routes = q.bind(evt.Routes)
		res.Value = uint32(len(res.Routes))
	case SubEventUnbindQueue:
		res.Routes = q.unbind(evt.Routes)
		res.Value = uint32(len(res.Routes))
	case SubEventQueryQueueNum:
		res.Value = uint32(len(q.routes))
	case SubEventQueryQueue:
		res.Routes = q.query(evt.Routes)
		res.Value = uint32(len(res.Routes))
	}
	q.lock.Unlock()

	return q.transport.Send(evt.Src, res)
}

func (q *QueueScheduler) indexOf(r Route) int {
	for i, existing := range q.routes {
		if existing.Src == r.Src && existing.Dst == r.Dst {
			return i
		}
	}

	return -1
}

// bind adds the routes and returns each with its status. A route that is
// already bound reports RetRepeatedInit.
func (q *QueueScheduler) bind(routes []Route) []Route {
	out := make([]Route, 0, len(routes))

	for _, r := range routes {
		r.Status = RetOK
		if q.indexOf(r) >= 0 {
			r.Status = RetRepeatedInit
		} else {
			q.routes = append(q.routes, r)
		}

		out = append(out, r)
	}

	return out
}

func (q *QueueScheduler) unbind(routes []Route) []Route {
	out := make([]Route, 0, len(routes))

	for _, r := range routes {
		r.Status = RetOK
		if i := q.indexOf(r); i >= 0 {
			q.routes = append(q.routes[:i], q.routes[i+1:]...)
		} else {
			r.Status = RetNotFound
		}

		out = append(out, r)
	}

	return out
}

// query returns the bound routes whose source matches a requested route. A
// requested destination of zero matches any destination.
func (q *QueueScheduler) query(routes []Route) []Route {
	var out []Route

	for _, existing := range q.routes {
		for _, r := range routes {
			if existing.Src != r.Src {
				continue
			}

			if r.Dst != 0 && existing.Dst != r.Dst {
				continue
			}

			out = append(out, existing)

			break
		}
	}

	return out
}
