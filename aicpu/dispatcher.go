package aicpu

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/hooking"
	"github.com/sarchlab/davidrt/naming"
	"github.com/sarchlab/davidrt/rterr"
)

// Hook positions of a dispatcher. The item is the event.
var (
	// HookPosRequest is triggered when a request arrives.
	HookPosRequest = &hooking.HookPos{Name: "Dispatcher.Request"}

	// HookPosResponse is triggered when a response is sent to a requester.
	HookPosResponse = &hooking.HookPos{Name: "Dispatcher.Response"}
)

type initStatus int32

const (
	initNone initStatus = iota
	initPending
	initDone
)

type pendingRequest struct {
	token    uint64
	req      Event
	deadline time.Time
	resolved bool
}

// Dispatcher is the AICPU side of the queue-event protocol. It validates
// requests, forwards them to the queue scheduler and routes the answers back
// to the requesters.
type Dispatcher struct {
	naming.NamedBase
	hooking.HookableBase

	transport EventTransport
	peer      string
	groupID   uint32
	groups    *GroupTable
	timeout   time.Duration
	logger    zerolog.Logger

	initSpin   atomic.Bool
	initStatus atomic.Int32
	queueID    atomic.Uint32

	lock      sync.Mutex
	pending   map[uint64]*pendingRequest
	order     *queue.Queue
	nextToken uint64

	responses atomic.Uint64
}

// Groups returns the group table of the dispatcher.
func (d *Dispatcher) Groups() *GroupTable {
	return d.groups
}

// IsInitialized tells if bind queue init has completed.
func (d *Dispatcher) IsInitialized() bool {
	return initStatus(d.initStatus.Load()) == initDone
}

// PipelineQueueID returns the queue the queue scheduler assigned during bind
// queue init.
func (d *Dispatcher) PipelineQueueID() uint32 {
	return d.queueID.Load()
}

// NumPending returns the number of forwarded requests still waiting for the
// queue scheduler.
func (d *Dispatcher) NumPending() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	return len(d.pending)
}

// NumResponses returns the number of responses sent to requesters.
func (d *Dispatcher) NumResponses() uint64 {
	return d.responses.Load()
}

// Handle processes one event. A request that fails before it is forwarded
// is answered at once with the matching return code.
func (d *Dispatcher) Handle(evt Event) error {
	if evt.SubEvent.IsResponse() {
		return d.handleResponse(evt)
	}

	if d.NumHooks() > 0 {
		d.InvokeHook(hooking.HookCtx{Domain: d, Pos: HookPosRequest, Item: evt})
	}

	err := d.handleRequest(evt)
	if err != nil {
		d.logger.Error().
			Err(err).
			Stringer("sub_event", evt.SubEvent).
			Str("src", evt.Src).
			Msg("request failed")

		if resErr := d.respond(evt, RetCodeOf(err), 0, nil); resErr != nil {
			d.logger.Error().Err(resErr).Msg("response failed")
		}
	}

	return err
}

func (d *Dispatcher) handleRequest(evt Event) error {
	switch evt.SubEvent {
	case SubEventBindQueueInit:
		return d.bindQueueInit(evt)
	case SubEventBindQueue, SubEventUnbindQueue, SubEventQueryQueue:
		if err := d.mustBeInitialized(); err != nil {
			return err
		}

		if len(evt.Routes) == 0 {
			return rterr.New(rterr.ErrInvalidValue, pkgName, "routes", nil)
		}

		return d.forward(evt)
	case SubEventQueryQueueNum:
		if err := d.mustBeInitialized(); err != nil {
			return err
		}

		return d.forward(evt)
	default:
		return errors.From(
			ErrUnknownSubEvent,
			errors.WithMeta("sub_event", evt.SubEvent.String()),
		)
	}
}

func (d *Dispatcher) mustBeInitialized() error {
	if !d.IsInitialized() {
		return errors.From(ErrNotInit)
	}

	return nil
}

// bindQueueInit runs at most once. A quick check rejects repeated calls
// before the spin flag is taken, and the state is checked again under it.
func (d *Dispatcher) bindQueueInit(evt Event) error {
	repeated := rterr.New(rterr.ErrRepeatedInit, pkgName, "bind queue init", nil)

	if initStatus(d.initStatus.Load()) != initNone {
		return repeated
	}

	if !d.initSpin.CompareAndSwap(false, true) {
		return repeated
	}
	defer d.initSpin.Store(false)

	if initStatus(d.initStatus.Load()) != initNone {
		return repeated
	}

	d.initStatus.Store(int32(initPending))

	if _, err := d.groups.GetOrCreate(d.groupID); err != nil {
		d.initStatus.Store(int32(initNone))
		return rterr.New(rterr.ErrDrv, pkgName, "create group", err)
	}

	if err := d.forward(evt); err != nil {
		d.initStatus.Store(int32(initNone))
		return err
	}

	return nil
}

func (d *Dispatcher) forward(req Event) error {
	d.lock.Lock()
	d.nextToken++
	p := &pendingRequest{
		token:    d.nextToken,
		req:      req,
		deadline: time.Now().Add(d.timeout),
	}
	d.pending[p.token] = p
	d.order.Add(p)
	d.lock.Unlock()

	err := d.transport.Send(d.peer, Event{
		SubEvent: req.SubEvent,
		Src:      d.Name(),
		UserData: p.token,
		Routes:   req.Routes,
	})
	if err != nil {
		d.take(p.token)
		return rterr.New(rterr.ErrDrv, pkgName, "forward", err)
	}

	d.logger.Debug().
		Stringer("sub_event", req.SubEvent).
		Uint64("token", p.token).
		Msg("request forwarded")

	return nil
}

func (d *Dispatcher) take(token uint64) (*pendingRequest, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	p, ok := d.pending[token]
	if !ok {
		return nil, false
	}

	delete(d.pending, token)
	p.resolved = true

	return p, true
}

func (d *Dispatcher) handleResponse(evt Event) error {
	p, ok := d.take(evt.UserData)
	if !ok {
		d.logger.Warn().
			Stringer("sub_event", evt.SubEvent).
			Uint64("token", evt.UserData).
			Msg("response without pending request")

		return errors.From(ErrUnknownCallback)
	}

	if want, _ := ResponseFor(p.req.SubEvent); want != evt.SubEvent {
		d.logger.Warn().
			Stringer("want", want).
			Stringer("got", evt.SubEvent).
			Msg("response kind does not match request")
	}

	if p.req.SubEvent == SubEventBindQueueInit {
		if evt.RetCode == RetOK {
			d.queueID.Store(evt.Value)
			d.initStatus.Store(int32(initDone))
		} else {
			d.initStatus.Store(int32(initNone))
		}
	}

	return d.respond(p.req, evt.RetCode, evt.Value, evt.Routes)
}

// respond sends the one response of a request back to its sender.
func (d *Dispatcher) respond(req Event, code int32, value uint32, routes []Route) error {
	kind, ok := ResponseFor(req.SubEvent)
	if !ok {
		kind = req.SubEvent
	}

	res := Event{
		SubEvent: kind,
		Src:      d.Name(),
		UserData: req.UserData,
		Routes:   routes,
		RetCode:  code,
		Value:    value,
	}

	d.responses.Add(1)

	if d.NumHooks() > 0 {
		d.InvokeHook(hooking.HookCtx{
			Domain: d,
			Pos:    HookPosResponse,
			Item:   res,
			Detail: req,
		})
	}

	if err := d.transport.Send(req.Src, res); err != nil {
		return rterr.New(rterr.ErrDrv, pkgName, "respond", err)
	}

	return nil
}

// Sweep answers the forwarded requests whose deadline has passed before now
// with a timeout. It returns the number of requests answered.
func (d *Dispatcher) Sweep(now time.Time) int {
	var expired []*pendingRequest

	d.lock.Lock()
	for d.order.Length() > 0 {
		p := d.order.Peek().(*pendingRequest)
		if p.resolved {
			d.order.Remove()
			continue
		}

		if now.Before(p.deadline) {
			break
		}

		d.order.Remove()
		delete(d.pending, p.token)
		p.resolved = true
		expired = append(expired, p)
	}
	d.lock.Unlock()

	for _, p := range expired {
		if p.req.SubEvent == SubEventBindQueueInit {
			d.initStatus.CompareAndSwap(int32(initPending), int32(initNone))
		}

		d.logger.Warn().
			Stringer("sub_event", p.req.SubEvent).
			Uint64("token", p.token).
			Msg("request timed out")

		if err := d.respond(p.req, RetTimeout, 0, nil); err != nil {
			d.logger.Error().Err(err).Msg("response failed")
		}
	}

	return len(expired)
}

// Run sweeps timed out requests in the background until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(max(d.timeout/4, time.Millisecond))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				d.Sweep(now)
			}
		}
	}()
}
