package aicpu

import (
	"github.com/brickingsoft/errors"
	"github.com/sarchlab/davidrt/rterr"
)

const pkgName = "aicpu"

// Errors of the queue-event protocol.
var (
	ErrNotInit         = errors.Define("aicpu: bind queue init not done")
	ErrUnknownCallback = errors.Define("aicpu: no pending request for response")
	ErrUnknownSubEvent = errors.Define("aicpu: unknown sub event")
)

// Return codes carried by responses.
const (
	RetOK int32 = iota
	RetInvalidParam
	RetNotInit
	RetRepeatedInit
	RetTimeout
	RetNotFound
	RetDrv
)

// Route connects a source queue to a destination queue.
type Route struct {
	Src    uint32
	Dst    uint32
	Status int32
}

// Event is one queue event.
type Event struct {
	SubEvent SubEvent

	// Src is the endpoint the event comes from. Responses are sent back to
	// it.
	Src string

	// UserData is the correlation token of a request. The response to a
	// request carries the same value.
	UserData uint64

	// Routes are the queue routes of bind, unbind and query requests, and
	// the routes found by a query.
	Routes []Route

	// RetCode and Value are set on responses.
	RetCode int32
	Value   uint32
}

// EventTransport delivers events to named endpoints.
type EventTransport interface {
	Send(dst string, evt Event) error
}

// Handler consumes events.
type Handler interface {
	Handle(evt Event) error
}

// RetCodeOf maps an error to the return code carried by a response.
func RetCodeOf(err error) int32 {
	switch {
	case err == nil:
		return RetOK
	case rterr.Is(err, rterr.ErrRepeatedInit):
		return RetRepeatedInit
	case rterr.Is(err, rterr.ErrTimeout):
		return RetTimeout
	case errors.Is(err, ErrNotInit):
		return RetNotInit
	case rterr.Is(err, rterr.ErrInvalidValue):
		return RetInvalidParam
	case errors.Is(err, ErrUnknownSubEvent), errors.Is(err, ErrUnknownCallback):
		return RetNotFound
	default:
		return RetDrv
	}
}
