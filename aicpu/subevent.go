// Package aicpu implements the queue-event protocol spoken between the
// runtime, the AICPU scheduler and the queue scheduler. Requests are
// forwarded to the queue scheduler and every request produces exactly one
// response back to its sender, carrying the sender's user data.
package aicpu

import "fmt"

// SubEvent identifies the kind of a queue event.
type SubEvent uint32

// Queue event kinds. Each request has exactly one response kind.
const (
	SubEventBindQueueInit SubEvent = iota + 1
	SubEventBindQueueInitRes
	SubEventBindQueue
	SubEventBindQueueRes
	SubEventUnbindQueue
	SubEventUnbindQueueRes
	SubEventQueryQueueNum
	SubEventQueryQueueNumRes
	SubEventQueryQueue
	SubEventQueryQueueRes
)

var responseOf = map[SubEvent]SubEvent{
	SubEventBindQueueInit: SubEventBindQueueInitRes,
	SubEventBindQueue:     SubEventBindQueueRes,
	SubEventUnbindQueue:   SubEventUnbindQueueRes,
	SubEventQueryQueueNum: SubEventQueryQueueNumRes,
	SubEventQueryQueue:    SubEventQueryQueueRes,
}

var subEventNames = map[SubEvent]string{
	SubEventBindQueueInit:    "BindQueueInit",
	SubEventBindQueueInitRes: "BindQueueInitRes",
	SubEventBindQueue:        "BindQueue",
	SubEventBindQueueRes:     "BindQueueRes",
	SubEventUnbindQueue:      "UnbindQueue",
	SubEventUnbindQueueRes:   "UnbindQueueRes",
	SubEventQueryQueueNum:    "QueryQueueNum",
	SubEventQueryQueueNumRes: "QueryQueueNumRes",
	SubEventQueryQueue:       "QueryQueue",
	SubEventQueryQueueRes:    "QueryQueueRes",
}

func (s SubEvent) String() string {
	if name, ok := subEventNames[s]; ok {
		return name
	}

	return fmt.Sprintf("SubEvent(%d)", uint32(s))
}

// ResponseFor returns the response kind of a request kind. It returns false
// for responses and unknown kinds.
func ResponseFor(req SubEvent) (SubEvent, bool) {
	res, ok := responseOf[req]
	return res, ok
}

// IsResponse tells if the kind is a response.
func (s SubEvent) IsResponse() bool {
	for _, res := range responseOf {
		if res == s {
			return true
		}
	}

	return false
}

// IsRequest tells if the kind is a request.
func (s SubEvent) IsRequest() bool {
	_, ok := responseOf[s]
	return ok
}
