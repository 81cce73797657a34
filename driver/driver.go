// Package driver defines the contract between the submission engine and the
// device driver that owns the hardware submission and completion queues.
package driver

import (
	"github.com/brickingsoft/errors"
)

// Errors reported by drivers.
var (
	// ErrNoResources is transient backpressure: the device queue is full.
	ErrNoResources = errors.Define("driver: no resources")
	ErrDeviceDown  = errors.Define("driver: device down")
	ErrInvalidSq   = errors.Define("driver: invalid submission queue")
	ErrExhausted   = errors.Define("driver: ids exhausted")
)

// IsNoResources reports whether a send may succeed when retried.
func IsNoResources(err error) bool {
	return errors.Is(err, ErrNoResources)
}

// State is the running state of a device.
type State int

// Device states.
const (
	StateRunning State = iota
	StateDown
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}

	return "down"
}

// SqFlag modifies the behavior of a submission queue.
type SqFlag uint32

// Submission queue flags.
const (
	// SqInactive queues do not execute until activated by a stream active
	// record. Queues of streams bound to a model start inactive.
	SqInactive SqFlag = 1 << iota
)

// SendInfo describes records to append to a submission queue.
type SendInfo struct {
	SqID    uint32
	TsID    uint32
	Count   uint16
	Records []byte
}

// CQE is a completion report.
type CQE struct {
	SqID    uint32
	SqHead  uint16
	SqeType uint8
	Pos     uint16
	Error   uint32
}

// Driver is the device driver.
type Driver interface {
	// SqTaskSend appends records to a submission queue. It returns
	// ErrNoResources when the queue has no room for now.
	SqTaskSend(devID uint32, info *SendInfo) error

	// SqHead returns the position of the next record the device consumes.
	SqHead(devID, tsID, sqID uint32) (uint16, error)

	// DeviceState returns whether the device can still make progress.
	DeviceState(devID uint32) State

	// AllocSqCq creates a submission queue and its completion queue.
	AllocSqCq(devID, tsID uint32, depth uint16, flags SqFlag) (
		sqID, cqID uint32, err error)

	// FreeSqCq destroys a submission queue and its completion queue.
	FreeSqCq(devID, tsID, sqID, cqID uint32) error

	// PollCq removes up to max reports from a completion queue.
	PollCq(devID, tsID, cqID uint32, max int) ([]CQE, error)

	// AllocNotifyID reserves a notify.
	AllocNotifyID(devID, tsID uint32) (uint32, error)

	// FreeNotifyID releases a notify.
	FreeNotifyID(devID, tsID, notifyID uint32) error
}
