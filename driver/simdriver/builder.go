package simdriver

import (
	"log"
	"time"
)

// Builder can build simulated devices.
type Builder struct {
	devID        uint32
	tsID         uint32
	maxSqs       int
	maxNotifies  uint32
	stepInterval time.Duration
	stepBudget   int
}

// MakeBuilder creates a new Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		maxSqs:       1024,
		maxNotifies:  8192,
		stepInterval: 50 * time.Microsecond,
		stepBudget:   64,
	}
}

// WithDeviceID sets the device id.
func (b Builder) WithDeviceID(id uint32) Builder {
	b.devID = id
	return b
}

// WithTsID sets the id of the task scheduler.
func (b Builder) WithTsID(id uint32) Builder {
	b.tsID = id
	return b
}

// WithMaxSqs sets how many submission queues can exist at the same time.
func (b Builder) WithMaxSqs(n int) Builder {
	b.maxSqs = n
	return b
}

// WithMaxNotifies sets how many notifies can be allocated.
func (b Builder) WithMaxNotifies(n uint32) Builder {
	b.maxNotifies = n
	return b
}

// WithStepInterval sets how often the background execution loop runs.
func (b Builder) WithStepInterval(d time.Duration) Builder {
	b.stepInterval = d
	return b
}

// WithStepBudget sets how many tasks each queue executes per loop.
func (b Builder) WithStepBudget(n int) Builder {
	b.stepBudget = n
	return b
}

// Build creates a device with the given name.
func (b Builder) Build(name string) *Device {
	if b.maxSqs <= 0 || b.stepBudget <= 0 {
		log.Panic("simulated device needs queues and a step budget")
	}

	d := &Device{
		name:         name,
		devID:        b.devID,
		tsID:         b.tsID,
		maxSqs:       b.maxSqs,
		maxNotifies:  b.maxNotifies,
		stepInterval: b.stepInterval,
		stepBudget:   b.stepBudget,
		sqs:          make(map[uint32]*submissionQueue),
		cqs:          make(map[uint32]*submissionQueue),
		notifies:     make(map[uint32]*notify),
		noResources:  make(map[uint32]int),
	}

	return d
}
