package transport

import (
	"log"
	"time"

	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/driver"
)

// Builder can build channels.
type Builder struct {
	drv         driver.Driver
	devID       uint32
	tsID        uint32
	logger      zerolog.Logger
	logThrottle uint32
	eagerChecks uint64
	checkEvery  uint64
	maxAttempts uint64
	backoff     func(uint64) time.Duration
}

// MakeBuilder creates a new Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		logger:      zerolog.Nop(),
		logThrottle: 100000,
		eagerChecks: 1,
		checkEvery:  1000,
	}
}

// WithDriver sets the driver that the channel sends records through.
func (b Builder) WithDriver(drv driver.Driver) Builder {
	b.drv = drv
	return b
}

// WithDeviceID sets the id of the device the channel talks to.
func (b Builder) WithDeviceID(id uint32) Builder {
	b.devID = id
	return b
}

// WithTsID sets the id of the task scheduler.
func (b Builder) WithTsID(id uint32) Builder {
	b.tsID = id
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l zerolog.Logger) Builder {
	b.logger = l
	return b
}

// WithLogThrottle sets how many backpressure retries share one log line.
func (b Builder) WithLogThrottle(n uint32) Builder {
	b.logThrottle = n
	return b
}

// WithEagerChecks sets the number of leading retries that are each followed
// by a device liveness check.
func (b Builder) WithEagerChecks(n uint64) Builder {
	b.eagerChecks = n
	return b
}

// WithCheckEvery sets the liveness check interval once the eager checks are
// used up.
func (b Builder) WithCheckEvery(n uint64) Builder {
	b.checkEvery = n
	return b
}

// WithMaxAttempts bounds the number of sends per request. Zero, the default,
// retries backpressure as long as the device is alive.
func (b Builder) WithMaxAttempts(n uint64) Builder {
	b.maxAttempts = n
	return b
}

// WithBackoff sets the wait between retries. By default, retries are
// immediate.
func (b Builder) WithBackoff(f func(attempt uint64) time.Duration) Builder {
	b.backoff = f
	return b
}

// Build creates a channel with the given name.
func (b Builder) Build(name string) *Channel {
	if b.drv == nil {
		log.Panic("channel requires a driver")
	}

	if b.logThrottle == 0 {
		b.logThrottle = 1
	}

	logger := b.logger.With().Str("channel", name).Logger()

	return &Channel{
		name:        name,
		drv:         b.drv,
		devID:       b.devID,
		tsID:        b.tsID,
		logger:      logger,
		hotLogger:   logger.Sample(&zerolog.BasicSampler{N: b.logThrottle}),
		eagerChecks: b.eagerChecks,
		checkEvery:  b.checkEvery,
		maxAttempts: b.maxAttempts,
		backoff:     b.backoff,
	}
}
