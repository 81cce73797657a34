// Package core holds the runtime context that every engine entry point
// receives. A runtime owns the logger, the task sequence number generator
// and the devices. Independent runtimes can coexist in one process.
package core

import (
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/config"
	"github.com/sarchlab/davidrt/driver"
	"github.com/sarchlab/davidrt/idgen"
	"github.com/sarchlab/davidrt/rterr"
	"github.com/sarchlab/davidrt/transport"
)

const pkgName = "core"

// Builder can build runtimes.
type Builder struct {
	cfg       config.Config
	logWriter io.Writer
	logger    *zerolog.Logger
}

// MakeBuilder creates a new Builder with the default configuration, logging
// to stderr.
func MakeBuilder() Builder {
	return Builder{
		cfg:       config.Default(),
		logWriter: os.Stderr,
	}
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithLogWriter sets where the runtime logs to.
func (b Builder) WithLogWriter(w io.Writer) Builder {
	b.logWriter = w
	return b
}

// WithLogger sets the logger directly, overriding the log writer.
func (b Builder) WithLogger(l zerolog.Logger) Builder {
	b.logger = &l
	return b
}

// Build creates a runtime with the given name.
func (b Builder) Build(name string) *Runtime {
	if err := b.cfg.Validate(); err != nil {
		log.Panic(err)
	}

	var logger zerolog.Logger
	if b.logger != nil {
		logger = *b.logger
	} else {
		logger = zerolog.New(b.logWriter).With().Timestamp().Logger()
	}

	logger = logger.Level(b.cfg.LogLevel).With().Str("runtime", name).Logger()

	r := &Runtime{
		name:    name,
		session: idgen.SessionID(),
		cfg:     b.cfg,
		logger:  logger,
		sn:      &idgen.SnGenerator{},
		devices: make(map[uint32]*Device),
	}

	if b.cfg.DFXDumps > 0 && b.cfg.DFXWindow > 0 {
		r.dfx = catrate.NewLimiter(map[time.Duration]int{
			b.cfg.DFXWindow: b.cfg.DFXDumps,
		})
	}

	return r
}

// Runtime is the explicit context of the engine.
type Runtime struct {
	name    string
	session string
	cfg     config.Config
	logger  zerolog.Logger
	sn      *idgen.SnGenerator
	dfx     *catrate.Limiter

	lock     sync.Mutex
	devices  map[uint32]*Device
	closers  []func() error
	isClosed bool
}

// Name returns the name of the runtime.
func (r *Runtime) Name() string {
	return r.name
}

// Session returns an id unique to this runtime instance.
func (r *Runtime) Session() string {
	return r.session
}

// Config returns the configuration of the runtime.
func (r *Runtime) Config() config.Config {
	return r.cfg
}

// Logger returns the logger of the runtime.
func (r *Runtime) Logger() zerolog.Logger {
	return r.logger
}

// NextTaskSn returns a task sequence number that is never reused by the
// runtime.
func (r *Runtime) NextTaskSn() uint64 {
	return r.sn.Next()
}

// LastTaskSn returns the most recently issued task sequence number.
func (r *Runtime) LastTaskSn() uint64 {
	return r.sn.Last()
}

// AllowDump tells if a diagnostic dump for the given category may be logged
// now.
func (r *Runtime) AllowDump(category any) bool {
	if r.dfx == nil {
		return false
	}

	_, ok := r.dfx.Allow(category)

	return ok
}

// AddDevice registers a device driven by drv.
func (r *Runtime) AddDevice(drv driver.Driver, devID, tsID uint32) (*Device, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.isClosed {
		return nil, rterr.New(rterr.ErrContextAbort, pkgName, "add device", nil)
	}

	if _, exists := r.devices[devID]; exists {
		return nil, rterr.New(rterr.ErrInvalidValue, pkgName, "add device", nil)
	}

	ch := transport.MakeBuilder().
		WithDriver(drv).
		WithDeviceID(devID).
		WithTsID(tsID).
		WithLogger(r.logger).
		WithLogThrottle(r.cfg.LogThrottle).
		WithEagerChecks(r.cfg.EagerChecks).
		WithCheckEvery(r.cfg.CheckEvery).
		Build("Channel")

	d := &Device{
		id:      devID,
		tsID:    tsID,
		drv:     drv,
		channel: ch,
	}
	r.devices[devID] = d

	r.logger.Info().Uint32("device", devID).Uint32("ts", tsID).Msg("device added")

	return d, nil
}

// Device returns a registered device.
func (r *Runtime) Device(devID uint32) (*Device, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	d, ok := r.devices[devID]

	return d, ok
}

// Devices returns all registered devices.
func (r *Runtime) Devices() []*Device {
	r.lock.Lock()
	defer r.lock.Unlock()

	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}

	return out
}

// OnClose registers a teardown step. Steps run in reverse registration
// order when the runtime closes.
func (r *Runtime) OnClose(f func() error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.closers = append(r.closers, f)
}

// IsClosed tells if Close has been called.
func (r *Runtime) IsClosed() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.isClosed
}

// Close runs the teardown steps and forgets all devices. It returns the first
// error reported by a step. Closing twice does nothing.
func (r *Runtime) Close() error {
	r.lock.Lock()
	if r.isClosed {
		r.lock.Unlock()
		return nil
	}

	r.isClosed = true
	closers := r.closers
	r.closers = nil
	r.lock.Unlock()

	var firstErr error

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	r.lock.Lock()
	r.devices = make(map[uint32]*Device)
	r.lock.Unlock()

	r.logger.Info().Uint64("last_task_sn", r.sn.Last()).Msg("runtime closed")

	return firstErr
}
