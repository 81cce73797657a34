// Package config loads the tunables of the runtime from .env files and the
// process environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Environment keys.
const (
	KeyRingDepth        = "DAVIDRT_RING_DEPTH"
	KeyPublicQueueDepth = "DAVIDRT_PUBLIC_QUEUE_DEPTH"
	KeyMaxSqePerTask    = "DAVIDRT_MAX_SQE_PER_TASK"
	KeyCaptureReserved  = "DAVIDRT_CAPTURE_RESERVED"
	KeyCheckEvery       = "DAVIDRT_SEND_CHECK_EVERY"
	KeyEagerChecks      = "DAVIDRT_SEND_EAGER_CHECKS"
	KeyLogThrottle      = "DAVIDRT_LOG_THROTTLE"
	KeyLogLevel         = "DAVIDRT_LOG_LEVEL"
	KeySyncPoll         = "DAVIDRT_SYNC_POLL"
	KeyDFXDumps         = "DAVIDRT_DFX_DUMPS"
	KeyDFXWindow        = "DAVIDRT_DFX_WINDOW"
	KeyRecycleEvery     = "DAVIDRT_RECYCLE_EVERY"
	KeySeparateRecycle  = "DAVIDRT_SEPARATE_RECYCLE"
	KeyRecordDB         = "DAVIDRT_RECORD_DB"
	KeyMonitorPort      = "DAVIDRT_MONITOR_PORT"
)

// ErrBadValue is returned when a key holds a value that cannot be parsed.
var ErrBadValue = errors.Define("config: bad value")

// Config holds the tunables of a runtime.
type Config struct {
	RingDepth        uint16
	PublicQueueDepth uint16
	MaxSqePerTask    uint16
	CaptureReserved  uint16
	CheckEvery       uint64
	EagerChecks      uint64
	LogThrottle      uint32
	LogLevel         zerolog.Level
	SyncPoll         time.Duration
	DFXDumps         int
	DFXWindow        time.Duration
	RecycleEvery     uint64
	SeparateRecycle  bool
	RecordDB         string
	MonitorPort      int
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		RingDepth:        4096,
		PublicQueueDepth: 1024,
		MaxSqePerTask:    32,
		CaptureReserved:  32,
		CheckEvery:       1000,
		EagerChecks:      1,
		LogThrottle:      100000,
		LogLevel:         zerolog.InfoLevel,
		SyncPoll:         20 * time.Microsecond,
		DFXDumps:         3,
		DFXWindow:        10 * time.Second,
		RecycleEvery:     64,
	}
}

// Load starts from the defaults, applies the .env files that exist among
// paths, and then the process environment. The environment wins over the
// files and later files win over earlier ones.
func Load(paths ...string) (Config, error) {
	values := make(map[string]string)

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}

		fileValues, err := godotenv.Read(p)
		if err != nil {
			return Config{}, errors.From(
				ErrBadValue,
				errors.WithMeta("file", p),
				errors.WithWrap(err),
			)
		}

		for k, v := range fileValues {
			values[k] = v
		}
	}

	for _, k := range keys() {
		if v, ok := os.LookupEnv(k); ok {
			values[k] = v
		}
	}

	return FromMap(values)
}

// FromMap builds a configuration from key value pairs on top of the
// defaults.
func FromMap(values map[string]string) (Config, error) {
	c := Default()
	p := parser{values: values}

	p.parseUint16(KeyRingDepth, &c.RingDepth)
	p.parseUint16(KeyPublicQueueDepth, &c.PublicQueueDepth)
	p.parseUint16(KeyMaxSqePerTask, &c.MaxSqePerTask)
	p.parseUint16(KeyCaptureReserved, &c.CaptureReserved)
	p.parseUint64(KeyCheckEvery, &c.CheckEvery)
	p.parseUint64(KeyEagerChecks, &c.EagerChecks)
	p.parseUint32(KeyLogThrottle, &c.LogThrottle)
	p.parseLevel(KeyLogLevel, &c.LogLevel)
	p.parseDuration(KeySyncPoll, &c.SyncPoll)
	p.parseInt(KeyDFXDumps, &c.DFXDumps)
	p.parseDuration(KeyDFXWindow, &c.DFXWindow)
	p.parseUint64(KeyRecycleEvery, &c.RecycleEvery)
	p.parseBool(KeySeparateRecycle, &c.SeparateRecycle)
	p.parseString(KeyRecordDB, &c.RecordDB)
	p.parseInt(KeyMonitorPort, &c.MonitorPort)

	if p.err != nil {
		return Config{}, p.err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks that the values can work together.
func (c Config) Validate() error {
	switch {
	case c.RingDepth < 2:
		return badValue(KeyRingDepth, "ring needs at least 2 slots")
	case c.PublicQueueDepth < 2:
		return badValue(KeyPublicQueueDepth, "queue needs at least 2 slots")
	case c.MaxSqePerTask == 0 || c.MaxSqePerTask >= c.RingDepth:
		return badValue(KeyMaxSqePerTask, "must be in [1, ring depth)")
	case c.CaptureReserved >= c.RingDepth:
		return badValue(KeyCaptureReserved, "must be below ring depth")
	case c.RecycleEvery == 0:
		return badValue(KeyRecycleEvery, "must be positive")
	}

	return nil
}

func keys() []string {
	return []string{
		KeyRingDepth, KeyPublicQueueDepth, KeyMaxSqePerTask,
		KeyCaptureReserved, KeyCheckEvery, KeyEagerChecks, KeyLogThrottle,
		KeyLogLevel, KeySyncPoll, KeyDFXDumps, KeyDFXWindow,
		KeyRecycleEvery, KeySeparateRecycle, KeyRecordDB, KeyMonitorPort,
	}
}

func badValue(key, reason string) error {
	return errors.From(
		ErrBadValue,
		errors.WithMeta("key", key),
		errors.WithMeta("reason", reason),
	)
}

type parser struct {
	values map[string]string
	err    error
}

func (p *parser) lookup(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}

	v, ok := p.values[key]

	return v, ok && v != ""
}

func (p *parser) fail(key string, err error) {
	p.err = errors.From(
		ErrBadValue,
		errors.WithMeta("key", key),
		errors.WithWrap(err),
	)
}

func (p *parser) parseUint(key string, bits int) (uint64, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return 0, false
	}

	n, err := strconv.ParseUint(v, 10, bits)
	if err != nil {
		p.fail(key, err)
		return 0, false
	}

	return n, true
}

func (p *parser) parseUint16(key string, dst *uint16) {
	if n, ok := p.parseUint(key, 16); ok {
		*dst = uint16(n)
	}
}

func (p *parser) parseUint32(key string, dst *uint32) {
	if n, ok := p.parseUint(key, 32); ok {
		*dst = uint32(n)
	}
}

func (p *parser) parseUint64(key string, dst *uint64) {
	if n, ok := p.parseUint(key, 64); ok {
		*dst = n
	}
}

func (p *parser) parseInt(key string, dst *int) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return
	}

	*dst = n
}

func (p *parser) parseBool(key string, dst *bool) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return
	}

	*dst = b
}

func (p *parser) parseDuration(key string, dst *time.Duration) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return
	}

	*dst = d
}

func (p *parser) parseLevel(key string, dst *zerolog.Level) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}

	l, err := zerolog.ParseLevel(v)
	if err != nil {
		p.fail(key, err)
		return
	}

	*dst = l
}

func (p *parser) parseString(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}
