// Package idgen generates identifiers: process-lifetime task sequence numbers
// and string ids for sessions, events and recordings.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator can generate IDs.
type Generator interface {
	// Generate an ID.
	Generate() string
}

// NewSequential creates a Generator that produces "1", "2", ... in order.
func NewSequential() Generator {
	return &sequentialGenerator{}
}

// NewParallel creates a Generator whose IDs are globally unique but not
// deterministic.
func NewParallel() Generator {
	return parallelGenerator{}
}

type sequentialGenerator struct {
	next atomic.Uint64
}

func (g *sequentialGenerator) Generate() string {
	return strconv.FormatUint(g.next.Add(1), 10)
}

type parallelGenerator struct{}

func (parallelGenerator) Generate() string {
	return xid.New().String()
}

// SessionID returns a fresh globally unique id.
func SessionID() string {
	return xid.New().String()
}

// SnGenerator hands out task sequence numbers. Numbers start from 1, are
// strictly increasing and are never reused by the same generator.
type SnGenerator struct {
	last atomic.Uint64
}

// Next returns the next sequence number.
func (g *SnGenerator) Next() uint64 {
	return g.last.Add(1)
}

// Last returns the most recently issued sequence number, or 0.
func (g *SnGenerator) Last() uint64 {
	return g.last.Load()
}
