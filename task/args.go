package task

import (
	"sync"
	"sync/atomic"
)

// ArgPool hands out fixed-size argument buffers that stay owned by one task
// until it is recycled.
type ArgPool struct {
	size  int
	pool  sync.Pool
	inUse atomic.Int64
}

// NewArgPool creates a pool of buffers of the given size.
func NewArgPool(size int) *ArgPool {
	p := &ArgPool{size: size}
	p.pool.New = func() any {
		return make([]byte, size)
	}

	return p
}

// Get takes a buffer from the pool.
func (p *ArgPool) Get() *ArgBuffer {
	p.inUse.Add(1)

	return &ArgBuffer{pool: p, Data: p.pool.Get().([]byte)}
}

// InUse returns the number of buffers not yet released.
func (p *ArgPool) InUse() int64 {
	return p.inUse.Load()
}

// ArgBuffer is a buffer taken from an ArgPool.
type ArgBuffer struct {
	pool     *ArgPool
	Data     []byte
	released atomic.Bool
}

// Release returns the buffer to its pool. Releasing twice has no effect.
func (b *ArgBuffer) Release() {
	if !b.released.CompareAndSwap(false, true) {
		return
	}

	clear(b.Data)
	b.pool.pool.Put(b.Data) //nolint:staticcheck
	b.Data = nil
	b.pool.inUse.Add(-1)
}
