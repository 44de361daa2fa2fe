// Package common holds small helpers shared by the link implementations.
package common

import "github.com/colega/zeropool"

// BufferPool hands out byte slices of a fixed capacity for datagram reads.
type BufferPool struct {
	size int
	pool zeropool.Pool[[]byte]
}

// NewBufferPool creates a pool whose buffers have capacity size.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = 1
	}
	return &BufferPool{
		size: size,
		pool: zeropool.New(func() []byte { return make([]byte, size) }),
	}
}

// Size returns the capacity of pooled buffers.
func (p *BufferPool) Size() int {
	return p.size
}

// Get returns a buffer of length Size.
func (p *BufferPool) Get() []byte {
	return p.pool.Get()[:p.size]
}

// GetSize returns a buffer of length n. Requests larger than Size are
// allocated directly and never enter the pool.
func (p *BufferPool) GetSize(n int) []byte {
	if n > p.size {
		return make([]byte, n)
	}
	return p.Get()[:n]
}

// Put returns buf to the pool. Foreign buffers with a different capacity are dropped.
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	p.pool.Put(buf[:p.size])
}
