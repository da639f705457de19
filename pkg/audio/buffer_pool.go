package audio

import (
	"sync"
	"sync/atomic"
)

// PCMBuffer is a reusable chunk of interleaved PCM bytes
type PCMBuffer struct {
	Data []byte
	pool *PCMPool
}

// Release returns the buffer to its pool
func (b *PCMBuffer) Release() {
	if b.pool != nil {
		b.pool.Put(b)
	}
}

// PCMPool recycles fixed-size chunk buffers for the tone renderer
type PCMPool struct {
	size   int
	pool   sync.Pool
	hits   int64
	misses int64
}

// NewPCMPool creates a pool of chunkBytes-sized buffers
func NewPCMPool(chunkBytes int) *PCMPool {
	p := &PCMPool{size: chunkBytes}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.misses, 1)
		return &PCMBuffer{Data: make([]byte, chunkBytes), pool: p}
	}
	return p
}

// Get returns a zeroed buffer of the pool's chunk size
func (p *PCMPool) Get() *PCMBuffer {
	atomic.AddInt64(&p.hits, 1)
	b := p.pool.Get().(*PCMBuffer)
	b.Data = b.Data[:p.size]
	return b
}

// Put zeroes b and returns it to the pool. Buffers of another size are dropped.
func (p *PCMPool) Put(b *PCMBuffer) {
	if b == nil || cap(b.Data) != p.size {
		return
	}
	b.Data = b.Data[:p.size]
	for i := range b.Data {
		b.Data[i] = 0
	}
	p.pool.Put(b)
}

// Size returns the chunk size in bytes
func (p *PCMPool) Size() int {
	return p.size
}

// Statistics returns request and allocation counters
func (p *PCMPool) Statistics() map[string]int64 {
	return map[string]int64{
		"requests":    atomic.LoadInt64(&p.hits),
		"allocations": atomic.LoadInt64(&p.misses),
	}
}
