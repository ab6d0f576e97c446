package chunker

import "sync"

// DefaultMaxPooledSize is the largest buffer the shared pool keeps hold of
const DefaultMaxPooledSize = 1 << 20

// BufferPool hands out fixed-size scratch buffers. Buffers are grouped by
// size so chunkers with different limits can share one pool. Requests above
// the pool's cap are allocated directly and dropped on return.
type BufferPool struct {
	maxSize int

	mu    sync.Mutex
	sizes map[int]*sync.Pool
}

// Shared is the process-wide pool used by every chunker unless told otherwise
var Shared = NewBufferPool(DefaultMaxPooledSize)

// NewBufferPool creates a pool that keeps buffers up to maxSize bytes
func NewBufferPool(maxSize int) *BufferPool {
	return &BufferPool{
		maxSize: maxSize,
		sizes:   make(map[int]*sync.Pool),
	}
}

// Rent returns a buffer with len and cap equal to size. The content is not
// cleared.
func (p *BufferPool) Rent(size int) []byte {
	if size > p.maxSize {
		return make([]byte, size)
	}
	buf := p.poolFor(size).Get().(*[]byte)
	return (*buf)[:size]
}

// Return hands a rented buffer back. The caller must not touch it afterwards.
func (p *BufferPool) Return(buf []byte) {
	size := cap(buf)
	if size == 0 || size > p.maxSize {
		return
	}
	buf = buf[:size]
	p.poolFor(size).Put(&buf)
}

func (p *BufferPool) poolFor(size int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()

	pool, ok := p.sizes[size]
	if !ok {
		pool = &sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		}
		p.sizes[size] = pool
	}
	return pool
}
