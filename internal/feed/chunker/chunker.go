// Package chunker extracts discrete protocol messages ("chunks") from a byte
// stream that arrives in arbitrarily sized blocks.
package chunker

// Splitter knows where chunks of one protocol start and end.
//
// FindStartAndEnd is given the accumulated window and the offset at which
// bytes not seen by the previous call begin. It returns the inclusive start
// and end offsets of the first complete chunk in the window. When a start
// marker exists but the chunk is not complete yet it returns (start, -1), and
// when there is no start marker at all it returns (-1, -1). Bytes before the
// returned start are treated as garbage.
type Splitter interface {
	FindStartAndEnd(window []byte, newDataOffset int) (start, end int)
}

// Chunker accumulates blocks belonging to one logical connection and hands
// out every complete chunk found by its Splitter.
//
// A chunk may be at most MaxChunkSize-1 bytes long plus its terminator. When
// the buffer fills up without a complete chunk the whole buffer is dropped
// and extraction resyncs on the next bytes. That never fails the connection,
// it is only reported through OnDiscard.
type Chunker struct {
	splitter     Splitter
	maxChunkSize int
	pool         *BufferPool

	// OnDiscard, when set, is told how many bytes were thrown away
	OnDiscard func(n int)
}

// New creates a chunker that rents its buffers from the shared pool
func New(splitter Splitter, maxChunkSize int) *Chunker {
	return NewWithPool(splitter, maxChunkSize, Shared)
}

// NewWithPool creates a chunker backed by a specific pool
func NewWithPool(splitter Splitter, maxChunkSize int, pool *BufferPool) *Chunker {
	if maxChunkSize < 2 {
		maxChunkSize = 2
	}
	return &Chunker{
		splitter:     splitter,
		maxChunkSize: maxChunkSize,
		pool:         pool,
	}
}

// MaxChunkSize returns the size of the per-connection buffer
func (c *Chunker) MaxChunkSize() int {
	return c.maxChunkSize
}

// State carries a partial chunk from one ParseBlock call to the next. It owns
// a rented buffer until Release is called.
type State struct {
	buf    []byte
	length int
	pool   *BufferPool
}

// Pending returns how many unconsumed bytes are being held
func (s *State) Pending() int {
	if s == nil {
		return 0
	}
	return s.length
}

// Release returns the buffer to its pool. The state must not be used again.
func (s *State) Release() {
	if s == nil || s.buf == nil {
		return
	}
	s.pool.Return(s.buf)
	s.buf = nil
	s.length = 0
}

// ParseBlock appends block to the connection's buffer and calls emit for
// every complete chunk, in order. Pass nil state on the first call and the
// returned state on every following call for the same connection.
//
// The slice given to emit is a view into the scratch buffer and is only valid
// until emit returns.
func (c *Chunker) ParseBlock(block []byte, state *State, emit func(chunk []byte)) *State {
	if state == nil || state.buf == nil {
		state = &State{
			buf:  c.pool.Rent(c.maxChunkSize),
			pool: c.pool,
		}
	}

	for len(block) > 0 {
		n := copy(state.buf[state.length:], block)
		block = block[n:]

		newDataOffset := state.length
		state.length += n
		c.extract(state, newDataOffset, emit)
	}

	return state
}

func (c *Chunker) extract(state *State, newDataOffset int, emit func(chunk []byte)) {
	consumed := 0
	for consumed < state.length {
		window := state.buf[consumed:state.length]
		scanFrom := newDataOffset - consumed
		if scanFrom < 0 {
			scanFrom = 0
		}

		start, end := c.splitter.FindStartAndEnd(window, scanFrom)
		if start < 0 {
			consumed = state.length
			break
		}
		if end < 0 {
			consumed += start
			break
		}

		emit(window[start : end+1])
		consumed += end + 1
	}

	remaining := state.length - consumed
	if consumed > 0 && remaining > 0 {
		copy(state.buf, state.buf[consumed:state.length])
	}
	state.length = remaining

	if state.length >= len(state.buf) {
		discarded := state.length
		state.length = 0
		if c.OnDiscard != nil {
			c.OnDiscard(discarded)
		}
	}
}
