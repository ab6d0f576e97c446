package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect feeds every block through the chunker and returns the emitted
// chunks as strings.
func collect(t *testing.T, c *Chunker, blocks ...string) ([]string, *State) {
	t.Helper()

	var chunks []string
	var state *State
	for _, block := range blocks {
		state = c.ParseBlock([]byte(block), state, func(chunk []byte) {
			chunks = append(chunks, string(chunk))
		})
	}
	return chunks, state
}

func TestChunker_Lines(t *testing.T) {
	tests := []struct {
		name    string
		blocks  []string
		want    []string
		pending int
	}{
		{
			name:   "single line",
			blocks: []string{"MSG,1\n"},
			want:   []string{"MSG,1"},
		},
		{
			name:   "several lines in one block",
			blocks: []string{"A\nB\r\nC\n"},
			want:   []string{"A", "B", "C"},
		},
		{
			name:    "line split across blocks",
			blocks:  []string{"MSG,3,1", ",1,4CA1E3", ",1\nMSG"},
			want:    []string{"MSG,3,1,1,4CA1E3,1"},
			pending: 3,
		},
		{
			name:   "terminator arrives alone",
			blocks: []string{"ABC", "\r", "\nDEF\n"},
			want:   []string{"ABC", "DEF"},
		},
		{
			name:   "blank lines skipped",
			blocks: []string{"\r\n\r\n", "X\n\n\n"},
			want:   []string{"X"},
		},
		{
			name:    "no terminator yet",
			blocks:  []string{"partial"},
			want:    nil,
			pending: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewWithPool(LineSplitter{}, 64, NewBufferPool(1024))
			chunks, state := collect(t, c, tt.blocks...)
			defer state.Release()

			assert.Equal(t, tt.want, chunks)
			assert.Equal(t, tt.pending, state.Pending())
		})
	}
}

func TestChunker_ByteAtATime(t *testing.T) {
	input := "MSG,1,a\nMSG,2,bb\r\nMSG,3,ccc\n"
	c := NewWithPool(LineSplitter{}, 32, NewBufferPool(1024))

	var blocks []string
	for i := 0; i < len(input); i++ {
		blocks = append(blocks, input[i:i+1])
	}
	chunks, state := collect(t, c, blocks...)
	defer state.Release()

	assert.Equal(t, []string{"MSG,1,a", "MSG,2,bb", "MSG,3,ccc"}, chunks)
}

func TestChunker_BlockLargerThanBuffer(t *testing.T) {
	var sb strings.Builder
	var want []string
	for i := 0; i < 50; i++ {
		line := strings.Repeat("x", i%10+1)
		want = append(want, line)
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	c := NewWithPool(LineSplitter{}, 16, NewBufferPool(1024))
	chunks, state := collect(t, c, sb.String())
	defer state.Release()

	assert.Equal(t, want, chunks)
}

func TestChunker_OverflowDiscardsAndResyncs(t *testing.T) {
	c := NewWithPool(LineSplitter{}, 8, NewBufferPool(1024))
	discarded := 0
	c.OnDiscard = func(n int) { discarded += n }

	chunks, state := collect(t, c, "0123456789ABCDEF", "GH\nOK\n")
	defer state.Release()

	assert.Equal(t, 16, discarded)
	assert.Equal(t, []string{"GH", "OK"}, chunks, "tail of the dropped line comes through as its own chunk")
}

func TestChunker_OverflowNeverPanicsOnGarbage(t *testing.T) {
	c := NewWithPool(JSONObjectSplitter{}, 8, NewBufferPool(1024))
	discarded := 0
	c.OnDiscard = func(n int) { discarded += n }

	chunks, state := collect(t, c, "garbage without braces", `{"a":"this is far too long"}`, `{"b":1}`)
	defer state.Release()

	assert.Equal(t, []string{`{"b":1}`}, chunks)
	assert.Greater(t, discarded, 0)
}

func TestChunker_JSONObjectSplitAcrossThreeCalls(t *testing.T) {
	c := NewWithPool(JSONObjectSplitter{}, 256, NewBufferPool(1024))

	chunks, state := collect(t, c, `{"a":1`, `,"b":"x}y"`, `}`)
	defer state.Release()

	require.Len(t, chunks, 1)
	assert.Equal(t, `{"a":1,"b":"x}y"}`, chunks[0])
	assert.Equal(t, 0, state.Pending())
}

func TestChunker_JSONObjects(t *testing.T) {
	tests := []struct {
		name   string
		blocks []string
		want   []string
	}{
		{
			name:   "nested objects",
			blocks: []string{`{"a":{"b":{}}}`},
			want:   []string{`{"a":{"b":{}}}`},
		},
		{
			name:   "escaped quote inside string",
			blocks: []string{`{"a":"he said \"}\""}`},
			want:   []string{`{"a":"he said \"}\""}`},
		},
		{
			name:   "escape split across blocks",
			blocks: []string{`{"a":"\`, `"}"}`},
			want:   []string{`{"a":"\"}"}`},
		},
		{
			name:   "garbage between objects",
			blocks: []string{`xx{"a":1}, yy {"b":2}`},
			want:   []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:   "array wrapper is ignored",
			blocks: []string{`[{"a":1},`, `{"b":2}]`},
			want:   []string{`{"a":1}`, `{"b":2}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewWithPool(JSONObjectSplitter{}, 128, NewBufferPool(1024))
			chunks, state := collect(t, c, tt.blocks...)
			defer state.Release()
			assert.Equal(t, tt.want, chunks)
		})
	}
}

func TestChunker_DoesNotReemitChunks(t *testing.T) {
	c := NewWithPool(LineSplitter{}, 64, NewBufferPool(1024))

	var chunks []string
	var state *State
	for _, block := range []string{"A\nB", "\nC", "\n"} {
		state = c.ParseBlock([]byte(block), state, func(chunk []byte) {
			chunks = append(chunks, string(chunk))
		})
	}
	defer state.Release()

	assert.Equal(t, []string{"A", "B", "C"}, chunks)
}

func TestState_Release(t *testing.T) {
	pool := NewBufferPool(1024)
	c := NewWithPool(LineSplitter{}, 32, pool)

	state := c.ParseBlock([]byte("half a line"), nil, func([]byte) {})
	require.Equal(t, 11, state.Pending())

	state.Release()
	assert.Equal(t, 0, state.Pending())
	assert.NotPanics(t, state.Release)

	// A released state is replaced transparently on the next call.
	var got []string
	state = c.ParseBlock([]byte("fresh\n"), state, func(chunk []byte) { got = append(got, string(chunk)) })
	defer state.Release()
	assert.Equal(t, []string{"fresh"}, got)
}

func TestBufferPool(t *testing.T) {
	pool := NewBufferPool(64)

	buf := pool.Rent(32)
	assert.Len(t, buf, 32)
	pool.Return(buf)

	again := pool.Rent(32)
	assert.Len(t, again, 32)

	big := pool.Rent(128)
	assert.Len(t, big, 128)
	assert.NotPanics(t, func() { pool.Return(big) })
}
