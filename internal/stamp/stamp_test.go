package stamp

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_FollowsClock(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seq := NewSequencerWithClock(func() time.Time { return now })

	assert.Equal(t, now.UnixNano(), seq.Next())

	now = now.Add(time.Second)
	assert.Equal(t, now.UnixNano(), seq.Next())
	assert.Equal(t, now.UnixNano(), seq.Last())
}

func TestSequencer_NeverGoesBackwards(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seq := NewSequencerWithClock(func() time.Time { return now })

	first := seq.Next()
	second := seq.Next()
	now = now.Add(-time.Hour)
	third := seq.Next()

	assert.Equal(t, first+1, second)
	assert.Equal(t, second+1, third)
}

func TestSequencer_ConcurrentCallersGetUniqueStamps(t *testing.T) {
	seq := NewSequencer()

	const workers = 8
	const perWorker = 500

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			prev := int64(0)
			for j := 0; j < perWorker; j++ {
				s := seq.Next()
				if s <= prev {
					t.Errorf("stamp went backwards: %d after %d", s, prev)
				}
				prev = s
				local = append(local, s)
			}
			mu.Lock()
			for _, s := range local {
				seen[s] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}
