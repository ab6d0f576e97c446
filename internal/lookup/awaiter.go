package lookup

import (
	"context"
	"sync"

	"github.com/yegors/co-track/internal/transponder"
)

// Source is what an Awaiter needs from the lookup service
type Source interface {
	Enqueue(icaos ...transponder.Icao24)
	OnCompleted(fn func(*Batch)) func()
}

// Awaiter turns the background lookup service into a blocking call
type Awaiter struct {
	source      Source
	unsubscribe func()

	mu      sync.Mutex
	waiters map[*waiter]struct{}
}

type waiter struct {
	want map[transponder.Icao24]struct{}
	got  map[transponder.Icao24]Outcome
	done chan struct{}
}

// NewAwaiter subscribes to source. Close it to unsubscribe.
func NewAwaiter(source Source) *Awaiter {
	a := &Awaiter{
		source:  source,
		waiters: make(map[*waiter]struct{}),
	}
	a.unsubscribe = source.OnCompleted(a.onCompleted)
	return a
}

// Lookup queues icaos and waits until all of them have an outcome or ctx
// is done. It returns the outcomes available at that point in request
// order, which may be fewer than asked for.
func (a *Awaiter) Lookup(ctx context.Context, icaos []transponder.Icao24) []Outcome {
	w := &waiter{
		want: make(map[transponder.Icao24]struct{}, len(icaos)),
		got:  make(map[transponder.Icao24]Outcome, len(icaos)),
		done: make(chan struct{}),
	}
	for _, icao := range icaos {
		w.want[icao] = struct{}{}
	}
	if len(w.want) == 0 {
		return nil
	}

	a.mu.Lock()
	a.waiters[w] = struct{}{}
	a.mu.Unlock()

	a.source.Enqueue(icaos...)

	select {
	case <-w.done:
	case <-ctx.Done():
	}

	a.mu.Lock()
	delete(a.waiters, w)
	out := make([]Outcome, 0, len(w.got))
	seen := make(map[transponder.Icao24]struct{}, len(w.got))
	for _, icao := range icaos {
		if _, dup := seen[icao]; dup {
			continue
		}
		seen[icao] = struct{}{}
		if o, ok := w.got[icao]; ok {
			out = append(out, o)
		}
	}
	a.mu.Unlock()

	return out
}

// Close stops listening for completed batches
func (a *Awaiter) Close() {
	a.unsubscribe()
}

func (a *Awaiter) onCompleted(batch *Batch) {
	outcomes := batch.All()

	a.mu.Lock()
	defer a.mu.Unlock()

	for w := range a.waiters {
		for _, o := range outcomes {
			if _, ok := w.want[o.Icao24]; ok {
				w.got[o.Icao24] = o
			}
		}
		if len(w.got) == len(w.want) {
			close(w.done)
			delete(a.waiters, w)
		}
	}
}
