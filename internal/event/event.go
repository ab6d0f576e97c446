// Package event provides a small multi-subscriber callback list.
//
// Handlers are invoked synchronously, in subscription order, on the goroutine
// that calls Publish. A handler must not block for long because it holds up
// the publisher. Every Subscribe returns an unsubscribe func that owners call
// when they are disposed, and Clear drops everything at once.
package event

import (
	"sort"
	"sync"
)

// Handler receives published values
type Handler[T any] func(T)

// Feed fans a value out to every current subscriber
type Feed[T any] struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler[T]
	nextID   uint64
}

// Subscribe registers fn and returns a func that removes it again. Calling the
// returned func more than once is harmless.
func (f *Feed[T]) Subscribe(fn Handler[T]) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handlers == nil {
		f.handlers = make(map[uint64]Handler[T])
	}
	f.nextID++
	id := f.nextID
	f.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.handlers, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers v to all subscribers and returns how many received it
func (f *Feed[T]) Publish(v T) int {
	handlers := f.snapshot()
	for _, h := range handlers {
		h(v)
	}
	return len(handlers)
}

// Len returns the number of subscribers
func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.handlers)
}

// Clear removes every subscriber
func (f *Feed[T]) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = nil
}

// snapshot copies the handlers in subscription order so Publish never holds
// the lock while user code runs.
func (f *Feed[T]) snapshot() []Handler[T] {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.handlers) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(f.handlers))
	for id := range f.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Handler[T], len(ids))
	for i, id := range ids {
		out[i] = f.handlers[id]
	}
	return out
}
