package host

import (
	"slices"
	"sync"
)

// Emitter fans a value out to every subscribed handler. The zero value is
// ready to use.
type Emitter[T any] struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]func(T)
}

// Subscribe registers fn and returns a handle that removes it.
func (e *Emitter[T]) Subscribe(fn func(T)) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[uint64]func(T))
	}
	id := e.next
	e.next++
	e.handlers[id] = fn

	return NewSubscription(func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	})
}

// Emit calls every handler registered at the time of the call, in
// registration order. Handlers run on the caller's goroutine without the
// lock held, so they may subscribe or dispose.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	ids := make([]uint64, 0, len(e.handlers))
	for id := range e.handlers {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		e.mu.Lock()
		fn, ok := e.handlers[id]
		e.mu.Unlock()
		if ok {
			fn(v)
		}
	}
}

// Len returns the number of registered handlers.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}
