// Package bus generalizes orbo's internal/pipeline/event_bus.go EventBus
// into a generic publish/subscribe channel, since this repository needs
// three independent instances (Alert, FrameRiskSummary, []UnifiedObject)
// where the teacher needed exactly one (camera-keyed DetectionResult).
// Go 1.24 generics let the three instantiations share one implementation
// instead of being copy-pasted, which orbo's pre-generics codebase could
// not do.
package bus

import "sync"

// Bus is a synchronous, non-blocking publish/subscribe channel for values
// of type T.
type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[*subscription[T]]struct{}
}

type subscription[T any] struct {
	ch chan T
}

// New constructs an empty Bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subscribers: make(map[*subscription[T]]struct{})}
}

// Subscribe registers a new listener with the given buffer depth and
// returns its channel plus an unsubscribe function, mirroring
// event_bus.go's Subscribe contract.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	sub := &subscription[T]{ch: make(chan T, buffer)}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[sub]; ok {
			delete(b.subscribers, sub)
			close(sub.ch)
		}
	}
	return sub.ch, unsubscribe
}

// Publish delivers value to every current subscriber without blocking:
// a subscriber whose buffer is full simply misses the value, exactly as
// event_bus.go's Publish does with its select-default send.
func (b *Bus[T]) Publish(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		select {
		case sub.ch <- value:
		default:
		}
	}
}

// Close unsubscribes and closes every listener's channel.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, sub)
	}
}
