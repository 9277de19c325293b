/*
Package observable provides a small state holder with last-value-on-subscribe semantics.

A Value holds the current state, hands it to every new subscriber immediately, and then
notifies each subscriber of every later Set in the order the Sets happened.
*/
package observable

import "sync"

// Value is a concurrency-safe holder of a single value of type T.
//
// Listeners run synchronously on the goroutine calling Set (or Subscribe for the initial
// delivery) and must not call Set or Subscribe on the same Value.
type Value[T any] struct {
	mu      sync.RWMutex
	current T

	// notifyMu serializes Set and Subscribe so every listener observes one total order.
	notifyMu  sync.Mutex
	listeners []listener[T]
	nextID    uint64
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// NewValue returns a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{current: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set stores next and notifies every subscriber.
func (v *Value[T]) Set(next T) {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	v.current = next
	v.mu.Unlock()

	for _, l := range v.listeners {
		l.fn(next)
	}
}

// Subscribe delivers the current value to fn, then every subsequent one.
// The returned function removes the subscription; calling it more than once is harmless.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	id := v.nextID
	v.nextID++
	v.listeners = append(v.listeners, listener[T]{id: id, fn: fn})

	fn(v.Get())

	var once sync.Once
	return func() {
		once.Do(func() {
			v.notifyMu.Lock()
			for i, l := range v.listeners {
				if l.id == id {
					v.listeners = append(v.listeners[:i:i], v.listeners[i+1:]...)
					break
				}
			}
			v.notifyMu.Unlock()
		})
	}
}
