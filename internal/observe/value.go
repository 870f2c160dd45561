// Package observe holds the observable state the presentation layer renders.
package observe

import "sync"

// Value is a variable whose changes can be watched.
// Watchers only ever see the latest value; intermediate ones may be skipped.
type Value[T any] struct {
	mu   sync.Mutex
	v    T
	subs map[chan T]struct{}
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		v:    initial,
		subs: make(map[chan T]struct{}),
	}
}

func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.v
}

func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.v = x
	for ch := range v.subs {
		replace(ch, x)
	}
}

// Subscribe returns a channel that receives the current value right away and
// every later one. Call cancel to release it; the channel is then closed.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	v.mu.Lock()
	v.subs[ch] = struct{}{}
	ch <- v.v
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, ch)
			close(ch)
			v.mu.Unlock()
		})
	}
}

// replace drops an unread value before sending x. Callers hold the lock.
func replace[T any](ch chan T, x T) {
	select {
	case <-ch:
	default:
	}
	ch <- x
}
