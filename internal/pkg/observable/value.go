// Package observable provides a last-write-wins value that notifies subscribers.
package observable

import "sync"

// Value holds a single mutable value. Set replaces it and notifies every
// subscriber; there is no history. Subscribers are called on their own
// goroutine, one call at a time, and only ever see the newest value: if a
// subscriber is still busy when several writes land, the intermediate values
// are skipped.
type Value[T any] struct {
	mu     sync.RWMutex
	val    T
	set    bool
	nextID int
	subs   map[int]*subscriber[T]
}

// New returns an empty Value.
func New[T any]() *Value[T] {
	return &Value[T]{subs: make(map[int]*subscriber[T])}
}

// Set stores v and schedules delivery to all subscribers. It never blocks on
// a subscriber. Offers happen under the write lock so concurrent writers
// reach every mailbox in the same order they reach val.
func (o *Value[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.val = v
	o.set = true
	for _, s := range o.subs {
		s.offer(v)
	}
}

// Get returns the current value and whether one has ever been set.
func (o *Value[T]) Get() (T, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.val, o.set
}

// Subscribe registers fn for future changes. Values set before the call are
// not replayed. The returned cancel func stops delivery and waits for an
// in-progress call to fn to return.
func (o *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	s := &subscriber[T]{
		fn:     fn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}

	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = s
	o.mu.Unlock()

	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
			close(s.done)
			<-s.exited
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (o *Value[T]) Subscribers() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}

type subscriber[T any] struct {
	fn func(T)

	mu      sync.Mutex
	pending T
	has     bool

	notify chan struct{}
	done   chan struct{}
	exited chan struct{}
}

// offer replaces the mailbox content with v.
func (s *subscriber[T]) offer(v T) {
	s.mu.Lock()
	s.pending = v
	s.has = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) run() {
	defer close(s.exited)
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		s.mu.Lock()
		v, ok := s.pending, s.has
		var zero T
		s.pending, s.has = zero, false
		s.mu.Unlock()

		if ok {
			s.fn(v)
		}
	}
}
