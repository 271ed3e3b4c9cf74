package viewer

import (
	"io"
	"sync"
)

// Disposer releases something acquired earlier. Calling it more than once
// must be safe.
type Disposer func()

// Scope collects disposers for everything a view acquires while mounted
// and releases them, newest first, when the view is torn down.
type Scope struct {
	mu        sync.Mutex
	disposers []Disposer
	closed    bool
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Add registers d. If the scope is already closed d runs immediately.
func (s *Scope) Add(d Disposer) {
	if d == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		d()
		return
	}
	s.disposers = append(s.disposers, d)
	s.mu.Unlock()
}

// AddCloser registers c.Close, ignoring its error.
func (s *Scope) AddCloser(c io.Closer) {
	s.Add(func() { _ = c.Close() })
}

// Close runs every registered disposer in reverse order. Only the first
// call does anything.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	disposers := s.disposers
	s.disposers = nil
	s.mu.Unlock()

	for i := len(disposers) - 1; i >= 0; i-- {
		disposers[i]()
	}
}

// observers is a small subscriber list shared by the loader, the stream
// subscription and the theme context.
type observers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (o *observers[T]) add(fn func(T)) Disposer {
	o.mu.Lock()
	if o.fns == nil {
		o.fns = make(map[int]func(T))
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.fns, id)
			o.mu.Unlock()
		})
	}
}

// notify calls every observer outside the lock so that observers may
// subscribe or dispose from inside the callback.
func (o *observers[T]) notify(v T) {
	o.mu.Lock()
	fns := make([]func(T), 0, len(o.fns))
	for _, fn := range o.fns {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
