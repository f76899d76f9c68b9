// Package pool holds the rotation state over configured transport endpoints
// and selects the endpoint a new session is opened against.
package pool

import (
	"errors"
	"sync"
)

// ErrNoEndpoints is the configuration error returned when a selection is made
// from a pool without endpoints.
var ErrNoEndpoints = errors.New("no transport endpoints configured")

// Pool is an ordered set of endpoints with a round-robin cursor. Sessions
// select on the dispatcher; the mutex covers callers off the loop such as
// the endpoints command.
type Pool[T any] struct {
	mu        sync.Mutex
	endpoints []T
	next      int
}

// New creates a pool over the given endpoints. The cursor starts at the first
// endpoint.
func New[T any](endpoints ...T) *Pool[T] {
	return &Pool[T]{endpoints: append([]T(nil), endpoints...)}
}

// Select returns the endpoint at the cursor and advances the cursor, wrapping
// to the first endpoint after the last.
func (p *Pool[T]) Select() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	if len(p.endpoints) == 0 {
		return zero, ErrNoEndpoints
	}

	// A pool shrunk by Reset could leave the cursor out of range.
	if p.next >= len(p.endpoints) {
		p.next = 0
	}

	ep := p.endpoints[p.next]
	p.next++
	if p.next >= len(p.endpoints) {
		p.next = 0
	}

	return ep, nil
}

// Peek returns the endpoint the next Select will return without advancing.
func (p *Pool[T]) Peek() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	if len(p.endpoints) == 0 {
		return zero, ErrNoEndpoints
	}
	if p.next >= len(p.endpoints) {
		return p.endpoints[0], nil
	}
	return p.endpoints[p.next], nil
}

// Len returns the number of endpoints in the pool.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Endpoints returns the endpoints in rotation order starting at the cursor.
func (p *Pool[T]) Endpoints() []T {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.endpoints)
	out := make([]T, 0, n)
	start := p.next
	if start >= n {
		start = 0
	}
	for i := range n {
		out = append(out, p.endpoints[(start+i)%n])
	}
	return out
}

// Reset replaces the endpoint set and rewinds the cursor.
func (p *Pool[T]) Reset(endpoints ...T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints = append([]T(nil), endpoints...)
	p.next = 0
}
