// Package eventloop provides the single dispatcher that every session
// callback, transport event and timer expiry runs on.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/hay-kot/parley/internal/core/clock"
)

// ErrStopped is returned when work is submitted to a loop that has stopped.
var ErrStopped = errors.New("event loop stopped")

// Loop runs posted functions one at a time, in the order they were posted.
// It also implements clock.Clock, delivering timer expiries as posted work.
type Loop struct {
	log zerolog.Logger

	mu      sync.Mutex
	q       *queue.Queue
	wake    chan struct{}
	stopped bool
}

var _ clock.Clock = (*Loop)(nil)

// New creates a loop. Nothing runs until Run is called.
func New(log zerolog.Logger) *Loop {
	return &Loop{
		log:  log.With().Str("component", "eventloop").Logger(),
		q:    queue.New(),
		wake: make(chan struct{}, 1),
	}
}

// Post queues fn to run on the loop. It reports false if the loop has
// stopped and fn will never run.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.q.Add(fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of queued functions.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Length()
}

// Run processes posted work until ctx is canceled. Work still queued when
// ctx is canceled is dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
	}()

	for {
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn, ok := l.next()
			if !ok {
				break
			}
			l.run(fn)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.q.Length() == 0 {
		return nil, false
	}
	return l.q.Remove().(func()), true
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("recovered panic in event loop")
		}
	}()
	fn()
}

// Now returns the wall clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc arms a single-shot timer whose expiry runs f on the loop.
func (l *Loop) AfterFunc(d time.Duration, f func()) clock.Timer {
	t := &timer{}
	t.arm(d, func() {
		if t.stopped.Load() {
			return
		}
		t.fired.Store(true)
		f()
	}, l)
	return t
}

// Every arms a repeating timer. Each tick is posted to the loop and the next
// tick is armed after f returns.
func (l *Loop) Every(d time.Duration, f func()) clock.Timer {
	t := &timer{}
	var tick func()
	tick = func() {
		if t.stopped.Load() {
			return
		}
		f()
		if !t.stopped.Load() {
			t.arm(d, tick, l)
		}
	}
	t.arm(d, tick, l)
	return t
}

type timer struct {
	stopped atomic.Bool
	fired   atomic.Bool

	mu sync.Mutex
	t  *time.Timer
}

func (t *timer) arm(d time.Duration, onLoop func(), l *Loop) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.t = time.AfterFunc(d, func() { l.Post(onLoop) })
}

// Stop cancels the timer. An expiry already queued on the loop is discarded
// when it runs.
func (t *timer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}

	t.mu.Lock()
	if t.t != nil {
		t.t.Stop()
	}
	t.mu.Unlock()

	return !t.fired.Load()
}
