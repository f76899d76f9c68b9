// Package clock defines the timer capability sessions arm their timeouts with.
package clock

import "time"

// Timer is a handle to an armed single-shot or repeating timer.
type Timer interface {
	// Stop cancels the timer. It reports whether the timer was still armed.
	// Once Stop returns the callback does not run, even if it was already due.
	Stop() bool
}

// Clock reports the current time and arms timers. Implementations deliver
// timer callbacks on the same dispatcher that delivers collaborator events.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
	// Every calls f repeatedly every d until stopped.
	Every(d time.Duration, f func()) Timer
}
