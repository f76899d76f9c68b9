// Package activity defines the session history events the registry records.
package activity

import "time"

// Kind is the type of a recorded event.
type Kind string

const (
	KindOpened         Kind = "opened"
	KindEstablished    Kind = "established"
	KindClosed         Kind = "closed"
	KindTransferDone   Kind = "transfer_done"
	KindTransferFailed Kind = "transfer_failed"
)

// Event is one entry in the session history.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id"`
	Address   string    `json:"address"`
	Direction string    `json:"direction,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Status    string    `json:"status,omitempty"`
	Detail    string    `json:"detail,omitempty"` // content type or file name for transfers
	Bytes     int64     `json:"bytes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists session history.
type Store interface {
	// Record appends an event, filling in ID and Timestamp when unset.
	Record(ev Event) error
	// List returns recent events, newest first. A limit of 0 returns all.
	List(limit int) ([]Event, error)
	// ListSince returns events after since, newest first.
	ListSince(since time.Time, limit int) ([]Event, error)
}
