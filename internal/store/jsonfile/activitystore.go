// Package jsonfile stores session history as JSON lines on disk.
package jsonfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/hay-kot/parley/internal/core/activity"
)

const (
	DefaultMaxEvents = 1000
	historyFilename  = "history.jsonl"
)

// ActivityStore implements activity.Store using a JSONL file. An flock on a
// sibling lock file serializes writers across processes.
type ActivityStore struct {
	dir       string
	maxEvents int
	mu        sync.Mutex
}

var _ activity.Store = (*ActivityStore)(nil)

// NewActivityStore creates a store rooted at dir.
func NewActivityStore(dir string) *ActivityStore {
	return &ActivityStore{
		dir:       dir,
		maxEvents: DefaultMaxEvents,
	}
}

// WithMaxEvents sets how many events are retained. Older events are dropped
// on the next write.
func (s *ActivityStore) WithMaxEvents(n int) *ActivityStore {
	if n > 0 {
		s.maxEvents = n
	}
	return s
}

// Path returns the history file location.
func (s *ActivityStore) Path() string {
	return filepath.Join(s.dir, historyFilename)
}

func (s *ActivityStore) withLock(how int, fn func() error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	f, err := os.OpenFile(s.Path()+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := unix.Flock(int(f.Fd()), how); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:errcheck

	return fn()
}

// Record appends ev to the history.
func (s *ActivityStore) Record(ev activity.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	return s.withLock(unix.LOCK_EX, func() error {
		events, err := s.read()
		if err != nil {
			return err
		}

		events = append(events, ev)
		if len(events) > s.maxEvents {
			events = events[len(events)-s.maxEvents:]
		}

		return s.write(events)
	})
}

// List returns recent events, newest first.
func (s *ActivityStore) List(limit int) ([]activity.Event, error) {
	return s.ListSince(time.Time{}, limit)
}

// ListSince returns events recorded after since, newest first.
func (s *ActivityStore) ListSince(since time.Time, limit int) ([]activity.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []activity.Event
	err := s.withLock(unix.LOCK_SH, func() error {
		events, err := s.read()
		if err != nil {
			return err
		}

		for i := len(events) - 1; i >= 0; i-- {
			if !events[i].Timestamp.After(since) {
				continue
			}
			result = append(result, events[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})
	return result, err
}

// read loads every event. Caller must hold the file lock.
func (s *ActivityStore) read() ([]activity.Event, error) {
	f, err := os.Open(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var events []activity.Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev activity.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			// Skip malformed lines
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	return events, nil
}

// write replaces the history file atomically. Caller must hold the file lock.
func (s *ActivityStore) write(events []activity.Event) error {
	tmpPath := s.Path() + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	enc := json.NewEncoder(f)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			f.Close() //nolint:errcheck
			_ = os.Remove(tmpPath)
			return fmt.Errorf("write event: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
