package jsonfile

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/parley/internal/core/activity"
)

func TestActivityStore_RecordAndList(t *testing.T) {
	store := NewActivityStore(t.TempDir())

	require.NoError(t, store.Record(activity.Event{Kind: activity.KindOpened, SessionID: "s1", Address: "bob@example.com"}))
	require.NoError(t, store.Record(activity.Event{Kind: activity.KindClosed, SessionID: "s1", Address: "bob@example.com", Status: "normal"}))

	events, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, activity.KindClosed, events[0].Kind, "newest first")
	assert.Equal(t, activity.KindOpened, events[1].Kind)
	assert.NotEmpty(t, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestActivityStore_ListEmpty(t *testing.T) {
	store := NewActivityStore(t.TempDir())

	events, err := store.List(10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestActivityStore_Limit(t *testing.T) {
	store := NewActivityStore(t.TempDir())
	for range 5 {
		require.NoError(t, store.Record(activity.Event{Kind: activity.KindOpened}))
	}

	events, err := store.List(3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestActivityStore_Retention(t *testing.T) {
	store := NewActivityStore(t.TempDir()).WithMaxEvents(3)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, store.Record(activity.Event{SessionID: id, Kind: activity.KindOpened}))
	}

	events, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "e", events[0].SessionID)
	assert.Equal(t, "c", events[2].SessionID)
}

func TestActivityStore_ListSince(t *testing.T) {
	store := NewActivityStore(t.TempDir())
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 4 {
		require.NoError(t, store.Record(activity.Event{
			SessionID: string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := store.ListSince(base.Add(90*time.Second), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "d", events[0].SessionID)
	assert.Equal(t, "c", events[1].SessionID)
}

func TestActivityStore_SkipsMalformedLines(t *testing.T) {
	store := NewActivityStore(t.TempDir())
	require.NoError(t, store.Record(activity.Event{SessionID: "ok"}))

	f, err := os.OpenFile(store.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].SessionID)
}

func TestActivityStore_ConcurrentRecord(t *testing.T) {
	dir := t.TempDir()
	a := NewActivityStore(dir)
	b := NewActivityStore(dir)

	var wg sync.WaitGroup
	for i := range 20 {
		store := a
		if i%2 == 1 {
			store = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Record(activity.Event{Kind: activity.KindOpened}))
		}()
	}
	wg.Wait()

	events, err := a.List(0)
	require.NoError(t, err)
	assert.Len(t, events, 20)
}
