package registry

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/parley/internal/core/activity"
	"github.com/hay-kot/parley/internal/core/capability"
	"github.com/hay-kot/parley/internal/core/clock"
	"github.com/hay-kot/parley/internal/core/content"
	"github.com/hay-kot/parley/internal/core/pool"
	"github.com/hay-kot/parley/internal/core/session"
	"github.com/hay-kot/parley/internal/integration/loopback"
)

// manualLoop queues posted work until the test drains it.
type manualLoop struct {
	queue []func()
}

func (l *manualLoop) Post(fn func()) bool {
	l.queue = append(l.queue, fn)
	return true
}

func (l *manualLoop) drain(t *testing.T) {
	t.Helper()
	for i := 0; len(l.queue) > 0; i++ {
		require.Less(t, i, 10000, "loop did not settle")
		fn := l.queue[0]
		l.queue = l.queue[1:]
		fn()
	}
}

type memoryHistory struct {
	events []activity.Event
}

func (m *memoryHistory) Record(ev activity.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryHistory) List(limit int) ([]activity.Event, error) {
	return m.ListSince(time.Time{}, limit)
}

func (m *memoryHistory) ListSince(since time.Time, limit int) ([]activity.Event, error) {
	var out []activity.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Timestamp.After(since) {
			out = append(out, m.events[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryHistory) kinds() []activity.Kind {
	out := make([]activity.Kind, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Kind
	}
	return out
}

const (
	aliceAddr = "alice@example.com"
	bobAddr   = "bob@example.com"
)

type fixture struct {
	loop  *manualLoop
	clock *clock.Manual
	net   *loopback.Network

	alice, bob               *Registry
	aliceHistory, bobHistory *memoryHistory
	aliceParty, bobParty     *loopback.Party
}

func newFixture(chunkSize int) *fixture {
	f := &fixture{
		loop:         &manualLoop{},
		clock:        clock.NewManual(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		aliceHistory: &memoryHistory{},
		bobHistory:   &memoryHistory{},
	}
	f.net = loopback.NewNetwork(f.loop, chunkSize, zerolog.Nop())

	f.aliceParty = f.net.Join(aliceAddr, "Alice", capability.Capabilities{Text: true})
	f.bobParty = f.net.Join(bobAddr, "Bob", capability.Capabilities{Data: true})

	f.alice = New(
		pool.New[session.Endpoint](f.aliceParty.Endpoint("alice-1"), f.aliceParty.Endpoint("alice-2")),
		f.aliceParty.Signaller(), f.clock, f.aliceHistory,
		Options{Capabilities: capability.Capabilities{Text: true}}, zerolog.Nop(),
	)
	f.bob = New(
		pool.New[session.Endpoint](f.bobParty.Endpoint("bob-1")),
		f.bobParty.Signaller(), f.clock, f.bobHistory,
		Options{}, zerolog.Nop(),
	)

	f.aliceParty.OnInbound(f.alice.HandleInbound)
	f.bobParty.OnInbound(f.bob.HandleInbound)
	return f
}

// autoAccept makes bob accept every inbound session and collect data.
func (f *fixture) autoAccept(t *testing.T) *[]session.DataEvent {
	t.Helper()
	var received []session.DataEvent
	f.bob.OnDataSession = func(s *session.Session) {
		require.NoError(t, s.Accept())
	}
	f.bob.OnData = func(ev session.DataEvent) { received = append(received, ev) }
	return &received
}

func TestRegistry_SendText(t *testing.T) {
	f := newFixture(0)
	received := f.autoAccept(t)

	var succeeded int
	s, err := f.alice.Send(bobAddr, []byte("hello"), session.SendConfig{
		OnSuccess: func(session.SuccessEvent) { succeeded++ },
	})
	require.NoError(t, err)
	f.loop.drain(t)

	assert.Equal(t, session.StateEstablished, s.State())
	assert.Equal(t, 1, succeeded)

	require.Len(t, *received, 1)
	ev := (*received)[0]
	assert.Equal(t, aliceAddr, ev.Address)
	assert.Equal(t, content.TypeText, ev.ContentType)
	assert.Equal(t, "hello", ev.Data.String())
	assert.True(t, ev.Data.Text)
	assert.Equal(t, "Alice", ev.Session.DisplayName())
	assert.True(t, ev.Session.Capabilities().Text, "caller feature tags reach the callee")
	assert.True(t, s.Capabilities().Data, "callee contact params reach the caller")

	assert.Equal(t, []activity.Kind{activity.KindOpened, activity.KindEstablished, activity.KindTransferDone}, f.aliceHistory.kinds())
	assert.Equal(t, []activity.Kind{activity.KindOpened, activity.KindEstablished}, f.bobHistory.kinds())
}

func TestRegistry_SendReusesEstablishedSession(t *testing.T) {
	f := newFixture(0)
	received := f.autoAccept(t)

	first, err := f.alice.Send(bobAddr, []byte("one"), session.SendConfig{})
	require.NoError(t, err)
	f.loop.drain(t)

	second, err := f.alice.Send("BOB@example.com", []byte("two"), session.SendConfig{})
	require.NoError(t, err)
	f.loop.drain(t)

	assert.Same(t, first, second)
	assert.Len(t, f.alice.Sessions(), 1)
	require.Len(t, *received, 2)
	assert.Equal(t, "two", (*received)[1].Data.String())
}

func TestRegistry_SendWhilePendingOpensAnother(t *testing.T) {
	f := newFixture(0)
	f.autoAccept(t)

	first, err := f.alice.Send(bobAddr, []byte("one"), session.SendConfig{})
	require.NoError(t, err)
	second, err := f.alice.Send(bobAddr, []byte("two"), session.SendConfig{})
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, "alice-1", first.Endpoint())
	assert.Equal(t, "alice-2", second.Endpoint())
}

func TestRegistry_FileTransfer(t *testing.T) {
	f := newFixture(4)
	received := f.autoAccept(t)

	var started []*session.Transfer
	f.bob.OnDataSession = func(s *session.Session) {
		s.Handlers.OnDataStart = func(ev session.DataStartEvent) { started = append(started, ev.Transfer) }
		require.NoError(t, s.Accept())
	}

	var percents []int
	var done int
	_, err := f.alice.Send(bobAddr, []byte("0123456789"), session.SendConfig{
		ContentType:  "text/plain",
		FileTransfer: &session.FileTransfer{Name: "digits.txt", Description: "ten digits"},
		OnProgress:   func(ev session.ProgressEvent) { percents = append(percents, *ev.PercentComplete) },
		OnSuccess:    func(session.SuccessEvent) { done++ },
	})
	require.NoError(t, err)
	f.loop.drain(t)

	assert.Equal(t, []int{40, 80, 100}, percents)
	assert.Equal(t, 1, done)

	require.Len(t, started, 1)
	assert.Equal(t, "digits.txt", started[0].Filename())
	assert.Equal(t, "ten digits", started[0].Description())
	size, known := started[0].Size()
	assert.True(t, known)
	assert.Equal(t, int64(10), size)

	require.Len(t, *received, 1)
	assert.Equal(t, "0123456789", (*received)[0].Data.String())

	assert.Nil(t, f.alice.Lookup(bobAddr), "file sessions are not reused for messages")
}

func TestRegistry_RejectedByCallee(t *testing.T) {
	f := newFixture(0)
	f.bob.OnDataSession = func(s *session.Session) { s.Close(session.StatusBlocked) }

	var closed []session.Status
	var failures int
	s, err := f.alice.Send(bobAddr, []byte("hi"), session.SendConfig{
		OnFailure: func(session.FailureEvent) { failures++ },
	})
	require.NoError(t, err)
	s.Handlers.OnClose = func(ev session.CloseEvent) { closed = append(closed, ev.Status) }
	f.loop.drain(t)

	assert.Equal(t, []session.Status{session.StatusBlocked}, closed)
	assert.Equal(t, 1, failures)
	assert.Empty(t, f.alice.Sessions())
	assert.Empty(t, f.bob.Sessions())
}

func TestRegistry_UnknownAddress(t *testing.T) {
	f := newFixture(0)

	var closed []session.Status
	s, err := f.alice.Send("nobody@example.com", []byte("hi"), session.SendConfig{})
	require.NoError(t, err)
	s.Handlers.OnClose = func(ev session.CloseEvent) { closed = append(closed, ev.Status) }
	f.loop.drain(t)

	assert.Equal(t, []session.Status{session.StatusNotFound}, closed)
	last := f.aliceHistory.events[len(f.aliceHistory.events)-1]
	assert.Equal(t, activity.KindClosed, last.Kind)
	assert.Equal(t, "notfound", last.Status)
}

func TestRegistry_EmptyPool(t *testing.T) {
	f := newFixture(0)
	r := New(pool.New[session.Endpoint](), f.aliceParty.Signaller(), f.clock, nil, Options{}, zerolog.Nop())

	_, err := r.Send(bobAddr, []byte("hi"), session.SendConfig{})
	require.ErrorIs(t, err, pool.ErrNoEndpoints)
}

func TestRegistry_TransportAuthFailure(t *testing.T) {
	f := newFixture(0)
	ep := f.aliceParty.Endpoint("broken")
	ep.FailAuth = true
	r := New(pool.New[session.Endpoint](ep), f.aliceParty.Signaller(), f.clock, nil, Options{}, zerolog.Nop())

	var failures int
	_, err := r.Send(bobAddr, []byte("hi"), session.SendConfig{
		OnFailure: func(session.FailureEvent) { failures++ },
	})
	require.NoError(t, err)
	f.loop.drain(t)

	assert.Equal(t, 1, failures)
	assert.Empty(t, r.Sessions())
}

func TestRegistry_SweepRejectsUnanswered(t *testing.T) {
	f := newFixture(0)

	var closed []session.Status
	s, err := f.alice.Send(bobAddr, []byte("hi"), session.SendConfig{})
	require.NoError(t, err)
	s.Handlers.OnClose = func(ev session.CloseEvent) { closed = append(closed, ev.Status) }
	f.loop.drain(t)

	inbound := f.bob.Sessions()
	require.Len(t, inbound, 1)
	assert.Equal(t, session.StatePending, inbound[0].State())

	f.clock.Advance(29 * time.Second)
	f.bob.Sweep(f.clock.Now())
	assert.Len(t, f.bob.Sessions(), 1)

	f.clock.Advance(2 * time.Second)
	f.bob.Sweep(f.clock.Now())
	f.loop.drain(t)

	assert.Equal(t, session.StateClosed, inbound[0].State())
	assert.Equal(t, []session.Status{session.StatusOffline}, closed)
}

func TestRegistry_SweepClosesIdleSessions(t *testing.T) {
	f := newFixture(0)
	f.autoAccept(t)
	f.alice.Start()
	f.bob.Start()

	s, err := f.alice.Send(bobAddr, []byte("hi"), session.SendConfig{})
	require.NoError(t, err)
	f.loop.drain(t)
	require.Len(t, f.bob.Sessions(), 1)

	f.clock.Advance(290 * time.Second)
	f.loop.drain(t)
	assert.Equal(t, session.StateEstablished, s.State())

	f.clock.Advance(20 * time.Second)
	f.loop.drain(t)

	assert.Equal(t, session.StateClosed, s.State())
	assert.Empty(t, f.alice.Sessions())
	assert.Empty(t, f.bob.Sessions())
}

func TestRegistry_ComposingAndRichContent(t *testing.T) {
	f := newFixture(0)

	var states []session.ComposingState
	var rich []session.XHTMLEvent
	f.bob.OnDataSession = func(s *session.Session) {
		s.Handlers.OnComposingStateChange = func(ev session.ComposingEvent) { states = append(states, ev.State) }
		require.NoError(t, s.Accept())
	}
	f.bob.OnXHTMLReceived = func(ev session.XHTMLEvent) { rich = append(rich, ev) }

	s, err := f.alice.Send(bobAddr, []byte("hi"), session.SendConfig{})
	require.NoError(t, err)
	f.loop.drain(t)

	require.NoError(t, s.SetComposingState(session.ComposingActive))
	f.loop.drain(t)
	assert.Equal(t, []session.ComposingState{session.ComposingActive}, states)

	require.NoError(t, s.SendXHTML("<em>hi</em>", session.SendConfig{}))
	f.loop.drain(t)

	require.Len(t, rich, 1)
	assert.Equal(t, "<em>hi</em>", rich[0].Body)
	assert.Equal(t, aliceAddr, rich[0].Address)
	assert.Equal(t, []session.ComposingState{session.ComposingActive}, states)
}

func TestRegistry_CloseAll(t *testing.T) {
	f := newFixture(0)
	f.autoAccept(t)

	_, err := f.alice.Send(bobAddr, []byte("hi"), session.SendConfig{})
	require.NoError(t, err)
	f.loop.drain(t)

	f.alice.Close()
	f.loop.drain(t)

	assert.Empty(t, f.alice.Sessions())
	assert.Empty(t, f.bob.Sessions())
	assert.Equal(t, "normal", f.bobHistory.events[len(f.bobHistory.events)-1].Status)
}
