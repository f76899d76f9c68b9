// Package registry owns the sessions of one local party: it picks endpoints,
// reuses established sessions, receives inbound requests, sweeps idle and
// unanswered sessions, and records session history.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/parley/internal/core/activity"
	"github.com/hay-kot/parley/internal/core/capability"
	"github.com/hay-kot/parley/internal/core/clock"
	"github.com/hay-kot/parley/internal/core/pool"
	"github.com/hay-kot/parley/internal/core/session"
)

// Defaults applied to zero Options fields.
const (
	DefaultAcceptTimeout = 30 * time.Second
	DefaultSweepInterval = 10 * time.Second
)

// Options tune session lifetimes.
type Options struct {
	IdleTimeout      time.Duration
	AcceptTimeout    time.Duration
	ComposingTimeout time.Duration
	SweepInterval    time.Duration
	Capabilities     capability.Capabilities
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = session.DefaultIdleTimeout
	}
	if o.AcceptTimeout <= 0 {
		o.AcceptTimeout = DefaultAcceptTimeout
	}
	if o.ComposingTimeout <= 0 {
		o.ComposingTimeout = session.DefaultComposingTimeout
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	return o
}

type entry struct {
	s    *session.Session
	file bool
}

// Registry tracks every open session of a local party. Like the sessions it
// owns, it must only be used from the dispatcher.
type Registry struct {
	// OnDataSession receives inbound sessions. Without it inbound sessions
	// stay pending until the sweep rejects them.
	OnDataSession func(s *session.Session)
	// OnData receives data that the session itself did not handle.
	OnData func(ev session.DataEvent)
	// OnXHTMLReceived receives rich content the session did not handle.
	OnXHTMLReceived func(ev session.XHTMLEvent)
	// OnAuthFailure fires when the signalling layer rejects our credentials.
	OnAuthFailure func()

	log       zerolog.Logger
	endpoints *pool.Pool[session.Endpoint]
	signaller session.Signaller
	clock     clock.Clock
	history   activity.Store
	opts      Options

	sessions map[string]*entry
	sweeper  clock.Timer
}

var _ session.Parent = (*Registry)(nil)

// New creates a registry. history may be nil to skip recording.
func New(
	endpoints *pool.Pool[session.Endpoint],
	signaller session.Signaller,
	clk clock.Clock,
	history activity.Store,
	opts Options,
	log zerolog.Logger,
) *Registry {
	return &Registry{
		log:       log.With().Str("component", "registry").Logger(),
		endpoints: endpoints,
		signaller: signaller,
		clock:     clk,
		history:   history,
		opts:      opts.withDefaults(),
		sessions:  make(map[string]*entry),
	}
}

func (r *Registry) sessionConfig() session.Config {
	return session.Config{
		Endpoints:        r.endpoints,
		Signaller:        r.signaller,
		Clock:            r.clock,
		Logger:           r.log,
		Parent:           r,
		IdleTimeout:      r.opts.IdleTimeout,
		ComposingTimeout: r.opts.ComposingTimeout,
		Capabilities:     r.opts.Capabilities,
		Hooks: session.Hooks{
			Established:    r.established,
			Closed:         r.released,
			AuthFailure:    r.authFailed,
			TransferDone:   func(s *session.Session, t *session.Transfer) { r.transferEnded(s, t, activity.KindTransferDone) },
			TransferFailed: func(s *session.Session, t *session.Transfer) { r.transferEnded(s, t, activity.KindTransferFailed) },
		},
	}
}

// Send delivers data to address, reusing an established message session when
// one exists. File transfers always get their own session.
func (r *Registry) Send(address string, data []byte, sc session.SendConfig) (*session.Session, error) {
	if sc.FileTransfer == nil {
		if s := r.Lookup(address); s != nil {
			if err := s.Send(data, sc); err != nil {
				return nil, err
			}
			return s, nil
		}
	}

	s, err := session.NewOutbound(r.sessionConfig(), address, data, sc)
	if err != nil {
		return nil, fmt.Errorf("open session to %s: %w", address, err)
	}
	r.track(s, sc.FileTransfer != nil)
	return s, nil
}

// HandleInbound creates a pending session for an inbound request and hands
// it to OnDataSession.
func (r *Registry) HandleInbound(req session.InboundRequest) {
	s, err := session.NewInbound(r.sessionConfig(), req)
	if err != nil {
		r.log.Warn().Err(err).Str("remote", req.RemoteURI).Msg("failed to open inbound session")
		return
	}
	r.track(s, false)

	if r.OnDataSession != nil {
		r.OnDataSession(s)
	}
}

// Lookup returns the established message session for address, or nil.
func (r *Registry) Lookup(address string) *session.Session {
	for _, e := range r.entries() {
		if e.file || e.s.State() != session.StateEstablished {
			continue
		}
		if strings.EqualFold(e.s.Address(), address) {
			return e.s
		}
	}
	return nil
}

// Sessions returns the open sessions, oldest first.
func (r *Registry) Sessions() []*session.Session {
	entries := r.entries()
	out := make([]*session.Session, len(entries))
	for i, e := range entries {
		out[i] = e.s
	}
	return out
}

// Start arms the periodic sweep.
func (r *Registry) Start() {
	if r.sweeper != nil {
		return
	}
	r.sweeper = r.clock.Every(r.opts.SweepInterval, func() {
		r.Sweep(r.clock.Now())
	})
}

// Sweep closes sessions that have been idle longer than the idle timeout and
// rejects inbound sessions left unanswered longer than the accept timeout.
func (r *Registry) Sweep(now time.Time) {
	idle := now.Add(-r.opts.IdleTimeout)
	unanswered := now.Add(-r.opts.AcceptTimeout)

	for _, e := range r.entries() {
		s := e.s
		if s.State() == session.StatePending && s.Direction() == session.DirectionInbound {
			if s.CreatedAt().Before(unanswered) {
				r.log.Debug().Str("session_id", s.ID()).Msg("rejecting unanswered session")
				s.Close(session.StatusOffline)
			}
			continue
		}
		if s.IsIdle(idle) {
			r.log.Debug().Str("session_id", s.ID()).Msg("closing idle session")
			s.Close(session.StatusNormal)
		}
	}
}

// Close stops the sweep and closes every session.
func (r *Registry) Close() {
	if r.sweeper != nil {
		r.sweeper.Stop()
		r.sweeper = nil
	}
	for _, e := range r.entries() {
		e.s.Close(session.StatusNormal)
	}
}

// HandleData receives data no session handler consumed.
func (r *Registry) HandleData(ev session.DataEvent) {
	if r.OnData == nil {
		r.log.Debug().Str("address", ev.Address).Str("content_type", ev.ContentType).Msg("dropping unhandled data")
		return
	}
	r.OnData(ev)
}

// HandleXHTML receives rich content no session handler consumed.
func (r *Registry) HandleXHTML(ev session.XHTMLEvent) bool {
	if r.OnXHTMLReceived == nil {
		return false
	}
	r.OnXHTMLReceived(ev)
	return true
}

func (r *Registry) entries() []*entry {
	out := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *entry) int {
		if c := a.s.CreatedAt().Compare(b.s.CreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.s.ID(), b.s.ID())
	})
	return out
}

func (r *Registry) track(s *session.Session, file bool) {
	if s.State() == session.StateClosed {
		return
	}
	r.sessions[s.ID()] = &entry{s: s, file: file}
	r.record(s, activity.Event{Kind: activity.KindOpened})
}

func (r *Registry) established(s *session.Session) {
	r.record(s, activity.Event{Kind: activity.KindEstablished})
}

func (r *Registry) released(s *session.Session, status session.Status) {
	if _, ok := r.sessions[s.ID()]; !ok {
		return
	}
	delete(r.sessions, s.ID())
	r.record(s, activity.Event{Kind: activity.KindClosed, Status: string(status)})
}

func (r *Registry) authFailed(s *session.Session) {
	r.log.Warn().Str("session_id", s.ID()).Msg("signalling authentication failed")
	if r.OnAuthFailure != nil {
		r.OnAuthFailure()
	}
}

func (r *Registry) transferEnded(s *session.Session, t *session.Transfer, kind activity.Kind) {
	detail := t.Filename()
	if detail == "" {
		detail = t.ContentType()
	}
	size, _ := t.Size()
	r.record(s, activity.Event{
		Kind:      kind,
		Direction: string(t.Direction()),
		Detail:    detail,
		Bytes:     size,
	})
}

func (r *Registry) record(s *session.Session, ev activity.Event) {
	if r.history == nil {
		return
	}

	ev.SessionID = s.ID()
	ev.Address = s.Address()
	ev.Endpoint = s.Endpoint()
	if ev.Direction == "" {
		ev.Direction = string(s.Direction())
	}
	ev.Timestamp = r.clock.Now()

	if err := r.history.Record(ev); err != nil {
		r.log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("failed to record session history")
	}
}
