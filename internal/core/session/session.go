// Package session coordinates one peer data-exchange session: it reconciles
// the signalling and transport sub-sessions into a single lifecycle, tracks
// in-flight transfers, runs the composing indicator timers, and translates
// transport events into session-level notifications.
//
// A Session is not safe for concurrent use. Every call into it, including
// collaborator callbacks and timer expiries, must be made from one dispatcher
// one at a time.
package session

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/parley/internal/core/capability"
	"github.com/hay-kot/parley/internal/core/clock"
	"github.com/hay-kot/parley/internal/core/pool"
	"github.com/hay-kot/parley/pkg/randid"
)

// State represents the lifecycle state of a session.
type State string

const (
	StatePending     State = "pending"
	StateEstablished State = "established"
	StateClosed      State = "closed"
)

// Direction tells who initiated a session or transfer.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// Defaults applied to a zero Config.
const (
	DefaultIdleTimeout      = 300 * time.Second
	DefaultComposingTimeout = 15 * time.Second
)

const idLength = 10

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// session's current lifecycle state. The session is left unchanged.
	ErrInvalidState = errors.New("invalid session state")
	// ErrNegotiation marks offer/answer processing failures. Sessions that
	// hit it are closed rather than retried.
	ErrNegotiation = errors.New("session negotiation failed")
)

// Hooks let the owning registry observe lifecycle milestones. All are
// optional.
type Hooks struct {
	Established    func(s *Session)
	Closed         func(s *Session, status Status)
	AuthFailure    func(s *Session)
	TransferDone   func(s *Session, t *Transfer)
	TransferFailed func(s *Session, t *Transfer)
}

// Config holds the collaborators and tunables shared by the sessions of one
// registry.
type Config struct {
	Endpoints *pool.Pool[Endpoint]
	// Signaller opens outbound signalling sessions. Inbound sessions arrive
	// with their signalling session already attached.
	Signaller Signaller
	Clock     clock.Clock
	Logger    zerolog.Logger
	Parent    Parent
	// IdleTimeout is halved to give the composing refresh interval.
	IdleTimeout time.Duration
	// ComposingTimeout bounds how long the local side stays active without
	// another SetComposingState call.
	ComposingTimeout time.Duration
	// Capabilities are advertised to the remote party in outbound offers.
	Capabilities capability.Capabilities
	Hooks        Hooks
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ComposingTimeout <= 0 {
		c.ComposingTimeout = DefaultComposingTimeout
	}
	return c
}

func (c Config) validate() error {
	if c.Endpoints == nil {
		return fmt.Errorf("session config: %w", pool.ErrNoEndpoints)
	}
	if c.Clock == nil {
		return errors.New("session config: clock is required")
	}
	return nil
}

// strategy holds the direction-specific parts of the lifecycle.
type strategy interface {
	direction() Direction
	// authenticated runs when the transport sub-session is ready to negotiate.
	authenticated(s *Session)
	accept(s *Session) error
}

// Session is one negotiated data-exchange relationship with a remote party.
type Session struct {
	// Handlers receive session-level notifications. Set them before
	// returning control to the dispatcher.
	Handlers Handlers

	id       string
	cfg      Config
	log      zerolog.Logger
	dir      strategy
	endpoint Endpoint

	address     string
	displayName string
	headers     map[string]string
	caps        capability.Capabilities

	state        State
	createdAt    time.Time
	lastActivity time.Time

	sendTransfers map[string]*Transfer
	recvTransfers map[string]*Transfer

	signalling Signalling
	transport  Transport

	localRefresh   clock.Timer
	localTimeout   clock.Timer
	remoteWatchdog clock.Timer
}

func newSession(cfg Config, dir strategy, address string) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	ep, err := cfg.Endpoints.Select()
	if err != nil {
		return nil, fmt.Errorf("select endpoint: %w", err)
	}

	id := randid.Generate(idLength)
	now := cfg.Clock.Now()

	return &Session{
		id:       id,
		cfg:      cfg,
		dir:      dir,
		endpoint: ep,
		address:  address,
		log: cfg.Logger.With().
			Str("session_id", id).
			Str("address", address).
			Str("direction", string(dir.direction())).
			Str("endpoint", ep.Name()).
			Logger(),
		state:         StatePending,
		createdAt:     now,
		lastActivity:  now,
		sendTransfers: make(map[string]*Transfer),
		recvTransfers: make(map[string]*Transfer),
	}, nil
}

// ID returns the locally generated session identifier.
func (s *Session) ID() string { return s.id }

// Address returns the remote party's address.
func (s *Session) Address() string { return s.address }

// DisplayName returns the remote party's display name, if it sent one.
func (s *Session) DisplayName() string { return s.displayName }

// CustomHeaders returns the custom headers negotiated at session setup.
func (s *Session) CustomHeaders() map[string]string { return maps.Clone(s.headers) }

// Capabilities returns the remote party's capabilities as last reported.
func (s *Session) Capabilities() capability.Capabilities { return s.caps }

// Direction reports who initiated the session.
func (s *Session) Direction() Direction { return s.dir.direction() }

// Endpoint returns the name of the transport endpoint the session uses.
func (s *Session) Endpoint() string { return s.endpoint.Name() }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastActivity returns when data last moved on the session.
func (s *Session) LastActivity() time.Time { return s.lastActivity }

// IsIdle reports whether the session has been quiet since before threshold.
func (s *Session) IsIdle(threshold time.Time) bool {
	return s.lastActivity.Before(threshold)
}

// Accept accepts an inbound session. It may be called before or after the
// transport has finished negotiating; the session becomes established as soon
// as both have happened.
func (s *Session) Accept() error {
	return s.dir.accept(s)
}

// Close closes the session, rejecting it if it is an inbound session that was
// never accepted. Closing a closed session does nothing. An empty status is
// treated as StatusNormal.
func (s *Session) Close(status Status) {
	if s.state == StateClosed {
		return
	}
	if status == "" {
		status = StatusNormal
	}

	prev := s.state
	s.state = StateClosed

	if t := s.transport; t != nil {
		s.transport = nil
		s.safely("close transport session", t.Close)
	}

	if sig := s.signalling; sig != nil {
		s.signalling = nil
		code := codeNormal
		if prev == StatePending && s.Direction() == DirectionInbound {
			code = RejectCode(status)
		}
		s.safely("terminate signalling session", func() error {
			return sig.Terminate(code)
		})
	}

	s.stopLocalComposing()
	if s.remoteWatchdog != nil {
		s.remoteWatchdog.Stop()
		s.remoteWatchdog = nil
	}

	s.log.Info().Str("status", string(status)).Str("from", string(prev)).Msg("session closed")

	if h := s.Handlers.OnClose; h != nil {
		h(CloseEvent{Status: status})
	}
	if h := s.cfg.Hooks.Closed; h != nil {
		h(s, status)
	}
}

// establish moves a pending session to established and stamps activity.
func (s *Session) establish() {
	s.state = StateEstablished
	s.touch()
	s.log.Info().Msg("session established")
}

func (s *Session) touch() {
	s.lastActivity = s.cfg.Clock.Now()
}

// safely runs a teardown step, logging instead of propagating failures so one
// sub-session can always be torn down after the other failed.
func (s *Session) safely(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg(what + " panicked")
		}
	}()

	if err := fn(); err != nil {
		s.log.Warn().Err(err).Msg(what + " failed")
	}
}

func (s *Session) stateError(op string) error {
	return fmt.Errorf("%s: %w: session is %s", op, ErrInvalidState, s.state)
}

// addressFromURI strips the scheme and any parameters from a signalling URI.
func addressFromURI(uri string) string {
	addr := strings.TrimSpace(uri)
	addr = strings.TrimPrefix(addr, "<")
	addr = strings.TrimSuffix(addr, ">")
	for _, scheme := range []string{"sips:", "sip:"} {
		if len(addr) >= len(scheme) && strings.EqualFold(addr[:len(scheme)], scheme) {
			addr = addr[len(scheme):]
			break
		}
	}
	if i := strings.IndexAny(addr, ";?"); i >= 0 {
		addr = addr[:i]
	}
	return addr
}
