package session

import (
	"fmt"
	"maps"

	"github.com/hay-kot/parley/internal/core/capability"
)

// inbound establishes only once both the local user has accepted and the
// transport has produced an answer, in whichever order they happen.
type inbound struct {
	offer    string
	accepted bool
	answer   string
	ready    bool
}

// NewInbound creates a pending session for an inbound request. The session
// stays pending until Accept is called; Close rejects it.
func NewInbound(cfg Config, req InboundRequest) (*Session, error) {
	in := &inbound{offer: req.Offer}
	s, err := newSession(cfg, in, addressFromURI(req.RemoteURI))
	if err != nil {
		return nil, err
	}
	s.displayName = req.DisplayName
	s.headers = maps.Clone(req.Headers)
	s.caps = capability.ParseFeatureTags(req.Contact)
	s.signalling = req.Signalling

	if s.signalling != nil {
		s.signalling.Bind(SignalHandlers{
			Ended:  func(ev EndEvent) { in.ended(s, ev) },
			Failed: func(ev EndEvent) { in.failed(s, ev) },
		})
	}

	t, err := s.endpoint.CreateSession(s.sink())
	if err != nil {
		s.Close(StatusOther)
		return nil, fmt.Errorf("create transport session: %w", err)
	}
	s.transport = t

	s.log.Debug().Str("display_name", s.displayName).Msg("inbound session opened")
	return s, nil
}

func (in *inbound) direction() Direction { return DirectionInbound }

func (in *inbound) authenticated(s *Session) {
	if s.state != StatePending || in.ready {
		return
	}

	answer, err := s.transport.Answer(in.offer)
	if err != nil {
		s.log.Warn().Err(fmt.Errorf("%w: %w", ErrNegotiation, err)).Msg("failed to answer offer")
		s.Close(StatusOther)
		return
	}
	in.answer = answer
	in.ready = true

	if in.accepted {
		in.establish(s)
	}
}

func (in *inbound) accept(s *Session) error {
	if s.state != StatePending {
		return s.stateError("accept")
	}
	if in.accepted {
		return fmt.Errorf("accept: %w: session already accepted", ErrInvalidState)
	}
	in.accepted = true

	if in.ready {
		return in.establish(s)
	}
	return nil
}

func (in *inbound) establish(s *Session) error {
	sig := s.signalling
	if sig == nil {
		s.Close(StatusOther)
		return s.stateError("accept")
	}

	s.establish()
	if err := sig.Answer(in.answer); err != nil {
		s.log.Warn().Err(err).Msg("failed to answer signalling session")
		s.Close(StatusOther)
		return fmt.Errorf("answer signalling session: %w", err)
	}

	if h := s.cfg.Hooks.Established; h != nil {
		h(s)
	}
	return nil
}

func (in *inbound) ended(s *Session, ev EndEvent) {
	if ev.Originator == OriginatorLocal {
		return
	}
	s.signalling = nil
	s.Close(StatusFromCause(ev.Cause))
}

// failed closes the session whichever side the failure is attributed to.
func (in *inbound) failed(s *Session, ev EndEvent) {
	s.signalling = nil
	s.Close(StatusFromCause(ev.Cause))
}
