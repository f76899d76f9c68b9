package loopback

import (
	"maps"
	"strings"

	"github.com/hay-kot/parley/internal/core/session"
)

type signaller struct {
	party *Party
}

// Connect delivers an inbound request to the party at target.
func (s *signaller) Connect(target string, opts session.ConnectOptions) (session.Signalling, error) {
	n := s.party.net
	local := &signalling{net: n, outbound: true, handlers: opts.Handlers}

	callee, ok := n.party(target)
	if !ok {
		n.loop.Post(func() {
			local.fail(session.CauseNotFound)
		})
		return local, nil
	}

	remote := &signalling{net: n, party: callee}
	local.peer, remote.peer = remote, local
	local.party = s.party

	req := session.InboundRequest{
		Signalling:  remote,
		RemoteURI:   "sip:" + s.party.address,
		DisplayName: s.party.displayName,
		Headers:     maps.Clone(opts.Headers),
		Contact:     featureParams(opts.FeatureTags),
		Offer:       opts.Offer,
	}

	n.loop.Post(func() {
		h := callee.inboundHandler()
		if h == nil {
			remote.Terminate(480) //nolint:errcheck
			return
		}
		h(req)
	})
	return local, nil
}

// signalling is one side of a signalling session pair.
type signalling struct {
	net      *Network
	party    *Party
	peer     *signalling
	outbound bool
	handlers session.SignalHandlers

	answered bool
	ended    bool
}

func (s *signalling) Bind(h session.SignalHandlers) {
	s.handlers = h
}

// Answer accepts the inbound session and hands the answer to the caller.
func (s *signalling) Answer(sdp string) error {
	if s.ended {
		return errEnded
	}
	s.answered = true
	peer := s.peer
	peer.answered = true

	resp := session.Response{Body: sdp, Contact: s.party.caps.Params()}
	s.net.loop.Post(func() {
		if peer.ended || peer.handlers.Started == nil {
			return
		}
		peer.handlers.Started(resp)
	})
	return nil
}

// Terminate ends the pair. Before an answer it cancels or rejects; afterwards
// it hangs up.
func (s *signalling) Terminate(code int) error {
	if s.ended {
		return nil
	}
	s.ended = true

	peer := s.peer
	if peer == nil || peer.ended {
		return nil
	}
	peer.ended = true

	var cause session.Cause
	switch {
	case s.answered:
		cause = session.CauseNormal
	case s.outbound:
		cause = session.CauseCanceled
	default:
		cause = causeFromCode(code)
	}

	ev := session.EndEvent{Originator: session.OriginatorRemote, Cause: cause}
	answered := s.answered
	s.net.loop.Post(func() {
		if answered {
			if peer.handlers.Ended != nil {
				peer.handlers.Ended(ev)
			}
			return
		}
		if peer.handlers.Failed != nil {
			peer.handlers.Failed(ev)
		}
	})
	return nil
}

func (s *signalling) fail(cause session.Cause) {
	if s.ended {
		return
	}
	s.ended = true
	if s.handlers.Failed != nil {
		s.handlers.Failed(session.EndEvent{Originator: session.OriginatorRemote, Cause: cause})
	}
}

func causeFromCode(code int) session.Cause {
	switch code {
	case 486, 600:
		return session.CauseBusy
	case 403, 603:
		return session.CauseRejected
	case 480, 410, 408:
		return session.CauseUnavailable
	case 404, 604:
		return session.CauseNotFound
	case 401, 407:
		return session.CauseAuthentication
	default:
		return session.CauseOther
	}
}

// featureParams turns advertised feature tags back into contact parameters.
func featureParams(tags []string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	params := make(map[string]string, len(tags))
	for _, tag := range tags {
		key, value, _ := strings.Cut(tag, "=")
		params[key] = value
	}
	return params
}
