package session

import (
	"errors"
	"fmt"
	"maps"

	"github.com/hay-kot/parley/internal/core/capability"
	"github.com/hay-kot/parley/internal/core/content"
)

// FileTransfer marks a send as a file with its own transport session.
type FileTransfer struct {
	Name        string
	Description string
	// Size is the file size in bytes. Zero means the length of the data.
	Size int64
}

// SendConfig configures a send. Every field is optional.
type SendConfig struct {
	// ContentType defaults to text/plain for UTF-8 data and
	// application/octet-stream otherwise.
	ContentType   string
	CustomHeaders map[string]string
	FileTransfer  *FileTransfer

	OnSuccess  func(SuccessEvent)
	OnFailure  func(FailureEvent)
	OnProgress func(ProgressEvent)
}

func (c SendConfig) contentType(data []byte) string {
	if c.ContentType != "" {
		return c.ContentType
	}
	return content.Default(data)
}

type outbound struct {
	data []byte
	send SendConfig
	// pending is true until the initial payload has either been handed to
	// the transport or failed.
	pending bool
}

// NewOutbound opens a session to target and sends data once the session is
// established. The send's callbacks report the outcome of that first payload.
func NewOutbound(cfg Config, target string, data []byte, sc SendConfig) (*Session, error) {
	if cfg.Signaller == nil {
		return nil, errors.New("session config: signaller is required for outbound sessions")
	}

	o := &outbound{data: data, send: sc, pending: true}
	s, err := newSession(cfg, o, target)
	if err != nil {
		return nil, err
	}
	s.headers = maps.Clone(sc.CustomHeaders)

	var t Transport
	if ft := sc.FileTransfer; ft != nil {
		t, err = s.endpoint.CreateFileTransferSession(s.sink(), data, FileParams{
			Name:        ft.Name,
			ContentType: sc.contentType(data),
			Size:        o.size(),
			Description: ft.Description,
		})
	} else {
		t, err = s.endpoint.CreateSession(s.sink())
	}
	if err != nil {
		return nil, fmt.Errorf("create transport session: %w", err)
	}
	s.transport = t

	s.log.Debug().Str("content_type", sc.contentType(data)).Bool("file", sc.FileTransfer != nil).Msg("outbound session opened")
	return s, nil
}

func (o *outbound) direction() Direction { return DirectionOutbound }

func (o *outbound) accept(s *Session) error {
	return fmt.Errorf("accept: %w: session is outbound", ErrInvalidState)
}

func (o *outbound) size() int64 {
	if ft := o.send.FileTransfer; ft != nil && ft.Size > 0 {
		return ft.Size
	}
	return int64(len(o.data))
}

func (o *outbound) authenticated(s *Session) {
	if s.state != StatePending || s.signalling != nil {
		return
	}

	offer, err := s.transport.Offer()
	if err != nil {
		s.log.Warn().Err(fmt.Errorf("%w: %w", ErrNegotiation, err)).Msg("failed to build offer")
		o.fail()
		s.Close(StatusOther)
		return
	}

	sig, err := s.cfg.Signaller.Connect(s.address, ConnectOptions{
		Offer:       offer,
		Headers:     maps.Clone(s.headers),
		FeatureTags: s.cfg.Capabilities.FeatureTags(),
		Handlers: SignalHandlers{
			Started: func(r Response) { o.started(s, r) },
			Ended:   func(ev EndEvent) { o.ended(s, ev) },
			Failed:  func(ev EndEvent) { o.failed(s, ev) },
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to open signalling session")
		o.fail()
		s.Close(StatusOther)
		return
	}
	s.signalling = sig
}

func (o *outbound) started(s *Session, r Response) {
	if s.state != StatePending || s.transport == nil {
		return
	}

	queued, err := s.transport.ProcessAnswer(r.Body)
	if err != nil {
		s.log.Warn().Err(fmt.Errorf("%w: %w", ErrNegotiation, err)).Msg("failed to process answer")
		if sig := s.signalling; sig != nil {
			s.signalling = nil
			s.safely("terminate signalling session", func() error {
				return sig.Terminate(codeNotAcceptable)
			})
		}
		o.fail()
		s.Close(StatusNormal)
		return
	}

	s.caps = capability.ParseFeatureTags(r.Contact)
	s.establish()

	if h := s.cfg.Hooks.Established; h != nil {
		h(s)
	}

	ct := o.send.contentType(o.data)
	id := queued
	if o.send.FileTransfer == nil {
		id, err = s.transport.Send(o.data, ct)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to send initial payload")
			o.fail()
			return
		}
		s.touch()
	}

	o.pending = false
	if id != "" {
		s.trackSend(id, ct, o.size(), o.send)
	}
	o.data = nil
}

func (o *outbound) ended(s *Session, ev EndEvent) {
	if ev.Originator == OriginatorLocal {
		return
	}
	s.signalling = nil
	s.Close(StatusFromCause(ev.Cause))
}

func (o *outbound) failed(s *Session, ev EndEvent) {
	s.signalling = nil
	o.fail()
	s.Close(StatusFromCause(ev.Cause))

	if ev.Cause == CauseAuthentication {
		if h := s.cfg.Hooks.AuthFailure; h != nil {
			h(s)
		}
	}
}

// fail reports the initial payload as failed, at most once.
func (o *outbound) fail() {
	if !o.pending {
		return
	}
	o.pending = false
	o.data = nil
	if cb := o.send.OnFailure; cb != nil {
		cb(FailureEvent{})
	}
}
