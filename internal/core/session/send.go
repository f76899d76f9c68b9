package session

import (
	"fmt"

	"github.com/hay-kot/parley/internal/core/content"
)

// Send sends data over an established session. Progress and outcome are
// reported through the callbacks in sc. Sending cancels any local composing
// indicator timers.
func (s *Session) Send(data []byte, sc SendConfig) error {
	if s.state != StateEstablished || s.transport == nil {
		return s.stateError("send")
	}

	ct := sc.contentType(data)
	id, err := s.transport.Send(data, ct)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	s.touch()
	s.stopLocalComposing()

	size := int64(len(data))
	if ft := sc.FileTransfer; ft != nil && ft.Size > 0 {
		size = ft.Size
	}
	s.trackSend(id, ct, size, sc)

	s.log.Debug().Str("message_id", id).Str("content_type", ct).Int64("size", size).Msg("message sent")
	return nil
}

// SendXHTML wraps body in an XHTML document and sends it as rich content.
func (s *Session) SendXHTML(body string, sc SendConfig) error {
	sc.ContentType = content.TypeXHTML
	return s.Send(content.WrapXHTML(body), sc)
}
