package session

import "github.com/hay-kot/parley/internal/core/content"

type route int

const (
	routeData route = iota
	routeComposing
	routeXHTML
)

// routeFor picks the handler for an inbound content type. Earlier matches
// win: composing indicators, then rich content, then generic data.
func routeFor(contentType string) route {
	switch {
	case content.Is(contentType, content.TypeIsComposing):
		return routeComposing
	case content.Is(contentType, content.TypeXHTML):
		return routeXHTML
	default:
		return routeData
	}
}

// dispatch delivers one complete inbound message.
func (s *Session) dispatch(contentType string, body Payload) {
	prev := s.disarmRemoteWatchdog()

	switch routeFor(contentType) {
	case routeComposing:
		s.remoteComposing(body, prev)
	case routeXHTML:
		s.deliverXHTML(contentType, body)
	default:
		s.deliverData(contentType, body)
	}
}

func (s *Session) deliverXHTML(contentType string, body Payload) {
	text, err := content.ExtractXHTMLBody(body.Bytes)
	if err != nil {
		s.log.Debug().Err(err).Msg("rich content has no readable body, delivering as data")
		s.deliverData(contentType, body)
		return
	}

	ev := XHTMLEvent{Session: s, Address: s.address, Body: text}
	if h := s.Handlers.OnXHTMLReceived; h != nil {
		h(ev)
		return
	}
	if p := s.cfg.Parent; p != nil && p.HandleXHTML(ev) {
		return
	}
	s.deliverData(contentType, body)
}

func (s *Session) deliverData(contentType string, body Payload) {
	ev := DataEvent{Session: s, Address: s.address, ContentType: contentType, Data: body}
	if h := s.Handlers.OnData; h != nil {
		h(ev)
		return
	}
	if p := s.cfg.Parent; p != nil {
		p.HandleData(ev)
	}
}
