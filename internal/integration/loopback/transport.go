package loopback

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hay-kot/parley/internal/core/content"
	"github.com/hay-kot/parley/internal/core/session"
)

var (
	errEnded         = errors.New("loopback: session ended")
	errClosed        = errors.New("loopback: transport closed")
	errNotNegotiated = errors.New("loopback: transport not negotiated")
)

const (
	offerPrefix  = "loopback-offer:"
	answerPrefix = "loopback-answer:"
)

type queuedFile struct {
	data   []byte
	params session.FileParams
}

type outgoing struct {
	id          string
	contentType string
	data        []byte
	filename    string
	description string
	sent        int
	aborted     bool
}

// transport is one side of a negotiated transport session. It is only used
// from the loop.
type transport struct {
	id       string
	net      *Network
	sink     session.EventSink
	peer     *transport
	file     *queuedFile
	outgoing map[string]*outgoing
	closed   bool
}

func (t *transport) Offer() (string, error) {
	if t.closed {
		return "", errClosed
	}
	return offerPrefix + t.id, nil
}

func (t *transport) Answer(offer string) (string, error) {
	if t.closed {
		return "", errClosed
	}
	remote, err := t.resolve(offer, offerPrefix)
	if err != nil {
		return "", err
	}
	t.peer = remote
	return answerPrefix + t.id, nil
}

func (t *transport) ProcessAnswer(answer string) (string, error) {
	if t.closed {
		return "", errClosed
	}
	remote, err := t.resolve(answer, answerPrefix)
	if err != nil {
		return "", err
	}
	if remote.peer != t {
		return "", fmt.Errorf("loopback: answer %q does not match this offer", answer)
	}
	t.peer = remote

	if f := t.file; f != nil {
		t.file = nil
		return t.start(f.data, f.params.ContentType, f.params.Name, f.params.Description), nil
	}
	return "", nil
}

func (t *transport) resolve(token, prefix string) (*transport, error) {
	id, ok := strings.CutPrefix(token, prefix)
	if !ok {
		return nil, fmt.Errorf("loopback: malformed negotiation body %q", token)
	}
	remote, ok := t.net.lookup(id)
	if !ok {
		return nil, fmt.Errorf("loopback: unknown transport %q", id)
	}
	return remote, nil
}

func (t *transport) Send(data []byte, contentType string) (string, error) {
	if t.closed {
		return "", errClosed
	}
	if t.peer == nil {
		return "", errNotNegotiated
	}
	return t.start(data, contentType, "", ""), nil
}

func (t *transport) start(data []byte, contentType, filename, description string) string {
	m := &outgoing{
		id:          uuid.NewString(),
		contentType: contentType,
		data:        data,
		filename:    filename,
		description: description,
	}
	t.outgoing[m.id] = m
	t.net.loop.Post(func() { t.step(m) })
	return m.id
}

// step moves one chunk of m to the peer and schedules the next.
func (t *transport) step(m *outgoing) {
	peer := t.peer
	if t.closed {
		delete(t.outgoing, m.id)
		if m.sent > 0 && !peer.closed {
			peer.sink.OnMessageReceiveAborted(m.id, payload(m.contentType, m.data[:m.sent]))
		}
		return
	}

	if peer.closed {
		delete(t.outgoing, m.id)
		t.sink.OnMessageSendFailed(m.id, 0, "peer closed")
		return
	}

	if m.aborted {
		delete(t.outgoing, m.id)
		t.sink.OnMessageSendFailed(m.id, 0, "aborted")
		peer.sink.OnMessageReceiveAborted(m.id, payload(m.contentType, m.data[:m.sent]))
		return
	}

	total := len(m.data)
	if m.filename == "" && total <= t.net.chunkSize {
		delete(t.outgoing, m.id)
		peer.sink.OnMessageReceived(m.id, m.contentType, payload(m.contentType, m.data))
		t.sink.OnMessageDelivered(m.id)
		return
	}

	first := m.sent == 0
	m.sent = min(m.sent+t.net.chunkSize, total)

	if first {
		peer.sink.OnFirstChunkReceived(m.id, m.contentType, m.filename, int64(total), m.description)
	}
	t.sink.OnChunkSent(m.id, int64(m.sent))
	peer.sink.OnChunkReceived(m.id, int64(m.sent))

	if m.sent < total {
		t.net.loop.Post(func() { t.step(m) })
		return
	}

	delete(t.outgoing, m.id)
	peer.sink.OnMessageReceived(m.id, m.contentType, payload(m.contentType, m.data))
	t.sink.OnMessageDelivered(m.id)
}

func (t *transport) AbortSend(id string) error {
	return t.abort(t, id)
}

func (t *transport) AbortReceive(id string) error {
	if t.peer == nil {
		return errNotNegotiated
	}
	return t.abort(t.peer, id)
}

func (t *transport) abort(sender *transport, id string) error {
	m, ok := sender.outgoing[id]
	if !ok {
		return fmt.Errorf("loopback: no message %q in flight", id)
	}
	m.aborted = true
	return nil
}

func (t *transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.net.unregister(t.id)
	return nil
}

func payload(contentType string, data []byte) session.Payload {
	if content.IsText(contentType) && utf8.Valid(data) {
		return session.TextPayload(string(data))
	}
	return session.BinaryPayload(data)
}
