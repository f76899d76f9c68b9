package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/parley/internal/core/capability"
	"github.com/hay-kot/parley/internal/core/clock"
	"github.com/hay-kot/parley/internal/core/content"
	"github.com/hay-kot/parley/internal/core/pool"
)

type sentMessage struct {
	id          string
	data        []byte
	contentType string
}

type fakeTransport struct {
	sink EventSink

	sent          []sentMessage
	offers        int
	answered      []string
	abortedSend   []string
	abortedRecv   []string
	closed        int
	queuedID      string
	sendErr       error
	offerErr      error
	processErr    error
	answerErr     error
	closePanics   bool
	closeErr      error
	nextMessageID int
}

func (f *fakeTransport) Send(data []byte, contentType string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.nextMessageID++
	id := fmt.Sprintf("msg-%d", f.nextMessageID)
	f.sent = append(f.sent, sentMessage{id: id, data: data, contentType: contentType})
	return id, nil
}

func (f *fakeTransport) Offer() (string, error) {
	f.offers++
	return "local-offer", f.offerErr
}

func (f *fakeTransport) ProcessAnswer(sdp string) (string, error) {
	f.answered = append(f.answered, sdp)
	return f.queuedID, f.processErr
}

func (f *fakeTransport) Answer(offer string) (string, error) {
	if f.answerErr != nil {
		return "", f.answerErr
	}
	return "answer-to-" + offer, nil
}

func (f *fakeTransport) AbortSend(id string) error {
	f.abortedSend = append(f.abortedSend, id)
	return nil
}

func (f *fakeTransport) AbortReceive(id string) error {
	f.abortedRecv = append(f.abortedRecv, id)
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	if f.closePanics {
		panic("transport exploded")
	}
	return f.closeErr
}

// indicators returns the composing states sent, in order.
func (f *fakeTransport) indicators(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range f.sent {
		if m.contentType != content.TypeIsComposing {
			continue
		}
		ind, err := content.ParseIsComposing(m.data)
		require.NoError(t, err)
		out = append(out, ind.State)
	}
	return out
}

type fakeEndpoint struct {
	name       string
	transports []*fakeTransport
	fileData   []byte
	fileParams FileParams
	createErr  error
}

func (e *fakeEndpoint) Name() string { return e.name }

func (e *fakeEndpoint) CreateSession(sink EventSink) (Transport, error) {
	if e.createErr != nil {
		return nil, e.createErr
	}
	t := &fakeTransport{sink: sink}
	e.transports = append(e.transports, t)
	return t, nil
}

func (e *fakeEndpoint) CreateFileTransferSession(sink EventSink, data []byte, params FileParams) (Transport, error) {
	if e.createErr != nil {
		return nil, e.createErr
	}
	e.fileData = data
	e.fileParams = params
	t := &fakeTransport{sink: sink, queuedID: "file-1"}
	e.transports = append(e.transports, t)
	return t, nil
}

func (e *fakeEndpoint) last() *fakeTransport {
	return e.transports[len(e.transports)-1]
}

type fakeSignalling struct {
	handlers   SignalHandlers
	answered   []string
	terminated []int
	answerErr  error
}

func (f *fakeSignalling) Bind(h SignalHandlers) { f.handlers = h }

func (f *fakeSignalling) Answer(sdp string) error {
	f.answered = append(f.answered, sdp)
	return f.answerErr
}

func (f *fakeSignalling) Terminate(code int) error {
	f.terminated = append(f.terminated, code)
	return nil
}

type connectCall struct {
	target string
	opts   ConnectOptions
	sig    *fakeSignalling
}

type fakeSignaller struct {
	calls []connectCall
	err   error
}

func (f *fakeSignaller) Connect(target string, opts ConnectOptions) (Signalling, error) {
	if f.err != nil {
		return nil, f.err
	}
	sig := &fakeSignalling{handlers: opts.Handlers}
	f.calls = append(f.calls, connectCall{target: target, opts: opts, sig: sig})
	return sig, nil
}

func (f *fakeSignaller) last() connectCall {
	return f.calls[len(f.calls)-1]
}

type fakeParent struct {
	data         []DataEvent
	xhtml        []XHTMLEvent
	handlesXHTML bool
}

func (p *fakeParent) HandleData(ev DataEvent) { p.data = append(p.data, ev) }

func (p *fakeParent) HandleXHTML(ev XHTMLEvent) bool {
	if !p.handlesXHTML {
		return false
	}
	p.xhtml = append(p.xhtml, ev)
	return true
}

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	clock     *clock.Manual
	endpoint  *fakeEndpoint
	signaller *fakeSignaller
	parent    *fakeParent
	cfg       Config

	established []*Session
	closed      []Status
	authFails   int
	done        []*Transfer
	failed      []*Transfer
}

func newHarness() *harness {
	h := &harness{
		clock:     clock.NewManual(epoch),
		endpoint:  &fakeEndpoint{name: "ws-a"},
		signaller: &fakeSignaller{},
		parent:    &fakeParent{},
	}
	h.cfg = Config{
		Endpoints:    pool.New[Endpoint](h.endpoint),
		Signaller:    h.signaller,
		Clock:        h.clock,
		Logger:       zerolog.Nop(),
		Parent:       h.parent,
		Capabilities: capability.Capabilities{Data: true},
		Hooks: Hooks{
			Established:    func(s *Session) { h.established = append(h.established, s) },
			Closed:         func(_ *Session, st Status) { h.closed = append(h.closed, st) },
			AuthFailure:    func(*Session) { h.authFails++ },
			TransferDone:   func(_ *Session, t *Transfer) { h.done = append(h.done, t) },
			TransferFailed: func(_ *Session, t *Transfer) { h.failed = append(h.failed, t) },
		},
	}
	return h
}

// outbound opens an outbound session and drives it to established.
func (h *harness) outbound(t *testing.T, data []byte, sc SendConfig) (*Session, *fakeTransport, *fakeSignalling) {
	t.Helper()

	s, err := NewOutbound(h.cfg, "bob@example.com", data, sc)
	require.NoError(t, err)

	tr := h.endpoint.last()
	tr.sink.OnAuthenticated()
	require.Len(t, h.signaller.calls, 1)

	sig := h.signaller.last().sig
	sig.handlers.Started(Response{Body: "remote-answer"})
	require.Equal(t, StateEstablished, s.State())
	return s, tr, sig
}

// inbound opens an inbound session in the pending state.
func (h *harness) inbound(t *testing.T) (*Session, *fakeTransport, *fakeSignalling) {
	t.Helper()

	sig := &fakeSignalling{}
	s, err := NewInbound(h.cfg, InboundRequest{
		Signalling:  sig,
		RemoteURI:   "sip:alice@example.com;transport=ws",
		DisplayName: "Alice",
		Headers:     map[string]string{"X-Room": "lobby"},
		Contact:     map[string]string{"+sip.text": ""},
		Offer:       "remote-offer",
	})
	require.NoError(t, err)
	return s, h.endpoint.last(), sig
}

// establishedInbound opens an inbound session and accepts it.
func (h *harness) establishedInbound(t *testing.T) (*Session, *fakeTransport, *fakeSignalling) {
	t.Helper()

	s, tr, sig := h.inbound(t)
	tr.sink.OnAuthenticated()
	require.NoError(t, s.Accept())
	require.Equal(t, StateEstablished, s.State())
	return s, tr, sig
}
