// Package loopback is an in-process network of parties. It implements the
// session signalling and transport collaborators so sessions can be driven
// end to end without a real network.
package loopback

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hay-kot/parley/internal/core/capability"
	"github.com/hay-kot/parley/internal/core/session"
)

// DefaultChunkSize is the chunk size used when none is configured.
const DefaultChunkSize = 2048

// Poster queues work on the dispatcher that owns the sessions.
type Poster interface {
	Post(fn func()) bool
}

// Network routes signalling and transport traffic between parties. Every
// event it produces is delivered through the Poster.
type Network struct {
	loop      Poster
	chunkSize int
	log       zerolog.Logger

	mu         sync.Mutex
	parties    map[string]*Party
	transports map[string]*transport
	nextID     int
}

// NewNetwork creates an empty network. A chunkSize of zero or less uses
// DefaultChunkSize.
func NewNetwork(loop Poster, chunkSize int, log zerolog.Logger) *Network {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Network{
		loop:       loop,
		chunkSize:  chunkSize,
		log:        log.With().Str("component", "loopback").Logger(),
		parties:    make(map[string]*Party),
		transports: make(map[string]*transport),
	}
}

// Party is one addressable participant on the network.
type Party struct {
	net         *Network
	address     string
	displayName string
	caps        capability.Capabilities

	mu        sync.Mutex
	onInbound func(session.InboundRequest)
}

// Join adds a party at address. Joining an address twice replaces the
// previous party.
func (n *Network) Join(address, displayName string, caps capability.Capabilities) *Party {
	p := &Party{net: n, address: address, displayName: displayName, caps: caps}

	n.mu.Lock()
	n.parties[strings.ToLower(address)] = p
	n.mu.Unlock()

	return p
}

// Leave removes the party at address. Sessions to it fail as not found.
func (n *Network) Leave(address string) {
	n.mu.Lock()
	delete(n.parties, strings.ToLower(address))
	n.mu.Unlock()
}

func (n *Network) party(address string) (*Party, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.parties[strings.ToLower(address)]
	return p, ok
}

func (n *Network) register(t *transport) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := fmt.Sprintf("t%d", n.nextID)
	n.transports[id] = t
	return id
}

func (n *Network) lookup(id string) (*transport, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.transports[id]
	return t, ok
}

func (n *Network) unregister(id string) {
	n.mu.Lock()
	delete(n.transports, id)
	n.mu.Unlock()
}

// Address returns the party's address.
func (p *Party) Address() string { return p.address }

// OnInbound sets the handler that receives inbound session requests. Requests
// arriving without a handler are rejected as unavailable.
func (p *Party) OnInbound(fn func(session.InboundRequest)) {
	p.mu.Lock()
	p.onInbound = fn
	p.mu.Unlock()
}

func (p *Party) inboundHandler() func(session.InboundRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onInbound
}

// Endpoint returns a named transport endpoint owned by the party.
func (p *Party) Endpoint(name string) *Endpoint {
	return &Endpoint{party: p, name: name}
}

// Signaller returns the party's outbound signaller.
func (p *Party) Signaller() session.Signaller {
	return &signaller{party: p}
}

// Endpoint creates transport sessions for one party.
type Endpoint struct {
	party *Party
	name  string

	// FailAuth makes new transport sessions report an authentication failure.
	FailAuth bool
}

var _ session.Endpoint = (*Endpoint)(nil)

// Name returns the endpoint name.
func (e *Endpoint) Name() string { return e.name }

// CreateSession opens a transport session for messages.
func (e *Endpoint) CreateSession(sink session.EventSink) (session.Transport, error) {
	return e.open(sink, nil), nil
}

// CreateFileTransferSession opens a transport session that sends data as a
// file once the remote answer has been processed.
func (e *Endpoint) CreateFileTransferSession(sink session.EventSink, data []byte, params session.FileParams) (session.Transport, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("file transfer requires a file name")
	}
	return e.open(sink, &queuedFile{data: data, params: params}), nil
}

func (e *Endpoint) open(sink session.EventSink, file *queuedFile) *transport {
	n := e.party.net
	t := &transport{net: n, sink: sink, file: file, outgoing: make(map[string]*outgoing)}
	t.id = n.register(t)

	if e.FailAuth {
		n.loop.Post(sink.OnAuthFailed)
	} else {
		n.loop.Post(sink.OnAuthenticated)
	}

	n.log.Debug().Str("transport", t.id).Str("endpoint", e.name).Str("party", e.party.address).Msg("transport session opened")
	return t
}
