// Package node wires the event loop, the loopback network and one registry
// per local party into a runnable service.
package node

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/hay-kot/parley/internal/core/activity"
	"github.com/hay-kot/parley/internal/core/config"
	"github.com/hay-kot/parley/internal/core/pool"
	"github.com/hay-kot/parley/internal/core/session"
	"github.com/hay-kot/parley/internal/core/validate"
	"github.com/hay-kot/parley/internal/eventloop"
	"github.com/hay-kot/parley/internal/integration/loopback"
	"github.com/hay-kot/parley/internal/registry"
)

// Node owns the dispatcher and every local party running on it.
type Node struct {
	config  *config.Config
	history activity.Store
	log     zerolog.Logger
	loop    *eventloop.Loop
	network *loopback.Network

	registries []*registry.Registry
}

// New creates a Node. history may be nil to skip recording.
func New(cfg *config.Config, history activity.Store, log zerolog.Logger) *Node {
	loop := eventloop.New(log)
	return &Node{
		config:  cfg,
		history: history,
		log:     log,
		loop:    loop,
		network: loopback.NewNetwork(loop, cfg.ChunkSize, log),
	}
}

// Join adds a local party at address and returns its registry. Parties must
// be joined before Run is called.
func (n *Node) Join(address, displayName string) (*registry.Registry, error) {
	if err := validate.Address(address); err != nil {
		return nil, err
	}

	party := n.network.Join(address, displayName, n.config.Capabilities)

	endpoints := make([]session.Endpoint, 0, len(n.config.Endpoints))
	for _, ep := range n.config.Endpoints {
		if err := checkScheme(ep); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, party.Endpoint(ep.Name))
	}

	reg := registry.New(
		pool.New(endpoints...),
		party.Signaller(),
		n.loop,
		n.history,
		registry.Options{
			IdleTimeout:      n.config.IdleTimeout,
			AcceptTimeout:    n.config.AcceptTimeout,
			ComposingTimeout: n.config.ComposingTimeout,
			SweepInterval:    n.config.SweepInterval,
			Capabilities:     n.config.Capabilities,
		},
		n.log.With().Str("party", address).Logger(),
	)
	party.OnInbound(reg.HandleInbound)

	n.registries = append(n.registries, reg)
	n.log.Debug().Str("address", address).Int("endpoints", len(endpoints)).Msg("party joined")
	return reg, nil
}

// Run starts every registry's sweep and dispatches work until ctx is
// canceled.
func (n *Node) Run(ctx context.Context) error {
	n.loop.Post(func() {
		for _, r := range n.registries {
			r.Start()
		}
	})
	return n.loop.Run(ctx)
}

// Do runs fn on the dispatcher and waits for it to return. Sessions and
// registries may only be touched from inside fn.
func (n *Node) Do(ctx context.Context, fn func()) error {
	return n.loop.Do(ctx, fn)
}

// Shutdown closes every session of every party.
func (n *Node) Shutdown(ctx context.Context) error {
	return n.loop.Do(ctx, func() {
		for _, r := range n.registries {
			r.Close()
		}
	})
}

func checkScheme(ep config.Endpoint) error {
	u, err := url.Parse(ep.URI)
	if err != nil {
		return fmt.Errorf("endpoint %s: %w", ep.Name, err)
	}
	if u.Scheme != config.SchemeLoopback {
		return fmt.Errorf("endpoint %s: unsupported scheme %q", ep.Name, u.Scheme)
	}
	return nil
}
