// Package memsubstrate is an in-process fake of the named-data
// transport, used by tests and by the convergence scenarios in §8 of
// the design notes. Grounded on the teacher's gomock-backed peer
// fixtures: a shared registry stands in for the network, and delivery
// is a synchronous function call instead of a round trip.
package memsubstrate

import (
	"context"
	"errors"
	"sync"

	"github.com/dledger/dlnode/internal/record"
	"github.com/dledger/dlnode/internal/transport"
)

// ErrNoResponse is returned by Fetch when no joined peer answers.
var ErrNoResponse = errors.New("memsubstrate: no peer answered fetch")

// Network is the shared registry every Substrate joins. Safe for
// concurrent use.
type Network struct {
	mu     sync.RWMutex
	byMC   map[string][]*Substrate
	allArr []*Substrate
}

// NewNetwork builds an empty network.
func NewNetwork() *Network {
	return &Network{byMC: make(map[string][]*Substrate)}
}

// Substrate is one peer's view of the network: it can fetch and
// multicast, and registers a handler for inbound interests.
type Substrate struct {
	net      *Network
	mcPrefix string

	mu      sync.RWMutex
	handler transport.Handler
}

// Join registers a new peer under mcPrefix and returns its substrate
// handle.
func (n *Network) Join(mcPrefix string) *Substrate {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := &Substrate{net: n, mcPrefix: mcPrefix}
	n.byMC[mcPrefix] = append(n.byMC[mcPrefix], s)
	n.allArr = append(n.allArr, s)
	return s
}

// SetHandler implements transport.Transport.
func (s *Substrate) SetHandler(h transport.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *Substrate) ownHandler() transport.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

// Fetch asks every other peer on the network for name and returns the
// first RECORD response. Grounded on the "exact-name request/response"
// half of the transport primitive in spec §6.
func (s *Substrate) Fetch(ctx context.Context, name string) (*record.Record, error) {
	s.net.mu.RLock()
	peers := make([]*Substrate, len(s.net.allArr))
	copy(peers, s.net.allArr)
	s.net.mu.RUnlock()

	for _, peer := range peers {
		if peer == s {
			continue
		}
		h := peer.ownHandler()
		if h == nil {
			continue
		}
		if resp, ok := h.OnInterest(ctx, name); ok && resp != nil {
			return resp, nil
		}
	}
	return nil, ErrNoResponse
}

// Multicast delivers name to every other peer sharing s's multicast
// prefix, ignoring any response (NOTIF/SYNC interests are side-effect
// only from the sender's point of view).
func (s *Substrate) Multicast(ctx context.Context, name string) error {
	s.net.mu.RLock()
	peers := make([]*Substrate, len(s.net.byMC[s.mcPrefix]))
	copy(peers, s.net.byMC[s.mcPrefix])
	s.net.mu.RUnlock()

	for _, peer := range peers {
		if peer == s {
			continue
		}
		if h := peer.ownHandler(); h != nil {
			h.OnInterest(ctx, name)
		}
	}
	return nil
}
