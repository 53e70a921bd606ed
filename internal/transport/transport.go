// Package transport defines the named-data request/response and
// multicast primitive the core assumes as an external collaborator
// (spec §6): "out of scope" in the sense that its wire semantics are
// someone else's problem, but the interface boundary is in scope so the
// rest of the core has something concrete to call.
package transport

import (
	"context"

	"github.com/dledger/dlnode/internal/record"
)

// Transport is the assumed named-data substrate: exact-name
// request/response (used for RECORD fetches) plus a multicast
// primitive (used for NOTIF and SYNC interests).
type Transport interface {
	// Fetch issues a RECORD request for name against the network and
	// returns the response, or an error if no peer answers.
	Fetch(ctx context.Context, name string) (*record.Record, error)

	// Multicast broadcasts an interest name (a NOTIF or SYNC request) to
	// every peer reachable on the configured multicast prefix.
	Multicast(ctx context.Context, name string) error

	// SetHandler registers the local peer's inbound interest handler.
	// A substrate must deliver every interest addressed to this peer
	// (by exact name or by multicast) to the registered handler.
	SetHandler(h Handler)
}

// Handler processes an inbound interest name and optionally produces a
// RECORD response. ok is false when the interest was not a RECORD
// request this peer can answer (e.g. it was itself a NOTIF/SYNC
// interest, which Handler implementations still act on as a side
// effect — see internal/gossip).
type Handler interface {
	OnInterest(ctx context.Context, name string) (resp *record.Record, ok bool)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, name string) (*record.Record, bool)

func (f HandlerFunc) OnInterest(ctx context.Context, name string) (*record.Record, bool) {
	return f(ctx, name)
}
