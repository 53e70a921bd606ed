// Package gossip implements the sync engine: periodic tip-set
// multicast, and the reactions to inbound SYNC, NOTIF, and RECORD
// interests (spec §4.5).
package gossip

import (
	"context"
	"strings"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/dledger/dlnode/internal/record"
	"github.com/dledger/dlnode/internal/transport"
)

// MissingRequester is satisfied by internal/intake.Queue: it records a
// name as missing (if not already) and dispatches a deduped background
// fetch whose eventual response re-enters the intake pipeline.
type MissingRequester interface {
	RequestMissing(name string)
}

// Config holds the per-peer gossip parameters.
type Config struct {
	McPrefix string
	// PreferV2 selects the length-prefixed SYNC encoding for names this
	// peer originates. internal/node sets it from the static
	// transport.prefer_v2 option; no transport negotiates a protocol
	// version. Decoding always accepts either encoding regardless of
	// this flag.
	PreferV2 bool
}

// Engine is the sync engine: it both emits periodic SYNC interests and
// answers inbound SYNC/NOTIF/RECORD interests as a transport.Handler.
type Engine struct {
	store   *ledger.Store
	tp      transport.Transport
	missing MissingRequester
	cfg     Config
}

// New builds a gossip Engine.
func New(store *ledger.Store, tp transport.Transport, missing MissingRequester, cfg Config) *Engine {
	return &Engine{store: store, tp: tp, missing: missing, cfg: cfg}
}

// GenerateSync multicasts the current tip set (spec §4.5,
// "Generation"), grounded on Peer::GenerateSync.
func (e *Engine) GenerateSync(ctx context.Context) error {
	tips := e.store.Tips()
	var name string
	if e.cfg.PreferV2 {
		name = EncodeTipsV2(e.cfg.McPrefix, tips)
	} else {
		name = EncodeTipsV1(e.cfg.McPrefix, tips)
	}
	return e.tp.Multicast(ctx, name)
}

// OnInterest implements transport.Handler, dispatching on the three
// logical name shapes of spec §6.
func (e *Engine) OnInterest(ctx context.Context, name string) (*record.Record, bool) {
	mc := strings.TrimSuffix(e.cfg.McPrefix, "/")

	if strings.HasPrefix(name, mc+"/NOTIF/") {
		e.handleNotif(name)
		return nil, false
	}
	if IsSyncName(e.cfg.McPrefix, name) {
		e.handleSync(ctx, name)
		return nil, false
	}
	return e.handleRecordRequest(name)
}

// handleNotif reconstructs the advertised record's name from the NOTIF
// interest and fetches it if not already known (spec §4.5, "Response
// to an incoming NOTIF").
func (e *Engine) handleNotif(name string) {
	comps := record.Components(name)
	// {mcTail, "NOTIF", creatorSubPrefix, digest}
	if len(comps) < 4 {
		return
	}
	creatorSubPrefix := comps[len(comps)-2]
	digest := comps[len(comps)-1]
	recordName := strings.TrimSuffix(e.cfg.McPrefix, "/") + "/" + creatorSubPrefix + "/" + digest
	if e.store.Contains(recordName) {
		return
	}
	e.missing.RequestMissing(recordName)
}

// handleSync reacts to a peer's advertised tip set: fetch unknown
// tips, and counter-sync if the local view is strictly ahead of a tip
// the peer already has (spec §4.5, "Response to an incoming SYNC").
func (e *Engine) handleSync(ctx context.Context, name string) {
	tips, err := DecodeTipsV2(e.cfg.McPrefix, name)
	if err != nil {
		tips, err = DecodeTipsV1(e.cfg.McPrefix, name)
	}
	if err != nil {
		return
	}

	aheadOfPeer := false
	for _, tip := range tips {
		entry, ok := e.store.Lookup(tip)
		if !ok {
			e.missing.RequestMissing(tip)
			continue
		}
		if entry.Weight > 1 {
			aheadOfPeer = true
		}
	}
	if aheadOfPeer {
		_ = e.GenerateSync(ctx)
	}
}

// handleRecordRequest answers a plain RECORD request from the store, or
// forwards it as a fetch on miss (spec §4.5, "Response to an incoming
// RECORD request").
func (e *Engine) handleRecordRequest(name string) (*record.Record, bool) {
	if entry, ok := e.store.Lookup(name); ok {
		return entry.Record, true
	}
	e.missing.RequestMissing(name)
	return nil, false
}
