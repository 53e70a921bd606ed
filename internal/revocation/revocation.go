// Package revocation implements the identity-manager-only revocation
// path: chained revocation-record generation and blacklist maintenance
// on ingest of a revocation record (spec §4.6).
package revocation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/dledger/dlnode/internal/record"
)

// ErrNotIdentityManager is returned when Generate is invoked on a peer
// that is not this fabric's identity manager.
var ErrNotIdentityManager = errors.New("revocation: this peer is not the identity manager")

// ErrPending is returned when the intake queue still has outstanding
// missing parents, mirroring the Generator's own Tick gate
// (Peer::GenerateRevocation's m_missingRecords check).
var ErrPending = errors.New("revocation: intake queue has missing records")

// Chainer is the subset of internal/generator.Generator the manager
// needs: build, sign, commit, and advertise one record whose parent set
// includes mustApprove.
type Chainer interface {
	GenerateChained(ctx context.Context, suffix, mustApprove string) (*record.Record, error)
	Pending() int
}

// Manager drives the identity manager's revocation-trigger path. It is
// the only component that ever calls Chainer.GenerateChained.
type Manager struct {
	mu sync.Mutex

	store           *ledger.Store
	gen             Chainer
	idManagerPrefix string
	mcPrefix        string

	lastRevocation string
}

// New builds a revocation Manager. lastRevocation is seeded to the
// fabric's first genesis record per spec §4.6 ("initialized to
// {mcPrefix}/genesis/genesis0").
func New(store *ledger.Store, gen Chainer, idManagerPrefix, mcPrefix string) *Manager {
	return &Manager{
		store:           store,
		gen:             gen,
		idManagerPrefix: idManagerPrefix,
		mcPrefix:        mcPrefix,
		lastRevocation:  record.GenesisName(mcPrefix, 0),
	}
}

// Generate produces, commits, and advertises a revocation record
// against revokedNodeID, chained onto the previous revocation
// (grounded on Peer::GenerateRevocation). Intended to be called from
// internal/adminrpc in response to an operator request; never called
// automatically from the scheduler shim, since the identity manager
// does not participate in routine generation.
func (m *Manager) Generate(ctx context.Context, revokedNodeID string) (*record.Record, error) {
	if im, ok := m.gen.(interface{ IsIdentityManager() bool }); ok && !im.IsIdentityManager() {
		return nil, ErrNotIdentityManager
	}
	if m.gen.Pending() > 0 {
		return nil, ErrPending
	}

	m.mu.Lock()
	prev := m.lastRevocation
	m.mu.Unlock()

	rec, err := m.gen.GenerateChained(ctx, revokedNodeID, prev)
	if err != nil {
		return nil, fmt.Errorf("revocation: generating against %s: %w", revokedNodeID, err)
	}

	// The identity manager's own commit never passes through
	// intake.Queue's OnCommit hook (it is generated locally, not
	// ingested), so the local blacklist is updated here directly.
	if err := m.store.Blacklist(revokedNodeID); err != nil {
		return nil, fmt.Errorf("revocation: blacklisting %s: %w", revokedNodeID, err)
	}

	m.mu.Lock()
	m.lastRevocation = rec.Name
	m.mu.Unlock()
	return rec, nil
}

// OnCommit inspects a freshly committed record and, if its creator
// prefix is the identity manager's, extracts the revoked identifier
// (the content's suffix) and adds it to the store's blacklist (spec
// §4.6: "the receiving peer parses its content, extracts the revoked
// identifier, and adds it to the local blacklist"). Wired as the
// ledger-commit hook alongside internal/intake's own commit path.
func (m *Manager) OnCommit(r *record.Record) error {
	if record.CreatorPrefix(r.Name) != m.idManagerPrefix {
		return nil
	}
	_, suffix, err := record.Parse(r.Content)
	if err != nil {
		return nil
	}
	if suffix == "" {
		return nil
	}
	return m.store.Blacklist(suffix)
}
