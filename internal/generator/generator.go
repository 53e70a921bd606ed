// Package generator implements periodic record creation: parent
// selection, body composition, signing, commit, and NOTIF advertisement
// (spec §4.2).
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/dledger/dlnode/internal/propagator"
	"github.com/dledger/dlnode/internal/record"
	"github.com/dledger/dlnode/internal/transport"
)

// ErrTipsExhausted is returned when referredNum distinct eligible
// parents cannot be found within the retry budget (spec §7).
var ErrTipsExhausted = errors.New("generator: could not find enough eligible parents")

// PendingChecker reports the intake queue's outstanding missing-parent
// count, gating generation per spec §4.2 ("If the intake queue is
// non-empty... skip generation this tick").
type PendingChecker interface {
	Pending() int
}

// maxParentRetries bounds the total number of rejected draws across an
// entire parent-selection attempt (spec §4.2: "bail out after 10
// exhausted retries").
const maxParentRetries = 10

// Config holds the per-peer generation parameters (spec §6).
type Config struct {
	RoutablePrefix  string
	McPrefix        string
	IDManagerPrefix string
	ReferredNum     int
}

// Generator produces new records on demand from the Tick method, driven
// externally by the scheduler shim.
type Generator struct {
	store   *ledger.Store
	oracle  record.SignOracle
	tp      transport.Transport
	intake  PendingChecker
	cfg     Config
	propage propagator.Params
}

// New builds a Generator.
func New(store *ledger.Store, oracle record.SignOracle, tp transport.Transport, intake PendingChecker, cfg Config, propParams propagator.Params) *Generator {
	return &Generator{store: store, oracle: oracle, tp: tp, intake: intake, cfg: cfg, propage: propParams}
}

// IsIdentityManager reports whether this peer is the fabric's identity
// manager, which does not participate in routine generation (spec
// §4.6).
func (g *Generator) IsIdentityManager() bool {
	return g.cfg.RoutablePrefix == g.cfg.IDManagerPrefix
}

// Tick attempts to produce and advertise one new record. It is a no-op
// (nil, nil) when this peer is the identity manager or the intake queue
// has outstanding missing parents.
func (g *Generator) Tick(ctx context.Context) (*record.Record, error) {
	if g.IsIdentityManager() {
		return nil, nil
	}
	if g.intake != nil && g.intake.Pending() > 0 {
		return nil, nil
	}
	return g.generate(ctx, g.cfg.RoutablePrefix, nil)
}

// Pending reports the intake queue's outstanding missing-parent count,
// or zero if no queue was wired. Exposed so internal/revocation can
// honor the same gate as Tick (spec §4.6, Peer::GenerateRevocation).
func (g *Generator) Pending() int {
	if g.intake == nil {
		return 0
	}
	return g.intake.Pending()
}

// GenerateChained builds, commits, and advertises one record whose
// creator-specific suffix is suffix and whose parent set additionally
// includes mustApprove (deduplicated against the normal random draw),
// bypassing the identity-manager Tick gate. Used by internal/revocation
// to chain each revocation onto the previous one via lastRevocation
// (spec §4.6), grounded on Peer::GenerateRevocation/SelectApprovals's
// revocation branch.
func (g *Generator) GenerateChained(ctx context.Context, suffix, mustApprove string) (*record.Record, error) {
	return g.generate(ctx, suffix, []string{mustApprove})
}

// generate builds, commits, and advertises one record whose
// creator-specific suffix is suffix (the routable prefix for ordinary
// records; a revoked node identifier when called from
// internal/revocation). extraParents are unconditionally included
// alongside the normal random draw.
func (g *Generator) generate(ctx context.Context, suffix string, extraParents []string) (*record.Record, error) {
	parents, err := g.selectParents()
	if err != nil {
		return nil, err
	}
	for _, extra := range extraParents {
		already := false
		for _, p := range parents {
			if p == extra {
				already = true
				break
			}
		}
		if !already {
			parents = append(parents, extra)
		}
	}

	content := record.Build(parents, suffix)
	digest := record.Digest(content)
	name := record.Name(g.cfg.RoutablePrefix, digest)
	rec := &record.Record{Name: name, Content: content, Digest: digest}

	if err := record.Sign(rec, g.oracle); err != nil {
		return nil, fmt.Errorf("generator: signing %s: %w", name, err)
	}

	isNew, err := g.store.Insert(rec)
	if err != nil {
		return nil, err
	}
	if !isNew {
		return nil, fmt.Errorf("generator: digest collision on %s", name)
	}
	if err := g.store.AddTip(name); err != nil {
		return nil, err
	}
	for _, p := range parents {
		if err := g.store.RemoveTip(p); err != nil {
			return nil, err
		}
	}
	if err := propagator.Propagate(g.store, rec, record.CreatorPrefix(name), g.propage); err != nil {
		return nil, err
	}

	if g.tp != nil {
		notifName := record.NotifName(g.cfg.McPrefix, record.CreatorSubPrefix(name), digest)
		if err := g.tp.Multicast(ctx, notifName); err != nil {
			return nil, fmt.Errorf("generator: advertising %s: %w", name, err)
		}
	}
	return rec, nil
}

// selectParents draws g.cfg.ReferredNum distinct tips subject to
// interlock (not this peer's own creator-prefix) and freshness (not
// archived), grounded on Peer::SelectApprovals.
func (g *Generator) selectParents() ([]string, error) {
	tips := g.store.Tips()
	if len(tips) == 0 {
		return nil, ErrTipsExhausted
	}

	chosen := make(map[string]struct{}, g.cfg.ReferredNum)
	result := make([]string, 0, g.cfg.ReferredNum)
	retries := 0

	for len(result) < g.cfg.ReferredNum {
		candidate := tips[rand.Intn(len(tips))]

		if _, picked := chosen[candidate]; picked {
			retries++
		} else if eligible := g.eligibleParent(candidate); !eligible {
			retries++
		} else {
			chosen[candidate] = struct{}{}
			result = append(result, candidate)
			continue
		}

		if retries >= maxParentRetries {
			return nil, ErrTipsExhausted
		}
	}
	return result, nil
}

func (g *Generator) eligibleParent(name string) bool {
	if record.CreatorPrefix(name) == g.cfg.RoutablePrefix {
		return false // interlock
	}
	entry, ok := g.store.Lookup(name)
	if !ok {
		return false
	}
	return !entry.IsArchived // freshness
}
