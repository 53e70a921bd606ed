// Package ledger holds the local DAG store: committed records plus the
// mutable weight/entropy/approver aggregates the propagator maintains on
// top of them, and the ordered tip set.
package ledger

import (
	"time"

	"github.com/dledger/dlnode/internal/record"
)

// Entry is the mutable envelope the store keeps per committed record
// (spec §3, "Ledger entry").
type Entry struct {
	Record *record.Record

	// Weight counts distinct descendant-approval events credited to this
	// entry during propagation, deduplicated per insertion by the
	// propagator's visited-set.
	Weight int

	// ApproverNames is the set of distinct creator-prefixes that have
	// approved this entry, directly or indirectly.
	ApproverNames map[string]struct{}

	// Entropy is len(ApproverNames), kept in sync by the propagator.
	Entropy int

	// IsArchived is the confirmation bit. Monotonic: never cleared.
	IsArchived bool

	// CreationTime is set when the entry is first committed; used only
	// for metrics, never for protocol logic.
	CreationTime time.Time
}

// newEntry builds a freshly-committed entry: weight=1, entropy=0, per
// spec §4.1/§4.2 ("Commit").
func newEntry(rec *record.Record, at time.Time) *Entry {
	return &Entry{
		Record:        rec,
		Weight:        1,
		ApproverNames: make(map[string]struct{}),
		CreationTime:  at,
	}
}

// clone returns a deep-enough copy for safe handoff outside the store's
// lock (the propagator and callers elsewhere mutate Entry in place under
// the store's RWMutex, but snapshots returned to e.g. metrics or tests
// must not alias the live approver set).
func (e *Entry) clone() *Entry {
	cp := &Entry{
		Record:       e.Record,
		Weight:       e.Weight,
		Entropy:      e.Entropy,
		IsArchived:   e.IsArchived,
		CreationTime: e.CreationTime,
	}
	cp.ApproverNames = make(map[string]struct{}, len(e.ApproverNames))
	for k := range e.ApproverNames {
		cp.ApproverNames[k] = struct{}{}
	}
	return cp
}
