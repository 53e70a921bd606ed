// Package intake implements the dependency-resolving pipeline: records
// whose parents are not all locally known are held in a pending list
// and a missing-set until their ancestors arrive, then committed.
package intake

import (
	"context"
	"fmt"
	"sync"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/dledger/dlnode/internal/propagator"
	"github.com/dledger/dlnode/internal/record"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the subset of transport.Transport the queue needs to
// back-fill missing parents.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (*record.Record, error)
}

// Params bundles the intake-specific thresholds from spec §6.
type Params struct {
	// ConEntropy bounds how stale a tip a fresh ("tailing") record may
	// reference. Nothing checks it against Propagator.EntropyThreshold;
	// the built-in defaults set it above that threshold (15 against 5).
	ConEntropy int
	// IDManagerPrefix is this fabric's identity-manager node prefix,
	// exempted from the interlock check on its own chained revocations
	// (spec §9, "Open question — interlock vs. revocation").
	IDManagerPrefix string
	Propagator      propagator.Params
}

// Queue is the pending-list/missing-set dependency resolver (spec
// §4.4), grounded on Peer::OnData's m_recordStack/m_missingRecords.
type Queue struct {
	mu sync.Mutex

	store   *ledger.Store
	fetcher Fetcher
	sf      singleflight.Group

	params Params

	pending []*record.Record // newest appended last
	missing map[string]struct{}

	observers []propagator.ArchivalObserver

	// onCommit fires after a record is durably committed to the store,
	// before propagation. Wired to internal/revocation.Manager.OnCommit
	// so a freshly-ingested identity-manager record lands in the
	// blacklist before any later arrival can be checked against it.
	onCommit func(*record.Record) error

	// background dispatches fetches via a goroutine so Receive never
	// awaits a reply inline, per spec §5 ("no handler awaits a reply
	// inline"). Tests can stub this out to run synchronously.
	background func(fn func())
}

// New builds an intake queue bound to store and fetcher.
func New(store *ledger.Store, fetcher Fetcher, params Params, observers ...propagator.ArchivalObserver) *Queue {
	return &Queue{
		store:      store,
		fetcher:    fetcher,
		params:     params,
		missing:    make(map[string]struct{}),
		observers:  observers,
		background: func(fn func()) { go fn() },
	}
}

// SetCommitHook registers fn to run immediately after a record commits
// to the store (and is added as a tip), before propagation. Used to
// wire internal/revocation.Manager.OnCommit without intake needing to
// import the revocation package.
func (q *Queue) SetCommitHook(fn func(*record.Record) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onCommit = fn
}

// Pending reports the number of missing ancestor names the queue is
// still waiting on (the size of the missing-set, not of the pending
// list) — the Generator's "missing records > 0" gate (spec §4.2).
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.missing)
}

// Receive processes one inbound record per the six-step algorithm of
// spec §4.4. It is re-entered (from a background fetch goroutine) when
// a previously-missing parent arrives.
func (q *Queue) Receive(ctx context.Context, r *record.Record) error {
	q.mu.Lock()
	toFetch := q.receiveLocked(ctx, r)
	q.mu.Unlock()

	// Fetches are dispatched after releasing the lock: the background
	// dispatcher may run synchronously (as it does in tests), and its
	// eventual response re-enters via Receive, which must be free to
	// take the lock again.
	for _, name := range toFetch {
		q.dispatchFetch(name)
	}
	return nil
}

func (q *Queue) receiveLocked(ctx context.Context, r *record.Record) (toFetch []string) {
	// Step 1: duplicate.
	if q.store.Contains(r.Name) {
		return nil
	}

	// Step 2: resolve against the missing-set, or treat as tailing.
	_, wasMissing := q.missing[r.Name]
	tailing := !wasMissing
	delete(q.missing, r.Name)

	creatorSub := record.CreatorSubPrefix(r.Name)
	creatorPrefix := record.CreatorPrefix(r.Name)

	// Step 3: blacklist filter.
	if q.store.BlacklistContains(creatorSub) {
		return nil
	}

	// Step 4: append to pending.
	q.pending = append(q.pending, r)

	// Step 5: walk parents.
	parents, _, err := record.Parse(r.Content)
	if err != nil {
		// Malformed content with no sentinel at all has no parents to
		// resolve; leave it pending (it will never drain, matching a
		// genesis-shaped or garbage arrival being inert rather than
		// fatal).
		return nil
	}

	isIDManagerRecord := creatorPrefix == q.params.IDManagerPrefix
	for _, p := range parents {
		if p == "" {
			continue
		}
		parentCreatorPrefix := record.CreatorPrefix(p)

		if parentCreatorPrefix == creatorPrefix && !isIDManagerRecord {
			q.removePendingLocked(r.Name)
			return nil
		}

		if !q.store.Contains(p) {
			if _, alreadyMissing := q.missing[p]; !alreadyMissing {
				q.missing[p] = struct{}{}
				toFetch = append(toFetch, p)
			}
			continue
		}

		if tailing {
			entry, ok := q.store.Lookup(p)
			if ok && entry.Entropy > q.params.ConEntropy {
				q.removePendingLocked(r.Name)
				return nil
			}
		}
	}

	q.drainLocked(ctx)
	return toFetch
}

// dispatchFetch issues a deduped, asynchronous RECORD fetch for a
// missing parent name. The response re-enters via Receive.
func (q *Queue) dispatchFetch(name string) {
	q.background(func() {
		_, _, _ = q.sf.Do(name, func() (interface{}, error) {
			resp, err := q.fetcher.Fetch(context.Background(), name)
			if err != nil || resp == nil {
				return nil, err
			}
			_ = q.Receive(context.Background(), resp)
			return resp, nil
		})
	})
}

// removePendingLocked drops name from the pending list without
// committing it (spec §7, InterlockViolation / StaleTipApproval).
func (q *Queue) removePendingLocked(name string) {
	for i, r := range q.pending {
		if r.Name == name {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// drainLocked repeatedly scans the pending list newest-to-oldest,
// committing any record whose parents are now all present, until a
// full pass makes no progress (spec §4.4 step 6, §9 "Intake queue
// ordering").
func (q *Queue) drainLocked(ctx context.Context) {
	for {
		progressed := false
		for i := len(q.pending) - 1; i >= 0; i-- {
			r := q.pending[i]
			if !q.allParentsPresentLocked(r) {
				continue
			}
			if err := q.commitLocked(r); err != nil {
				// InvariantBreach: a parent vanished between the
				// readiness check and commit. The error is not
				// surfaced; the record stays pending and is retried on
				// the next drain pass.
				continue
			}
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

func (q *Queue) allParentsPresentLocked(r *record.Record) bool {
	parents, _, err := record.Parse(r.Content)
	if err != nil {
		return false
	}
	for _, p := range parents {
		if p == "" {
			continue
		}
		if !q.store.Contains(p) {
			return false
		}
	}
	return true
}

func (q *Queue) commitLocked(r *record.Record) error {
	isNew, err := q.store.Insert(r)
	if err != nil {
		return fmt.Errorf("intake: committing %s: %w", r.Name, err)
	}
	if !isNew {
		return nil
	}
	if err := q.store.AddTip(r.Name); err != nil {
		return err
	}
	parents, _, _ := record.Parse(r.Content)
	for _, p := range parents {
		if p == "" {
			continue
		}
		if err := q.store.RemoveTip(p); err != nil {
			return err
		}
	}
	if q.onCommit != nil {
		if err := q.onCommit(r); err != nil {
			return fmt.Errorf("intake: commit hook for %s: %w", r.Name, err)
		}
	}
	return propagator.Propagate(q.store, r, record.CreatorPrefix(r.Name), q.params.Propagator, q.observers...)
}

// RequestMissing records name in the missing-set (if not already
// there) and dispatches a deduped background fetch for it, whose
// response re-enters via Receive. Used by internal/gossip to react to
// NOTIF advertisements, SYNC tip misses, and forward-on-miss RECORD
// requests without awaiting a reply inline (spec §5).
func (q *Queue) RequestMissing(name string) {
	q.markMissingAndFetch(name)
}

// markMissingAndFetch records name in the missing-set (if not already
// there) and dispatches a deduped background fetch for it.
func (q *Queue) markMissingAndFetch(name string) {
	q.mu.Lock()
	_, already := q.missing[name]
	if !already {
		q.missing[name] = struct{}{}
	}
	q.mu.Unlock()
	if !already {
		q.dispatchFetch(name)
	}
}
