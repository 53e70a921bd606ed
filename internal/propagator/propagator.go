// Package propagator implements the weight/entropy update walk that runs
// over a record's ancestors after it is committed to the ledger.
package propagator

import (
	"errors"
	"fmt"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/dledger/dlnode/internal/record"
)

// ArchivalObserver is notified the instant an entry transitions from
// unarchived to archived. Implementations (metrics, the archival index)
// are passive: they cannot alter propagation, preserving the ordering
// guarantee that weight/entropy updates from one insertion land before
// any subsequent event handler runs.
type ArchivalObserver interface {
	OnArchived(name string, entry *ledger.Entry)
}

// Params bundles the two threshold knobs propagation needs (spec §6,
// entropyThreshold / maxEntropy).
type Params struct {
	EntropyThreshold int
	MaxEntropy       int
}

// Propagate walks the ancestors of tail, crediting approverID (tail's
// creator-prefix) as a new approver of each ancestor reached, updating
// weight/entropy and the archival bit. Grounded line-for-line on
// Peer::UpdateWeightAndEntropy's visited/processedThisNode scheme.
func Propagate(store *ledger.Store, tail *record.Record, approverID string, params Params, observers ...ArchivalObserver) error {
	visited := make(map[string]struct{})
	return visit(store, tail, approverID, params, visited, observers)
}

func visit(store *ledger.Store, cur *record.Record, approverID string, params Params, visited map[string]struct{}, observers []ArchivalObserver) error {
	visited[cur.Name] = struct{}{}

	parents, _, err := record.Parse(cur.Content)
	if err != nil {
		if errors.Is(err, record.ErrMalformedContent) {
			// A genesis record, or any record with no recognizable parent
			// component: nothing further to walk.
			return nil
		}
		return err
	}

	processedThisNode := make(map[string]struct{})
	for _, p := range parents {
		if _, ok := processedThisNode[p]; ok {
			continue
		}
		if _, ok := visited[p]; ok {
			continue
		}

		var crossedMaxEntropy, becameArchived bool
		var updated *ledger.Entry
		err := store.MutateEntry(p, func(e *ledger.Entry) {
			e.Weight++
			e.ApproverNames[approverID] = struct{}{}
			e.Entropy = len(e.ApproverNames)
			if e.Entropy >= params.EntropyThreshold && !e.IsArchived {
				e.IsArchived = true
				becameArchived = true
			}
			crossedMaxEntropy = e.Entropy >= params.MaxEntropy
			updated = e
		})
		if err != nil {
			if errors.Is(err, ledger.ErrInvariantBreach) {
				return fmt.Errorf("propagator: ancestor %s not in store: %w", p, err)
			}
			return err
		}

		if becameArchived {
			for _, obs := range observers {
				obs.OnArchived(p, updated)
			}
		}

		if crossedMaxEntropy {
			// Already strongly archived; its own ancestors are too, so
			// prune this branch (spec §4.3, "Archival cutoff").
			continue
		}

		processedThisNode[p] = struct{}{}
		parentEntry, ok := store.Lookup(p)
		if !ok {
			return fmt.Errorf("propagator: ancestor %s vanished mid-walk: %w", p, ledger.ErrInvariantBreach)
		}
		if err := visit(store, parentEntry.Record, approverID, params, visited, observers); err != nil {
			return err
		}
	}
	return nil
}
