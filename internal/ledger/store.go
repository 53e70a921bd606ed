package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dledger/dlnode/internal/record"
	"github.com/dledger/dlnode/internal/storage/database"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvariantBreach signals a corrupted store: the propagator expected
// an in-store parent and didn't find one. It is returned as an ordinary
// error; nothing in the core panics or halts on it.
var ErrInvariantBreach = errors.New("ledger: invariant breach, expected parent not in store")

// Store is the local DAG: committed entries plus the ordered tip set.
// All mutation goes through its exported methods, which hold mu for the
// duration of the mutation; propagation and intake never hold a pointer
// to an Entry across a lock release.
type Store struct {
	mu sync.RWMutex

	entries map[string]*Entry
	tips    []string
	tipSet  map[string]struct{}

	blacklist map[string]struct{}

	hot *lru.Cache[string, *Entry]
	db  database.DB // optional durable backing; nil means memory-only
}

// New builds a Store. db may be nil (memory-only, e.g. for tests); when
// non-nil, committed entries are mirrored to it and rehydrated from it
// at startup so a restart does not lose the DAG (supplementing the
// always-reseed-from-scratch behavior of the original simulation, which
// never needed to survive a restart).
func New(db database.DB, hotCacheSize int) (*Store, error) {
	if hotCacheSize <= 0 {
		hotCacheSize = 4096
	}
	cache, err := lru.New[string, *Entry](hotCacheSize)
	if err != nil {
		return nil, fmt.Errorf("ledger: building hot cache: %w", err)
	}
	s := &Store{
		entries:   make(map[string]*Entry),
		tipSet:    make(map[string]struct{}),
		blacklist: make(map[string]struct{}),
		hot:       cache,
		db:        db,
	}
	if db != nil {
		if err := s.rehydrate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) rehydrate() error {
	ctx := context.Background()
	it, err := s.db.Iterator(ctx, entryKeyPrefix, entryKeyUpperBound)
	if err != nil {
		return fmt.Errorf("ledger: opening rehydration iterator: %w", err)
	}
	defer it.Close()

	for it.Next() {
		e, err := decodeEntry(it.Value())
		if err != nil {
			return fmt.Errorf("ledger: decoding persisted entry %q: %w", it.Key(), err)
		}
		s.entries[e.Record.Name] = e
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("ledger: rehydration scan: %w", err)
	}

	tips, err := s.loadTips(ctx)
	if err != nil {
		return err
	}
	s.tips = tips
	s.tipSet = make(map[string]struct{}, len(tips))
	for _, t := range tips {
		s.tipSet[t] = struct{}{}
	}

	blacklist, err := s.loadBlacklist(ctx)
	if err != nil {
		return err
	}
	s.blacklist = blacklist
	return nil
}

// HasGenesis reports whether genesis records are already present, so
// startup seeding can be skipped idempotently on restart.
func (s *Store) HasGenesis(mcPrefix string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[record.GenesisName(mcPrefix, 0)]
	return ok
}

// SeedGenesis inserts genesisNum genesis records under mcPrefix, all
// into the store and the tip set with default aggregates (spec §4.1).
// No-op if genesis is already present (restart idempotence).
func (s *Store) SeedGenesis(mcPrefix string, genesisNum int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[record.GenesisName(mcPrefix, 0)]; ok {
		return nil
	}

	now := time.Now()
	for i := 0; i < genesisNum; i++ {
		name := record.GenesisName(mcPrefix, i)
		rec := &record.Record{Name: name}
		e := newEntry(rec, now)
		s.entries[name] = e
		s.addTipLocked(name)
		if err := s.persistEntryLocked(e); err != nil {
			return err
		}
	}
	return s.persistTipsLocked()
}

// Insert commits rec as a fresh entry (weight=1, entropy=0) if its name
// is not already present. isNew is false on name collision (the
// DuplicateRecord case of spec §7), which is not an error.
func (s *Store) Insert(rec *record.Record) (isNew bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(rec)
}

func (s *Store) insertLocked(rec *record.Record) (bool, error) {
	if _, exists := s.entries[rec.Name]; exists {
		return false, nil
	}
	e := newEntry(rec, time.Now())
	s.entries[rec.Name] = e
	s.hot.Add(rec.Name, e)
	if err := s.persistEntryLocked(e); err != nil {
		return false, err
	}
	return true, nil
}

// Lookup returns a snapshot copy of the named entry.
func (s *Store) Lookup(name string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, false
	}
	return e.clone(), true
}

// Contains reports presence without copying.
func (s *Store) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[name]
	return ok
}

// Size returns the number of committed entries in the store.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ArchivedCount returns the number of entries whose IsArchived bit is
// currently set.
func (s *Store) ArchivedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.IsArchived {
			n++
		}
	}
	return n
}

// Names returns the set of every committed entry's record name, keyed
// for convergence comparisons between peers (spec §8, testable property
// 7): two stores have converged iff their Names sets are equal.
func (s *Store) Names() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.entries))
	for name := range s.entries {
		out[name] = struct{}{}
	}
	return out
}

// Tips returns the current tip set in insertion order.
func (s *Store) Tips() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.tips))
	copy(out, s.tips)
	return out
}

// AddTip adds name to the tip set if not already present.
func (s *Store) AddTip(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addTipLocked(name)
	return s.persistTipsLocked()
}

// RemoveTip removes name from the tip set (a no-op if absent).
func (s *Store) RemoveTip(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tipSet[name]; !ok {
		return nil
	}
	delete(s.tipSet, name)
	filtered := s.tips[:0:0]
	for _, t := range s.tips {
		if t != name {
			filtered = append(filtered, t)
		}
	}
	s.tips = filtered
	return s.persistTipsLocked()
}

func (s *Store) addTipLocked(name string) {
	if _, ok := s.tipSet[name]; ok {
		return
	}
	s.tipSet[name] = struct{}{}
	s.tips = append(s.tips, name)
}

// MutateEntry applies fn to the named entry under the store lock and
// persists the result. Used by the propagator to update
// weight/entropy/approvers/isArchived as one atomic step (spec §5:
// "weight and entropy updates from that insertion are applied before
// any subsequent event handler runs"). Returns ErrInvariantBreach if
// name is not in the store.
func (s *Store) MutateEntry(name string, fn func(*Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvariantBreach, name)
	}
	fn(e)
	s.hot.Add(name, e)
	return s.persistEntryLocked(e)
}

// BlacklistContains reports whether nodeID is blacklisted.
func (s *Store) BlacklistContains(nodeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blacklist[nodeID]
	return ok
}

// Blacklist adds nodeID to the blacklist (spec §4.6, on commit of a
// revocation record).
func (s *Store) Blacklist(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[nodeID] = struct{}{}
	return s.persistBlacklistLocked()
}
