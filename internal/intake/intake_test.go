package intake

import (
	"context"
	"testing"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/dledger/dlnode/internal/propagator"
	"github.com/dledger/dlnode/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher answers Fetch from a fixed map, synchronously, standing
// in for a network round trip in these tests.
type stubFetcher struct {
	records map[string]*record.Record
}

func (f *stubFetcher) Fetch(ctx context.Context, name string) (*record.Record, error) {
	if r, ok := f.records[name]; ok {
		return r, nil
	}
	return nil, nil
}

func newTestQueue(t *testing.T, fetcher Fetcher) (*ledger.Store, *Queue) {
	t.Helper()
	store, err := ledger.New(nil, 64)
	require.NoError(t, err)
	require.NoError(t, store.SeedGenesis("/dledger", 2))

	q := New(store, fetcher, Params{
		ConEntropy:      1,
		IDManagerPrefix: "/dledger/idmgr",
		Propagator:      propagator.Params{EntropyThreshold: 2, MaxEntropy: 3},
	})
	// Run dispatched fetches synchronously so tests don't need to wait
	// on goroutines.
	q.background = func(fn func()) { fn() }
	return store, q
}

func buildRecord(t *testing.T, parents []string, creatorPrefix string) *record.Record {
	t.Helper()
	content := record.Build(parents, creatorPrefix)
	digest := record.Digest(content)
	return &record.Record{Name: record.Name(creatorPrefix, digest), Content: content, Digest: digest}
}

func TestReceiveCommitsWhenParentsPresent(t *testing.T) {
	store, q := newTestQueue(t, &stubFetcher{})
	tips := store.Tips()

	r := buildRecord(t, tips, "/dledger/node3")
	require.NoError(t, q.Receive(context.Background(), r))

	assert.True(t, store.Contains(r.Name))
	assert.Equal(t, 0, q.Pending())
	assert.Contains(t, store.Tips(), r.Name)
	for _, tip := range tips {
		assert.NotContains(t, store.Tips(), tip)
	}
}

func TestReceiveDuplicateIsDropped(t *testing.T) {
	store, q := newTestQueue(t, &stubFetcher{})
	r := buildRecord(t, store.Tips(), "/dledger/node3")
	require.NoError(t, q.Receive(context.Background(), r))
	require.NoError(t, q.Receive(context.Background(), r))
	assert.True(t, store.Contains(r.Name))
}

func TestReceiveQueuesMissingParentAndDrainsOnArrival(t *testing.T) {
	s, err := ledger.New(nil, 64)
	require.NoError(t, err)
	require.NoError(t, s.SeedGenesis("/dledger", 1))
	g := s.Tips()[0]

	y := buildRecord(t, []string{g}, "/dledger/node2")
	x := buildRecord(t, []string{y.Name}, "/dledger/node3")

	fetcher := &stubFetcher{records: map[string]*record.Record{y.Name: y}}
	q := New(s, fetcher, Params{
		ConEntropy:      1,
		IDManagerPrefix: "/dledger/idmgr",
		Propagator:      propagator.Params{EntropyThreshold: 2, MaxEntropy: 3},
	})
	q.background = func(fn func()) { fn() }

	require.NoError(t, q.Receive(context.Background(), x))

	assert.True(t, s.Contains(y.Name))
	assert.True(t, s.Contains(x.Name))
	assert.Equal(t, 0, q.Pending())
	assert.NotContains(t, s.Tips(), y.Name)
	assert.Contains(t, s.Tips(), x.Name)
}

func TestReceiveDropsInterlockViolation(t *testing.T) {
	s, err := ledger.New(nil, 64)
	require.NoError(t, err)
	require.NoError(t, s.SeedGenesis("/dledger", 1))
	g := s.Tips()[0]

	// node3 approves its own earlier record: y and x share creator node3.
	y := buildRecord(t, []string{g}, "/dledger/node3")
	_, err = s.Insert(y)
	require.NoError(t, err)
	require.NoError(t, s.AddTip(y.Name))

	x := buildRecord(t, []string{y.Name}, "/dledger/node3")

	q := New(s, &stubFetcher{}, Params{
		ConEntropy:      1,
		IDManagerPrefix: "/dledger/idmgr",
		Propagator:      propagator.Params{EntropyThreshold: 2, MaxEntropy: 3},
	})
	q.background = func(fn func()) { fn() }

	require.NoError(t, q.Receive(context.Background(), x))
	assert.False(t, s.Contains(x.Name))
}

func TestReceiveDropsBlacklistedCreator(t *testing.T) {
	s, err := ledger.New(nil, 64)
	require.NoError(t, err)
	require.NoError(t, s.SeedGenesis("/dledger", 1))
	require.NoError(t, s.Blacklist("node9"))

	r := buildRecord(t, s.Tips(), "/dledger/node9")
	q := New(s, &stubFetcher{}, Params{
		ConEntropy:      1,
		IDManagerPrefix: "/dledger/idmgr",
		Propagator:      propagator.Params{EntropyThreshold: 2, MaxEntropy: 3},
	})
	q.background = func(fn func()) { fn() }

	require.NoError(t, q.Receive(context.Background(), r))
	assert.False(t, s.Contains(r.Name))
}

func TestReceiveDropsStaleTailingApproval(t *testing.T) {
	s, err := ledger.New(nil, 64)
	require.NoError(t, err)
	require.NoError(t, s.SeedGenesis("/dledger", 1))
	g := s.Tips()[0]

	// Push g's entropy above conEntropy via two approvals.
	a := buildRecord(t, []string{g}, "/dledger/nodeA")
	require.NoError(t, propagateCommit(t, s, a))
	b := buildRecord(t, []string{g}, "/dledger/nodeB")
	require.NoError(t, propagateCommit(t, s, b))

	// g now has entropy 2 > conEntropy (1); a fresh tailing record may
	// not approve it.
	stale := buildRecord(t, []string{g}, "/dledger/nodeC")
	q := New(s, &stubFetcher{}, Params{
		ConEntropy:      1,
		IDManagerPrefix: "/dledger/idmgr",
		Propagator:      propagator.Params{EntropyThreshold: 2, MaxEntropy: 3},
	})
	q.background = func(fn func()) { fn() }

	require.NoError(t, q.Receive(context.Background(), stale))
	assert.False(t, s.Contains(stale.Name))
}

func propagateCommit(t *testing.T, s *ledger.Store, r *record.Record) error {
	t.Helper()
	isNew, err := s.Insert(r)
	require.NoError(t, err)
	if !isNew {
		return nil
	}
	if err := s.AddTip(r.Name); err != nil {
		return err
	}
	parents, _, _ := record.Parse(r.Content)
	for _, p := range parents {
		if err := s.RemoveTip(p); err != nil {
			return err
		}
	}
	return propagator.Propagate(s, r, record.CreatorPrefix(r.Name), propagator.Params{EntropyThreshold: 2, MaxEntropy: 3})
}
