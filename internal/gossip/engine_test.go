package gossip

import (
	"context"
	"testing"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/dledger/dlnode/internal/record"
	"github.com/dledger/dlnode/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	multicast []string
}

func (f *fakeTransport) Fetch(ctx context.Context, name string) (*record.Record, error) {
	return nil, nil
}
func (f *fakeTransport) Multicast(ctx context.Context, name string) error {
	f.multicast = append(f.multicast, name)
	return nil
}
func (f *fakeTransport) SetHandler(h transport.Handler) {}

type recordingRequester struct {
	requested []string
}

func (r *recordingRequester) RequestMissing(name string) {
	r.requested = append(r.requested, name)
}

func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	s, err := ledger.New(nil, 64)
	require.NoError(t, err)
	return s
}

func TestGenerateSyncMulticastsCurrentTipsV1(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SeedGenesis("/dledger", 2))
	tp := &fakeTransport{}
	e := New(s, tp, &recordingRequester{}, Config{McPrefix: "/dledger"})

	require.NoError(t, e.GenerateSync(context.Background()))
	require.Len(t, tp.multicast, 1)
	assert.Equal(t, EncodeTipsV1("/dledger", s.Tips()), tp.multicast[0])
}

func TestOnInterestNotifFetchesUnknownRecord(t *testing.T) {
	s := newStore(t)
	req := &recordingRequester{}
	e := New(s, &fakeTransport{}, req, Config{McPrefix: "/dledger"})

	_, ok := e.OnInterest(context.Background(), "/dledger/NOTIF/node3/deadbeef")
	assert.False(t, ok)
	assert.Equal(t, []string{"/dledger/node3/deadbeef"}, req.requested)
}

func TestOnInterestNotifSkipsKnownRecord(t *testing.T) {
	s := newStore(t)
	rec := &record.Record{Name: "/dledger/node3/deadbeef"}
	_, err := s.Insert(rec)
	require.NoError(t, err)

	req := &recordingRequester{}
	e := New(s, &fakeTransport{}, req, Config{McPrefix: "/dledger"})

	_, ok := e.OnInterest(context.Background(), "/dledger/NOTIF/node3/deadbeef")
	assert.False(t, ok)
	assert.Empty(t, req.requested)
}

func TestOnInterestSyncFetchesUnknownTips(t *testing.T) {
	s := newStore(t)
	req := &recordingRequester{}
	e := New(s, &fakeTransport{}, req, Config{McPrefix: "/dledger"})

	name := EncodeTipsV1("/dledger", []string{"/dledger/node1/aaa"})
	_, ok := e.OnInterest(context.Background(), name)
	assert.False(t, ok)
	assert.Equal(t, []string{"/dledger/node1/aaa"}, req.requested)
}

func TestOnInterestSyncCountersWhenLocallyAhead(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SeedGenesis("/dledger", 1))
	g := s.Tips()[0]
	require.NoError(t, s.MutateEntry(g, func(e *ledger.Entry) { e.Weight = 2 }))

	tp := &fakeTransport{}
	e := New(s, tp, &recordingRequester{}, Config{McPrefix: "/dledger"})

	name := EncodeTipsV1("/dledger", []string{g})
	_, ok := e.OnInterest(context.Background(), name)
	assert.False(t, ok)
	assert.Len(t, tp.multicast, 1, "a tip with weight>1 should trigger a counter-SYNC")
}

func TestOnInterestRecordRequestAnswersFromStore(t *testing.T) {
	s := newStore(t)
	rec := &record.Record{Name: "/dledger/node3/deadbeef"}
	_, err := s.Insert(rec)
	require.NoError(t, err)

	req := &recordingRequester{}
	e := New(s, &fakeTransport{}, req, Config{McPrefix: "/dledger"})

	resp, ok := e.OnInterest(context.Background(), rec.Name)
	assert.True(t, ok)
	assert.Equal(t, rec.Name, resp.Name)
	assert.Empty(t, req.requested)
}

func TestOnInterestRecordRequestForwardsOnMiss(t *testing.T) {
	s := newStore(t)
	req := &recordingRequester{}
	e := New(s, &fakeTransport{}, req, Config{McPrefix: "/dledger"})

	resp, ok := e.OnInterest(context.Background(), "/dledger/node3/unknown")
	assert.False(t, ok)
	assert.Nil(t, resp)
	assert.Equal(t, []string{"/dledger/node3/unknown"}, req.requested)
}
