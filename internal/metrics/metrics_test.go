package metrics

import (
	"testing"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPending struct{ n int }

func (f fixedPending) Pending() int { return f.n }

func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	s, err := ledger.New(nil, 16)
	require.NoError(t, err)
	require.NoError(t, s.SeedGenesis("/dledger", 3))
	return s
}

func TestSampleReflectsStoreAndIntakeState(t *testing.T) {
	store := newStore(t)
	c := New()

	c.Sample(store, fixedPending{n: 2})

	assert.Equal(t, float64(3), testutil.ToFloat64(c.storeSize))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.tipSetSize))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.archivedTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.intakePending))
}

func TestOnArchivedIncrementsCounter(t *testing.T) {
	c := New()
	c.OnArchived("/dledger/node1/deadbeef", &ledger.Entry{})
	c.OnArchived("/dledger/node2/cafef00d", &ledger.Entry{})

	assert.Equal(t, float64(2), testutil.ToFloat64(c.recordsArchived))
}

func TestListenAndServeExposesMetricsEndpoint(t *testing.T) {
	c := New()
	require.NoError(t, c.ListenAndServe("127.0.0.1:0"))
	defer c.Close()
}

func TestSampleWithNilIntakeLeavesPendingGaugeUntouched(t *testing.T) {
	store := newStore(t)
	c := New()
	c.Sample(store, nil)
	assert.Equal(t, float64(0), testutil.ToFloat64(c.intakePending))
}
