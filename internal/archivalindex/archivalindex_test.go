package archivalindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/dledger/dlnode/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archival.sqlite")
	idx, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestOnArchivedThenByCreatorReturnsRecord(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	entry := &ledger.Entry{
		Record:  &record.Record{Name: "/dledger/node3/deadbeef"},
		Entropy: 6,
	}
	idx.OnArchived(entry.Record.Name, entry)

	rows, err := idx.ByCreator(ctx, "/dledger/node3")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/dledger/node3/deadbeef", rows[0].Name)
	assert.Equal(t, 6, rows[0].Entropy)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOnArchivedIsIdempotentPerName(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	entry := &ledger.Entry{Record: &record.Record{Name: "/dledger/node3/deadbeef"}, Entropy: 6}
	idx.OnArchived(entry.Record.Name, entry)
	idx.OnArchived(entry.Record.Name, entry)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-archival notification for the same name must not duplicate a row")
}

func TestByCreatorReturnsEmptyForUnknownCreator(t *testing.T) {
	idx := openTestIndex(t)
	rows, err := idx.ByCreator(context.Background(), "/dledger/nobody")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
