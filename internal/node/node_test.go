package node

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dledger/dlnode/internal/config"
	"github.com/dledger/dlnode/internal/transport/memsubstrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, routablePrefix, idManagerPrefix string) *config.Config {
	t.Helper()
	cfg, err := config.LoadDefaults()
	require.NoError(t, err)
	cfg.RoutablePrefix = routablePrefix
	cfg.IDManagerPrefix = idManagerPrefix
	cfg.GenesisNum = 3
	cfg.ReferredNum = 2
	cfg.EntropyThreshold = 2
	cfg.ConEntropy = 1
	cfg.MaxEntropy = 3
	cfg.Storage.LedgerPath = filepath.Join(t.TempDir(), "ledger")
	cfg.Storage.ArchivalIndexPath = filepath.Join(t.TempDir(), "archival.sqlite")
	cfg.Storage.HotCacheSize = 64
	cfg.Transport.ListenAddr = ""
	cfg.Admin.ListenAddr = ""
	cfg.Metrics.ListenAddr = ""
	return cfg
}

func TestNewSeedsGenesisAndWiresNonManagerPeer(t *testing.T) {
	cfg := testConfig(t, "/dledger/node1", "/dledger/idmgr")
	n, err := New(cfg, []byte("node1-seed-material-32-bytes!!!"), nil)
	require.NoError(t, err)

	assert.True(t, n.Store().HasGenesis(cfg.McPrefix))
	assert.False(t, n.Generator().IsIdentityManager())
	assert.Equal(t, 3, n.Store().Size())
}

func TestNewIdentityManagerGeneratorIsFlaggedAndSkipsGeneration(t *testing.T) {
	cfg := testConfig(t, "/dledger/idmgr", "/dledger/idmgr")
	n, err := New(cfg, []byte("idmgr-seed-material-32-bytes!!!!"), nil)
	require.NoError(t, err)

	assert.True(t, n.Generator().IsIdentityManager())

	rec, err := n.Generator().Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

// TestIngestedRevocationBlacklistsRevokedNode drives the path
// internal/node wires but neither internal/intake nor
// internal/revocation can exercise alone: a revocation minted by the
// identity manager's own Revoker, fed into a second peer's intake
// queue, must be committed there and blacklist the revoked node
// locally (via revocation.Manager.OnCommit). The admin notification the
// same commit hook sends is not observed here.
func TestIngestedRevocationBlacklistsRevokedNode(t *testing.T) {
	mgrCfg := testConfig(t, "/dledger/idmgr", "/dledger/idmgr")
	mgr, err := New(mgrCfg, []byte("idmgr-seed-material-32-bytes!!!!"), nil)
	require.NoError(t, err)

	peerCfg := testConfig(t, "/dledger/node1", "/dledger/idmgr")
	peer, err := New(peerCfg, []byte("node1-seed-material-32-bytes!!!"), nil)
	require.NoError(t, err)

	rec, err := mgr.Revoker().Generate(context.Background(), "node2")
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.NoError(t, peer.Intake().Receive(context.Background(), rec))
	assert.True(t, peer.Store().BlacklistContains("node2"))
	assert.True(t, peer.Store().Contains(rec.Name))
}

// TestTwoPeersConvergeOverSharedTransport drives the real SYNC/NOTIF/
// RECORD gossip path end to end over an in-process
// transport/memsubstrate.Network, covering the convergence property of
// spec §8 scenario S7: two fully-connected peers exchanging records
// over bounded SYNCs end up with the same set of record names. Each
// side's generated record reaches the other purely through
// gossip.Engine/intake.Queue/transport plumbing, never by calling
// Intake().Receive directly.
func TestTwoPeersConvergeOverSharedTransport(t *testing.T) {
	net := memsubstrate.NewNetwork()

	cfgA := testConfig(t, "/dledger/node1", "/dledger/idmgr")
	cfgB := testConfig(t, "/dledger/node2", "/dledger/idmgr")
	require.Equal(t, cfgA.McPrefix, cfgB.McPrefix, "peers must share a multicast prefix to reach each other")

	tpA := net.Join(cfgA.McPrefix)
	tpB := net.Join(cfgB.McPrefix)

	nodeA, err := newWithTransport(cfgA, []byte("node1-seed-material-32-bytes!!!"), tpA, nil)
	require.NoError(t, err)
	nodeB, err := newWithTransport(cfgB, []byte("node2-seed-material-32-bytes!!!"), tpB, nil)
	require.NoError(t, err)

	ctx := context.Background()

	recA, err := nodeA.Generator().Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, recA)

	require.Eventually(t, func() bool {
		return nodeB.Store().Contains(recA.Name)
	}, 2*time.Second, 10*time.Millisecond, "node B never received node A's record over the shared transport")

	recB, err := nodeB.Generator().Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, recB)

	require.Eventually(t, func() bool {
		return nodeA.Store().Contains(recB.Name)
	}, 2*time.Second, 10*time.Millisecond, "node A never received node B's record over the shared transport")

	assert.Equal(t, nodeA.Store().Names(), nodeB.Store().Names())
}

func TestRunStopsCleanlyOnContextCancel(t *testing.T) {
	cfg := testConfig(t, "/dledger/node1", "/dledger/idmgr")
	n, err := New(cfg, []byte("node1-seed-material-32-bytes!!!"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- n.Run(ctx) }()

	cancel()
	err = <-errCh
	assert.ErrorIs(t, err, context.Canceled)
}
