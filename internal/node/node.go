// Package node wires every component into one running peer and drives
// the cooperative scheduler loop that replaces ndnSIM's event scheduler
// (spec §5). Grounded on ndn-peer.cpp's Peer class as a whole:
// StartApplication seeds genesis and schedules the first generation and
// sync ticks, and the two recurring callbacks (GenerateSync,
// ScheduleNextGeneration) become the two timers this package drives.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dledger/dlnode/internal/adminrpc"
	"github.com/dledger/dlnode/internal/archivalindex"
	"github.com/dledger/dlnode/internal/config"
	"github.com/dledger/dlnode/internal/dlcrypto"
	"github.com/dledger/dlnode/internal/generator"
	"github.com/dledger/dlnode/internal/gossip"
	"github.com/dledger/dlnode/internal/intake"
	"github.com/dledger/dlnode/internal/ledger"
	"github.com/dledger/dlnode/internal/metrics"
	"github.com/dledger/dlnode/internal/propagator"
	"github.com/dledger/dlnode/internal/record"
	"github.com/dledger/dlnode/internal/revocation"
	"github.com/dledger/dlnode/internal/storage/database/pebble"
	"github.com/dledger/dlnode/internal/transport"
	"github.com/dledger/dlnode/internal/transport/grpcsubstrate"
)

// Node owns every long-lived component of a single DLedger peer and the
// two scheduler goroutines that drive generation and sync ticks.
type Node struct {
	cfg *config.Config
	log *slog.Logger

	store    *ledger.Store
	identity *dlcrypto.Identity
	oracle   *dlcrypto.Oracle

	intake     *intake.Queue
	generator  *generator.Generator
	gossip     *gossip.Engine
	revocation *revocation.Manager

	transport transport.Transport
	admin     *adminrpc.Server
	metrics   *metrics.Collector
	archival  *archivalindex.Index

	pebbleMgr *pebble.Manager

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds every component and wires their dependencies together, but
// starts nothing: call Run to begin serving and ticking. identitySeed is
// the deterministic key-derivation seed for this peer (spec has no
// notion of key provisioning of its own; supplying a seed is the
// ambient concern internal/dlcrypto exists to cover). The peer's
// transport is a real grpcsubstrate.Substrate dialing cfg.Transport.Peers;
// use newWithTransport directly (package-internal, exercised by
// internal/node's own tests) to run a peer over an in-process
// transport.memsubstrate.Network instead.
func New(cfg *config.Config, identitySeed []byte, log *slog.Logger) (*Node, error) {
	tp := grpcsubstrate.NewSubstrate(cfg.Transport.Peers)
	return newWithTransport(cfg, identitySeed, tp, log)
}

// newWithTransport builds a Node bound to an already-constructed
// transport.Transport. New uses it with a fresh grpcsubstrate.Substrate;
// tests use it with a transport/memsubstrate.Substrate so that multiple
// Nodes can be wired onto one shared in-process network and exercise the
// real SYNC/NOTIF/RECORD gossip path end to end (spec §8, property 7 —
// convergence).
func newWithTransport(cfg *config.Config, identitySeed []byte, tp transport.Transport, log *slog.Logger) (*Node, error) {
	if log == nil {
		log = slog.Default()
	}

	identity, err := dlcrypto.GenerateIdentity(identitySeed)
	if err != nil {
		return nil, fmt.Errorf("node: deriving identity: %w", err)
	}
	oracle := dlcrypto.NewOracle(identity)

	store, pebbleMgr, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	if !store.HasGenesis(cfg.McPrefix) {
		if err := store.SeedGenesis(cfg.McPrefix, cfg.GenesisNum); err != nil {
			return nil, fmt.Errorf("node: seeding genesis: %w", err)
		}
	}

	archival, err := archivalindex.Open(context.Background(), cfg.Storage.ArchivalIndexPath)
	if err != nil {
		return nil, fmt.Errorf("node: opening archival index: %w", err)
	}

	collector := metrics.New()

	propParams := propagator.Params{
		EntropyThreshold: cfg.EntropyThreshold,
		MaxEntropy:       cfg.MaxEntropy,
	}

	intakeQueue := intake.New(store, tp, intake.Params{
		ConEntropy:      cfg.ConEntropy,
		IDManagerPrefix: cfg.IDManagerPrefix,
		Propagator:      propParams,
	}, collector, archival)

	gen := generator.New(store, oracle, tp, intakeQueue, generator.Config{
		RoutablePrefix:  cfg.RoutablePrefix,
		McPrefix:        cfg.McPrefix,
		IDManagerPrefix: cfg.IDManagerPrefix,
		ReferredNum:     cfg.ReferredNum,
	}, propParams)

	revocationMgr := revocation.New(store, gen, cfg.IDManagerPrefix, cfg.McPrefix)

	gossipEngine := gossip.New(store, tp, intakeQueue, gossip.Config{
		McPrefix: cfg.McPrefix,
		PreferV2: cfg.Transport.PreferV2,
	})

	admin := adminrpc.New(revocationMgr, log.With("component", "adminrpc"))

	n := &Node{
		cfg:        cfg,
		log:        log,
		store:      store,
		identity:   identity,
		oracle:     oracle,
		intake:     intakeQueue,
		generator:  gen,
		gossip:     gossipEngine,
		revocation: revocationMgr,
		transport:  tp,
		admin:      admin,
		metrics:    collector,
		archival:   archival,
		pebbleMgr:  pebbleMgr,
	}

	// A revocation ingested from the network must both update the local
	// blacklist (revocation.Manager.OnCommit) and push the
	// blacklist_update notification an operator's admin client is
	// subscribed to; a locally-generated revocation already does the
	// latter from within adminrpc's own handleRevoke, so this hook only
	// needs to cover the ingest path.
	intakeQueue.SetCommitHook(func(r *record.Record) error {
		if err := revocationMgr.OnCommit(r); err != nil {
			return err
		}
		if record.CreatorPrefix(r.Name) == cfg.IDManagerPrefix {
			if _, suffix, perr := record.Parse(r.Content); perr == nil && suffix != "" {
				admin.BroadcastBlacklisted(suffix)
			}
		}
		return nil
	})

	tp.SetHandler(transport.HandlerFunc(func(ctx context.Context, name string) (*record.Record, bool) {
		return n.onInterest(ctx, name)
	}))

	return n, nil
}

func openStore(cfg *config.Config) (*ledger.Store, *pebble.Manager, error) {
	if cfg.Storage.LedgerPath == "" {
		store, err := ledger.New(nil, cfg.Storage.HotCacheSize)
		return store, nil, err
	}

	mgr := pebble.NewManager(filepath.Dir(cfg.Storage.LedgerPath))
	db, err := mgr.OpenDB(filepath.Base(cfg.Storage.LedgerPath))
	if err != nil {
		return nil, nil, fmt.Errorf("node: opening ledger store: %w", err)
	}
	store, err := ledger.New(db, cfg.Storage.HotCacheSize)
	if err != nil {
		mgr.Close()
		return nil, nil, err
	}
	return store, mgr, nil
}

// onInterest is the one inbound-interest entry point registered with
// the transport, dispatching to gossip's SYNC/NOTIF/RECORD handling and
// feeding any RECORD delivery it is not itself answering into intake
// (spec §4.4/§4.5: the gossip engine answers RECORD requests from the
// store directly; records that arrive as fetch responses re-enter
// through Fetcher, not through this path).
func (n *Node) onInterest(ctx context.Context, name string) (*record.Record, bool) {
	return n.gossip.OnInterest(ctx, name)
}

// Revoker exposes the revocation manager that internal/adminrpc's
// revoke command drives, so tests can trigger a revocation directly.
func (n *Node) Revoker() *revocation.Manager { return n.revocation }

// Store exposes the ledger store for read-only inspection (tests).
func (n *Node) Store() *ledger.Store { return n.store }

// Generator exposes the record generator for tests.
func (n *Node) Generator() *generator.Generator { return n.generator }

// Intake exposes the intake queue for tests.
func (n *Node) Intake() *intake.Queue { return n.intake }

// Run starts the listening surfaces (transport, admin, metrics) and the
// two scheduler loops, blocking until ctx is cancelled. It is the
// Go-native replacement for ndnSIM's simulated event scheduler:
// StartApplication's ScheduleNextGeneration/ScheduleNextSync become two
// independent goroutines, each sleeping for a jittered interval drawn
// per spec §6's randomize/syncRandomize distributions.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})
	defer close(n.done)

	if n.cfg.Transport.ListenAddr != "" {
		if s, ok := n.transport.(*grpcsubstrate.Substrate); ok {
			if err := s.Listen(n.cfg.Transport.ListenAddr); err != nil {
				return fmt.Errorf("node: starting transport listener: %w", err)
			}
			defer s.Close()
		}
	}

	if n.cfg.Metrics.ListenAddr != "" {
		if err := n.metrics.ListenAndServe(n.cfg.Metrics.ListenAddr); err != nil {
			return fmt.Errorf("node: starting metrics listener: %w", err)
		}
		defer n.metrics.Close()
	}

	if n.cfg.Admin.ListenAddr != "" {
		if err := n.admin.ListenAndServe(n.cfg.Admin.ListenAddr); err != nil {
			return fmt.Errorf("node: starting admin listener: %w", err)
		}
		defer n.admin.Close()
	}

	if !n.generator.IsIdentityManager() {
		go n.runGenerationLoop(ctx)
	}
	go n.runSyncLoop(ctx)
	go n.runMetricsSampler(ctx)

	<-ctx.Done()
	if n.pebbleMgr != nil {
		n.pebbleMgr.Close()
	}
	if n.archival != nil {
		n.archival.Close()
	}
	return ctx.Err()
}

// Close cancels the run loop started by Run, if any.
func (n *Node) Close() {
	if n.cancel != nil {
		n.cancel()
	}
}

func (n *Node) runGenerationLoop(ctx context.Context) {
	jitter := generator.Jitter(n.cfg.Randomize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter.NextInterval(n.cfg.Frequency)):
		}
		rec, err := n.generator.Tick(ctx)
		if err != nil {
			n.log.Error("generation tick failed", "error", err)
			continue
		}
		if rec != nil {
			n.log.Debug("generated record", "name", rec.Name)
		}
	}
}

func (n *Node) runSyncLoop(ctx context.Context) {
	jitter := generator.Jitter(n.cfg.SyncRandomize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter.NextInterval(n.cfg.SyncFrequency)):
		}
		if err := n.gossip.GenerateSync(ctx); err != nil {
			n.log.Error("sync tick failed", "error", err)
		}
	}
}

// runMetricsSampler periodically refreshes the gauge snapshot; it is an
// ambient concern with no counterpart in spec §5's event model, so it
// runs on its own fixed ticker rather than the jittered protocol timers.
func (n *Node) runMetricsSampler(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.metrics.Sample(n.store, n.intake)
		}
	}
}
