// Package metrics exposes Prometheus gauges/counters for store size,
// tip-set size, archived-record count, and intake-pending count. Carried
// as an ambient observability concern per SPEC_FULL.md even though
// spec.md's Non-goals exclude a tracing harness — a gauge/counter set is
// not a trace. No file in the retrieved corpus wires
// github.com/prometheus/client_golang directly (the teacher only pulls
// it in indirectly), so this package follows that library's own
// standard idiom (a private Registry, prometheus.NewGauge/NewCounter,
// promhttp.Handler for exposition) rather than any corpus file's
// pattern.
package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns every metric this node exposes, registered against a
// private registry so importing this package never pollutes the global
// prometheus default registry.
type Collector struct {
	registry *prometheus.Registry

	storeSize       prometheus.Gauge
	tipSetSize      prometheus.Gauge
	archivedTotal   prometheus.Gauge
	intakePending   prometheus.Gauge
	recordsArchived prometheus.Counter
	httpServer      *http.Server
}

// New builds a Collector with all gauges/counters registered.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		storeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dlnode",
			Name:      "ledger_store_size",
			Help:      "Number of records currently held in the local store.",
		}),
		tipSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dlnode",
			Name:      "ledger_tip_set_size",
			Help:      "Number of names currently in the local tip set.",
		}),
		archivedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dlnode",
			Name:      "ledger_archived_records",
			Help:      "Number of records whose isArchived bit is currently true.",
		}),
		intakePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dlnode",
			Name:      "intake_pending_records",
			Help:      "Number of missing parent names the intake queue is still waiting on.",
		}),
		recordsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dlnode",
			Name:      "ledger_archival_transitions_total",
			Help:      "Total number of false-to-true archival transitions observed.",
		}),
	}

	reg.MustRegister(c.storeSize, c.tipSetSize, c.archivedTotal, c.intakePending, c.recordsArchived)
	return c
}

// OnArchived implements propagator.ArchivalObserver: every archival
// transition increments the monotonic counter, and Sample refreshes the
// archived-total gauge from the authoritative store count.
func (c *Collector) OnArchived(name string, entry *ledger.Entry) {
	c.recordsArchived.Inc()
}

// PendingGauge reports the intake queue's current pending count.
type PendingGauge interface {
	Pending() int
}

// Sample refreshes the size gauges from the live store and intake queue.
// internal/node calls it once a second from its metrics sampler
// goroutine, not from the hot propagation path.
func (c *Collector) Sample(store *ledger.Store, intake PendingGauge) {
	c.storeSize.Set(float64(store.Size()))
	c.tipSetSize.Set(float64(len(store.Tips())))
	c.archivedTotal.Set(float64(store.ArchivedCount()))
	if intake != nil {
		c.intakePending.Set(float64(intake.Pending()))
	}
}

// ListenAndServe exposes /metrics on addr, serving in the background
// until Close.
func (c *Collector) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listening on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	c.httpServer = &http.Server{Handler: mux}
	go c.httpServer.Serve(lis)
	return nil
}

// Close shuts down the metrics HTTP server.
func (c *Collector) Close() error {
	if c.httpServer == nil {
		return nil
	}
	return c.httpServer.Shutdown(context.Background())
}
