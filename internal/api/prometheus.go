package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slyt3/Quorum/internal/logging"
)

type promWriter struct {
	w   io.Writer
	err error
}

func (p *promWriter) metric(name, kind, help string, value interface{}) {
	p.printf("# HELP %s %s\n", name, help)
	p.printf("# TYPE %s %s\n", name, kind)
	p.printf("%s %v\n", name, value)
}

func (p *promWriter) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (h *Handlers) HandlePrometheus(w http.ResponseWriter, r *http.Request) {
	stats := h.Engine.Stats()
	funding := h.Guard.Counters()
	latency := h.Engine.LatencyMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	p := &promWriter{w: w}
	p.metric("quorum_votes_first_total", "counter", "First votes recorded", stats.FirstVotes)
	p.metric("quorum_votes_amended_total", "counter", "Votes amended in place", stats.Amendments)
	p.metric("quorum_tasks_settled_total", "counter", "Tasks that reached their quorum", stats.Settlements)
	p.metric("quorum_deposits_total", "counter", "Balance top-ups applied", stats.Deposits)
	p.metric("quorum_ledger_conflicts_retried_total", "counter", "Transaction conflicts retried", stats.Conflicts)
	p.metric("quorum_ledger_failures_total", "counter", "Submissions that failed with a storage error", stats.Failures)
	p.metric("quorum_activations_accepted_total", "counter", "Dataset activations accepted by the funding guard", funding.Activated)
	p.metric("quorum_activations_refused_total", "counter", "Dataset activations refused by the funding guard", funding.Refused)
	p.metric("quorum_datasets_paused_total", "counter", "Dataset pauses", funding.Paused)

	p.printf("# HELP quorum_submit_latency_seconds Vote submission commit latency\n")
	p.printf("# TYPE quorum_submit_latency_seconds histogram\n")
	var cumulative uint64
	for i := 0; i < len(latency.BoundsNs); i++ {
		upper := latency.BoundsNs[i]
		label := "+Inf"
		if upper != ^uint64(0) {
			label = fmt.Sprintf("%.6f", float64(upper)/float64(time.Second))
		}
		cumulative += latency.Counts[i]
		p.printf("quorum_submit_latency_seconds_bucket{le=\"%s\"} %d\n", label, cumulative)
	}
	p.printf("quorum_submit_latency_seconds_sum %.6f\n", float64(latency.SumNs)/float64(time.Second))
	p.printf("quorum_submit_latency_seconds_count %d\n", latency.Count)

	if p.err != nil {
		logging.Error("metrics_write_failed", logging.Fields{Component: "api", Error: p.err.Error()})
	}
}
