// Package metrics exports sync activity to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sync holds the collectors updated after every sync pass. Collectors are
// registered on the registerer handed to NewSync, so tests can use a private
// registry.
type Sync struct {
	passes   *prometheus.CounterVec
	entries  *prometheus.CounterVec
	depth    *prometheus.GaugeVec
	duration prometheus.Histogram
}

func NewSync(reg prometheus.Registerer) *Sync {
	s := &Sync{
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshoot_sync_passes_total",
				Help: "Sync passes by result (complete, partial, skipped).",
			},
			[]string{"result"},
		),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshoot_sync_entries_total",
				Help: "Pending entries replayed, by queue and result.",
			},
			[]string{"queue", "result"},
		),
		depth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "snapshoot_sync_queue_depth",
				Help: "Entries still pending after the last pass.",
			},
			[]string{"queue"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "snapshoot_sync_pass_duration_seconds",
				Help:    "Duration of sync passes in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		reg.MustRegister(s.passes, s.entries, s.depth, s.duration)
	}
	return s
}

// Pass records one finished pass.
func (s *Sync) Pass(result string, seconds float64) {
	if s == nil {
		return
	}
	s.passes.WithLabelValues(result).Inc()
	if result != "skipped" {
		s.duration.Observe(seconds)
	}
}

// Queue records the outcome counts of one queue within a pass.
func (s *Sync) Queue(queue string, synced, failed, discarded, remaining int) {
	if s == nil {
		return
	}
	s.entries.WithLabelValues(queue, "synced").Add(float64(synced))
	s.entries.WithLabelValues(queue, "failed").Add(float64(failed))
	s.entries.WithLabelValues(queue, "discarded").Add(float64(discarded))
	s.depth.WithLabelValues(queue).Set(float64(remaining))
}
