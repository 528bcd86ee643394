// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package roomfeed

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/timeline"
)

const metricsNamespace = "parley"

// Metrics holds the feed's prometheus collectors. All methods are safe
// on a nil receiver.
type Metrics struct {
	applied   *prometheus.CounterVec
	skipped   prometheus.Counter
	rejected  prometheus.Counter
	evicted   prometheus.Counter
	stashed   *prometheus.GaugeVec
	retries   prometheus.Counter
	snapshots *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with registerer.
// A nil registerer leaves them unregistered, which tests use to read
// values without a registry.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_applied_total",
			Help:      "Timeline events applied to room state, by kind.",
		}, []string{"kind"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_skipped_total",
			Help:      "Events ignored as duplicates, non-timeline or malformed.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_rejected_total",
			Help:      "Timeline events the room state refused to apply.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stash_evicted_total",
			Help:      "Stashed modifiers dropped by the stash policy.",
		}),
		stashed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stash_modifiers",
			Help:      "Modifiers currently waiting for their target, by room.",
		}, []string{"room_id"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sync_retries_total",
			Help:      "Failed /sync requests that were retried.",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshots_total",
			Help:      "Room snapshot operations, by operation and result.",
		}, []string{"operation", "result"}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, collector := range m.collectors() {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.applied, m.skipped, m.rejected, m.evicted, m.stashed, m.retries, m.snapshots}
}

func (m *Metrics) eventApplied(event timeline.Event) {
	if m == nil {
		return
	}
	m.applied.WithLabelValues(eventKind(event)).Inc()
}

func (m *Metrics) eventSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func (m *Metrics) eventRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *Metrics) stashEvicted(count int) {
	if m == nil {
		return
	}
	m.evicted.Add(float64(count))
}

func (m *Metrics) setStashed(roomID ref.RoomID, count int) {
	if m == nil {
		return
	}
	m.stashed.WithLabelValues(roomID.String()).Set(float64(count))
}

func (m *Metrics) syncRetried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) snapshotDone(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.snapshots.WithLabelValues(operation, result).Inc()
}

func eventKind(event timeline.Event) string {
	switch event.(type) {
	case timeline.Message:
		return "message"
	case timeline.Edit:
		return "edit"
	case timeline.Redact:
		return "redact"
	case timeline.Like:
		return "like"
	default:
		return "unknown"
	}
}
