// Package metrics holds the Prometheus instruments updated by the capture
// store.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "capstore"

var (
	RecordsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_added_total",
		Help:      "Records handed to a store by producers",
	})

	DurableWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "durable_writes_total",
		Help:      "Background durable writes by result",
	}, []string{"result"})

	RecordsTrimmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_trimmed_total",
		Help:      "Durable records deleted by the max-count trim",
	})

	RecordsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_expired_total",
		Help:      "Durable records deleted by the retention cleanup",
	})

	// QueueDepth is labelled per store so instances sharing a process
	// do not overwrite each other.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "write_queue_depth",
		Help:      "Operations waiting for the background writer",
	}, []string{"store"})
)

// Result label values for DurableWrites.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Snapshot gathers the current value of every capstore metric from the
// default registry, keyed by name plus labels (e.g.
// `capstore_durable_writes_total{result="ok"}`).
func Snapshot() (map[string]float64, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			key := mf.GetName()
			if len(labels) > 0 {
				sort.Strings(labels)
				key += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out, nil
}
