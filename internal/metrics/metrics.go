// SPDX-License-Identifier: MPL-2.0

// Package metrics records loader activity as Prometheus metrics.
//
// The Observer implements resource.Observer. Metrics live in a private
// registry so several loaders can coexist in one process, and can be written
// to a node_exporter textfile at the end of a run.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/corext/corext/pkg/resource"
)

// Namespace prefixes every metric name.
const Namespace = "corext"

// Observer counts fetches, cache hits and status transitions.
type Observer struct {
	registry *prometheus.Registry

	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	FetchBytes    *prometheus.CounterVec
	CacheHits     prometheus.Counter
	StatusChanges *prometheus.CounterVec
}

// DefaultBuckets are the fetch duration histogram buckets in seconds.
func DefaultBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
}

// New creates an Observer with its own registry.
func New() *Observer {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates an Observer registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Observer {
	o := &Observer{
		registry: reg,
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fetches_total",
			Help:      "Completed payload fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching payloads.",
			Buckets:   DefaultBuckets(),
		}, []string{"source"}),
		FetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fetch_bytes_total",
			Help:      "Payload bytes delivered by source.",
		}, []string{"source"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_hits_total",
			Help:      "Payloads served from the persistent cache.",
		}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "status_transitions_total",
			Help:      "Request status transitions.",
		}, []string{"from", "to"}),
	}
	reg.MustRegister(o.FetchesTotal, o.FetchDuration, o.FetchBytes, o.CacheHits, o.StatusChanges)
	return o
}

// Registry returns the registry the metrics are registered on.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// FetchCompleted implements resource.Observer.
func (o *Observer) FetchCompleted(_ string, source resource.Source, size int, elapsed time.Duration, err error) {
	src := string(source)
	o.FetchesTotal.WithLabelValues(src, outcome(err)).Inc()
	o.FetchDuration.WithLabelValues(src).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	o.FetchBytes.WithLabelValues(src).Add(float64(size))
	if source == resource.SourceCache {
		o.CacheHits.Inc()
	}
}

// StatusChanged implements resource.Observer.
func (o *Observer) StatusChanged(_ string, from, to resource.Status) {
	o.StatusChanges.WithLabelValues(from.String(), to.String()).Inc()
}

// WriteTextfile writes the current metrics in the node_exporter textfile
// format. The file is replaced atomically.
func (o *Observer) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, o.registry)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, resource.ErrTimeout):
		return "timeout"
	case errors.Is(err, resource.ErrAborted):
		return "aborted"
	default:
		return "error"
	}
}
