// Package metrics defines the Prometheus collectors shared by the resolution core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	DownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_downloads_total",
			Help: "Number of download attempts by file kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_cache_hits_total",
			Help: "Number of files served from the local cache by file kind.",
		},
		[]string{"kind"},
	)
	DownloadedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "depot_downloaded_bytes_total",
			Help: "Total number of bytes written to the local cache.",
		},
	)

	ResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depot_resolution_duration_seconds",
			Help:    "Time taken by a resolution call, discovery and download included.",
			Buckets: prometheus.DefBuckets,
		},
	)
	ResolutionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_resolution_errors_total",
			Help: "Number of per-dependency resolution errors by phase.",
		},
		[]string{"phase"},
	)
	ResolvedArtifacts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "depot_resolved_artifacts",
			Help: "Number of artifacts returned by the last resolution call.",
		},
	)

	RelocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depot_relocations_total",
			Help: "Number of relocation requests by outcome (relocated, reused, failed).",
		},
		[]string{"outcome"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		DownloadsTotal,
		CacheHitsTotal,
		DownloadedBytesTotal,
		ResolutionDuration,
		ResolutionErrorsTotal,
		ResolvedArtifacts,
		RelocationsTotal,
	)
}
