package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callctx_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ParsedFileCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callctx_parsed_file_cache_total",
		Help: "Parsed-file cache lookups by outcome (hit or miss).",
	}, []string{"outcome"})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callctx_graph_nodes_total",
		Help: "Number of function contexts materialized by the last analysis.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callctx_graph_edges_total",
		Help: "Number of dependency edges recorded by the last analysis.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callctx_analysis_seconds",
		Help:    "Time spent on high-level analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callctx_resolutions_total",
		Help: "Call resolutions by the strategy that matched, or unresolved.",
	}, []string{"strategy"})

	ResolutionFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callctx_resolution_faults_total",
		Help: "Faults recovered at the resolver boundary.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callctx_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callctx_watch_runs_total",
		Help: "Analyses triggered by the watcher, by outcome.",
	}, []string{"outcome"})
)
