package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyrite_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyrite_analysis_seconds",
		Help:    "Time spent on semantic analysis per SCC.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	AnalysisIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyrite_analysis_iterations",
		Help:    "Fixpoint iterations needed per SCC before convergence.",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})

	DeferralsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyrite_deferrals_total",
		Help: "Total number of analysis targets deferred to a later iteration.",
	})

	ForcedCompletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyrite_forced_completions_total",
		Help: "Total number of SCC runs that hit the iteration ceiling.",
	})

	GraphModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pyrite_graph_modules_total",
		Help: "Total number of modules in the import graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pyrite_graph_edges_total",
		Help: "Total number of import edges in the import graph.",
	})

	CodegenLinesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyrite_codegen_lines_total",
		Help: "Total number of lowered source lines emitted.",
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyrite_cache_hits_total",
		Help: "Total number of modules skipped due to an up-to-date cache entry.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyrite_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
