package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// System metrics
	SystemMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_memory_bytes",
		Help: "Current system memory usage",
	})

	SystemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_goroutines",
		Help: "Number of goroutines",
	})

	// Pipeline metrics
	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_documents_processed_total",
			Help: "Documents processed per pipeline stage",
		},
		[]string{"stage"},
	)

	DocumentProcessingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_document_errors_total",
			Help: "Document processing errors per stage",
		},
		[]string{"stage", "error_type"},
	)

	// Build metrics
	SourcesMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_sources_merged_total",
		Help: "Source nodes merged into the graph",
	})

	EntitiesMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_entities_merged_total",
			Help: "Entity mentions merged into the graph",
		},
		[]string{"entity_type"},
	)

	RelationshipsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_relationships_merged_total",
			Help: "Relationship observations merged into the graph",
		},
		[]string{"relation_type"},
	)

	RelationshipsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_relationships_skipped_total",
		Help: "Relationship observations skipped during merge",
	})

	GraphRelationshipEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graph_relationship_edges",
		Help: "Inferred relationship edges in the graph, as of the last classification pass",
	})

	// Fetch metrics
	ArticlesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_articles_total",
			Help: "Articles fetched per source",
		},
		[]string{"source"},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_errors_total",
			Help: "Fetch failures per source",
		},
		[]string{"source"},
	)
)

// UpdateSystemMetrics updates system-level metrics
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	SystemMemoryUsage.Set(float64(m.Alloc))
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}
