// Package metrics exposes prometheus instrumentation for the
// ingestion worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry collects pipeline metrics for one process.
var Registry = prometheus.NewRegistry()

var (
	// JobsProcessed counts finished jobs by outcome:
	// completed, retried, failed.
	JobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "specrag",
		Subsystem: "worker",
		Name:      "jobs_processed_total",
		Help:      "Ingestion jobs processed, by outcome.",
	}, []string{"outcome"})

	// FilesIngested counts per-file pipeline results:
	// ingested, skipped.
	FilesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "specrag",
		Subsystem: "pipeline",
		Name:      "files_total",
		Help:      "Files run through the pipeline, by result.",
	}, []string{"result"})

	// ChunksWritten counts chunks persisted to the store.
	ChunksWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "specrag",
		Subsystem: "pipeline",
		Name:      "chunks_written_total",
		Help:      "Chunks written to the document store.",
	})

	// EmbeddingBatchSeconds observes embedding batch latency.
	EmbeddingBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "specrag",
		Subsystem: "embedding",
		Name:      "batch_seconds",
		Help:      "Wall time per embedding batch request.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// StalledJobsRequeued counts jobs returned to the queue by the
	// lease sweep.
	StalledJobsRequeued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "specrag",
		Subsystem: "worker",
		Name:      "stalled_jobs_requeued_total",
		Help:      "Active jobs whose lease expired and were re-queued.",
	})
)

func init() {
	Registry.MustRegister(
		JobsProcessed,
		FilesIngested,
		ChunksWritten,
		EmbeddingBatchSeconds,
		StalledJobsRequeued,
	)
}
