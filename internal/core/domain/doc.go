// Package domain contains the core business entities for the ingestion
// pipeline: documents, chunks, embeddings, and ingestion jobs.
// It has no dependencies on infrastructure or adapters.
package domain
