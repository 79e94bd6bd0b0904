package store

import (
	"context"

	"lexpipe/internal/models"
)

// --- Document Metadata Store ---

// MetadataStore persists document records. The compare-and-write is the only
// mutation path; it is how concurrent deliveries of the same stage are kept
// from double-applying a transition.
type MetadataStore interface {
	// Create inserts a new record at version 1.
	Create(ctx context.Context, rec *models.DocumentRecord) error
	// Read returns the record and the version it was read at.
	Read(ctx context.Context, documentID string) (*models.DocumentRecord, int64, error)
	// CompareAndWrite replaces the record if the stored version still equals
	// expectedVersion, bumping the version. Returns ErrVersionConflict
	// otherwise.
	CompareAndWrite(ctx context.Context, documentID string, expectedVersion int64, rec *models.DocumentRecord) error
	// List returns an owner's records, newest first.
	List(ctx context.Context, ownerID string, limit int) ([]*models.DocumentRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// --- Blob Storage ---

// BlobStore persists task output artifacts. Artifacts are never mutated in
// place; callers write each new version under a fresh location.
type BlobStore interface {
	// Put stores data under location and returns the location it was
	// actually written to.
	Put(ctx context.Context, location string, data []byte) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
}

// --- Message Bus ---

// MessageBus publishes stage-completion messages. Delivery is at-least-once
// with no ordering guarantee across messages; the subscribing side lives in
// internal/worker.
type MessageBus interface {
	Publish(ctx context.Context, msg models.PipelineMessage) error
	Close() error
}

// --- Vector Index ---

// VectorIndex is the embedding index capability. Upsert keeps reprocessing
// idempotent: re-indexing a chunk replaces its vector instead of
// accumulating duplicates.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []models.ChunkEmbedding) error
	// Search returns the k nearest chunks for the owner, optionally limited
	// to specific documents. Scores are similarities in (0, 1].
	Search(ctx context.Context, vector []float32, k int, ownerID string, documentIDs []string) ([]models.ScoredChunk, error)
	Close() error
}
