package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DocumentRecord is the durable entity tracked across pipeline stages.
// It is only ever mutated through the metadata store's compare-and-write,
// keyed by DocumentID and guarded by the stored version.
type DocumentRecord struct {
	DocumentID  string         `db:"document_id" json:"document_id"`
	OwnerID     string         `db:"owner_id" json:"owner_id"`
	Filename    string         `db:"filename" json:"filename"`
	ContentType string         `db:"content_type" json:"content_type"`
	SizeBytes   int64          `db:"size_bytes" json:"size_bytes"`
	PageCount   int            `db:"page_count" json:"page_count"`
	Status      DocumentStatus `db:"status" json:"status"`
	// StorageLocations maps versioned artifact names ("raw.v1", "text.v2")
	// to blob locations. Entries are append-only: a stage rerun adds a new
	// version instead of overwriting the previous artifact.
	StorageLocations map[string]string `db:"storage_locations" json:"storage_locations"`
	LastError        *string           `db:"last_error" json:"last_error,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// Validate checks the invariants a record must satisfy before it may be
// persisted. Violations wrap ErrValidation.
func (r *DocumentRecord) Validate() error {
	if r.DocumentID == "" {
		return fmt.Errorf("%w: document_id is required", ErrValidation)
	}
	if r.OwnerID == "" {
		return fmt.Errorf("%w: owner_id is required", ErrValidation)
	}
	if r.Filename == "" {
		return fmt.Errorf("%w: filename is required", ErrValidation)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, r.Status)
	}
	if r.SizeBytes < 0 {
		return fmt.Errorf("%w: size_bytes must not be negative", ErrValidation)
	}
	return nil
}

// AppendLocation records a new artifact location under the next free version
// of the given artifact name. Existing entries are never touched.
func (r *DocumentRecord) AppendLocation(name, location string) string {
	if r.StorageLocations == nil {
		r.StorageLocations = make(map[string]string)
	}
	version := 1
	for key := range r.StorageLocations {
		base, v, ok := splitVersionedKey(key)
		if ok && base == name && v >= version {
			version = v + 1
		}
	}
	key := fmt.Sprintf("%s.v%d", name, version)
	r.StorageLocations[key] = location
	return key
}

// LatestLocation returns the highest-versioned location stored for the given
// artifact name, or "" if none exists.
func (r *DocumentRecord) LatestLocation(name string) string {
	best := 0
	location := ""
	for key, loc := range r.StorageLocations {
		base, v, ok := splitVersionedKey(key)
		if ok && base == name && v > best {
			best = v
			location = loc
		}
	}
	return location
}

func splitVersionedKey(key string) (string, int, bool) {
	idx := strings.LastIndex(key, ".v")
	if idx <= 0 {
		return "", 0, false
	}
	v, err := strconv.Atoi(key[idx+2:])
	if err != nil || v < 1 {
		return "", 0, false
	}
	return key[:idx], v, true
}

// PipelineMessage is the unit of inter-stage communication. Messages are
// immutable: a consumed message is never modified, only acknowledged and
// optionally followed by a freshly built message for the next stage.
type PipelineMessage struct {
	DocumentID string `json:"document_id"`
	OwnerID    string `json:"owner_id"`
	Stage      string `json:"stage"`
	Attempt    int    `json:"attempt"`
	// TraceID is propagated unchanged through every downstream task
	// invocation of one document's processing chain.
	TraceID string `json:"trace_id"`
}

// Chunk is one retrievable piece of an extracted document.
type Chunk struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// ChunkEmbedding pairs a chunk with its vector for index upserts. OwnerID is
// denormalized onto every entry so searches can scope by tenant without a
// join back to the documents table.
type ChunkEmbedding struct {
	Chunk
	OwnerID string    `json:"owner_id"`
	Vector  []float32 `json:"vector"`
}

// ScoredChunk is a chunk returned from a similarity search.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// Query is an interactive question against the indexed corpus.
type Query struct {
	Text        string   `json:"query"`
	OwnerID     string   `json:"owner_id"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	TopK        int      `json:"top_k"`
}

// Validate checks the fields a caller must supply before the query
// coordinator will run. Violations wrap ErrValidation.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: query text is required", ErrValidation)
	}
	if q.OwnerID == "" {
		return fmt.Errorf("%w: owner_id is required", ErrValidation)
	}
	if q.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative", ErrValidation)
	}
	return nil
}

// Citation points a piece of the answer back at the evidence it came from.
type Citation struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	PageNumber int     `json:"page_number"`
	Score      float64 `json:"score"`
}

// QueryResult is the answer to a query, with its supporting evidence.
// NoEvidence is set when retrieval produced nothing; in that case no
// generation call was made and Confidence is 0.
type QueryResult struct {
	Query      string     `json:"query"`
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	NoEvidence bool       `json:"no_evidence"`
	Warnings   []string   `json:"warnings,omitempty"`
	TraceID    string     `json:"trace_id"`
}
