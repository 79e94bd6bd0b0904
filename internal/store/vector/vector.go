package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"

	"lexpipe/internal/models"
	"lexpipe/internal/store"
)

// StoreImpl is the pgvector-backed chunk index.
type StoreImpl struct {
	db *pgxpool.Pool
	// dim is the vector width of the chunk_embeddings column. Writes and
	// searches with a different width are rejected up front instead of
	// surfacing as a pgvector error mid-batch.
	dim int
}

var _ store.VectorIndex = (*StoreImpl)(nil)

func NewStore(ctx context.Context, dsn string, dimension int) (*StoreImpl, error) {
	if dsn == "" {
		return nil, fmt.Errorf("vector store DSN cannot be empty")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("vector store dimension must be positive, got %d", dimension)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vector store DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping vector store: %w", err)
	}
	log.WithField("dimension", dimension).Info("connected to PostgreSQL vector store")
	return &StoreImpl{db: pool, dim: dimension}, nil
}

func (vs *StoreImpl) Close() error {
	if vs.db != nil {
		vs.db.Close()
	}
	return nil
}

// Upsert writes chunk embeddings in one batch. Conflicting chunk ids replace
// the stored vector, which is what keeps a re-run of the index stage from
// accumulating duplicate rows.
func (vs *StoreImpl) Upsert(ctx context.Context, entries []models.ChunkEmbedding) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Vector) != vs.dim {
			return fmt.Errorf("%w: chunk %s has a %d-dimensional vector, index expects %d",
				models.ErrValidation, e.ChunkID, len(e.Vector), vs.dim)
		}
	}
	query := `
		INSERT INTO chunk_embeddings (chunk_id, document_id, owner_id, chunk_index, page_number, chunk_text, vector)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chunk_id) DO UPDATE
		SET chunk_text = EXCLUDED.chunk_text, vector = EXCLUDED.vector`

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query, e.ChunkID, e.DocumentID, e.OwnerID, e.Index, e.PageNumber, e.Text, pgvector.NewVector(e.Vector))
	}
	results := vs.db.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert chunk embedding: %w", err)
		}
	}
	return nil
}

// Search runs a cosine-distance scan and converts distances to similarity
// scores in (0, 1].
func (vs *StoreImpl) Search(ctx context.Context, vec []float32, k int, ownerID string, documentIDs []string) ([]models.ScoredChunk, error) {
	if len(vec) != vs.dim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index expects %d",
			models.ErrValidation, len(vec), vs.dim)
	}
	if k <= 0 {
		k = 5
	}
	query := `
		SELECT chunk_id, document_id, chunk_index, page_number, chunk_text, (vector <=> $1) AS distance
		FROM chunk_embeddings
		WHERE owner_id = $2`
	args := []any{pgvector.NewVector(vec), ownerID}
	if len(documentIDs) > 0 {
		query += ` AND document_id = ANY($3)`
		args = append(args, documentIDs)
	}
	query += fmt.Sprintf(` ORDER BY vector <=> $1 LIMIT %d`, k)

	rows, err := vs.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search query: %w", err)
	}
	defer rows.Close()

	var chunks []models.ScoredChunk
	for rows.Next() {
		var c models.ScoredChunk
		var distance float64
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Index, &c.PageNumber, &c.Text, &distance); err != nil {
			return chunks, fmt.Errorf("scan search result: %w", err)
		}
		c.Score = 1.0 / (1.0 + distance)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return chunks, fmt.Errorf("iterate search results: %w", err)
	}
	return chunks, nil
}
