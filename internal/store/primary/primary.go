package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"lexpipe/internal/models"
	"lexpipe/internal/store"
)

// StoreImpl is the Postgres-backed document metadata store. Every mutation
// after Create goes through CompareAndWrite, which bumps the version column
// inside a single UPDATE so two concurrent writers cannot both win.
type StoreImpl struct {
	db *pgxpool.Pool
}

var _ store.MetadataStore = (*StoreImpl)(nil)

func NewStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, fmt.Errorf("metadata store DSN cannot be empty")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata store DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping metadata store: %w", err)
	}
	log.Info("connected to PostgreSQL metadata store")
	return &StoreImpl{db: pool}, nil
}

func (s *StoreImpl) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

func (s *StoreImpl) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("metadata store connection is not initialized")
	}
	return s.db.Ping(ctx)
}

func (s *StoreImpl) Create(ctx context.Context, rec *models.DocumentRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	locations, err := marshalLocations(rec.StorageLocations)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `
		INSERT INTO documents
			(document_id, owner_id, filename, content_type, size_bytes, page_count,
			 status, storage_locations, last_error, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)`

	_, err = s.db.Exec(ctx, query,
		rec.DocumentID, rec.OwnerID, rec.Filename, rec.ContentType, rec.SizeBytes,
		rec.PageCount, string(rec.Status), locations, rec.LastError,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("document %s: %w", rec.DocumentID, store.ErrDuplicate)
		}
		return fmt.Errorf("create document %s: %w", rec.DocumentID, err)
	}
	return nil
}

func (s *StoreImpl) Read(ctx context.Context, documentID string) (*models.DocumentRecord, int64, error) {
	query := `
		SELECT document_id, owner_id, filename, content_type, size_bytes, page_count,
		       status, storage_locations, last_error, version, created_at, updated_at
		FROM documents WHERE document_id = $1`

	rec := &models.DocumentRecord{}
	var status string
	var locations []byte
	var version int64
	err := s.db.QueryRow(ctx, query, documentID).Scan(
		&rec.DocumentID, &rec.OwnerID, &rec.Filename, &rec.ContentType,
		&rec.SizeBytes, &rec.PageCount, &status, &locations, &rec.LastError,
		&version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, fmt.Errorf("document %s: %w", documentID, store.ErrNotFound)
		}
		return nil, 0, fmt.Errorf("read document %s: %w", documentID, err)
	}
	rec.Status = models.DocumentStatus(status)
	if len(locations) > 0 {
		if err := json.Unmarshal(locations, &rec.StorageLocations); err != nil {
			return nil, 0, fmt.Errorf("decode storage locations for %s: %w", documentID, err)
		}
	}
	return rec, version, nil
}

// CompareAndWrite applies the record as one atomic update keyed by
// document_id. RowsAffected distinguishes a version conflict from a missing
// record without a second round trip in the common path.
func (s *StoreImpl) CompareAndWrite(ctx context.Context, documentID string, expectedVersion int64, rec *models.DocumentRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	locations, err := marshalLocations(rec.StorageLocations)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		UPDATE documents
		SET owner_id = $1, filename = $2, content_type = $3, size_bytes = $4,
		    page_count = $5, status = $6, storage_locations = $7, last_error = $8,
		    version = version + 1, updated_at = $9
		WHERE document_id = $10 AND version = $11`

	cmdTag, err := s.db.Exec(ctx, query,
		rec.OwnerID, rec.Filename, rec.ContentType, rec.SizeBytes,
		rec.PageCount, string(rec.Status), locations, rec.LastError,
		now, documentID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("compare-and-write document %s: %w", documentID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE document_id = $1)`, documentID).Scan(&exists); err != nil {
			return fmt.Errorf("compare-and-write document %s: %w", documentID, err)
		}
		if !exists {
			return fmt.Errorf("document %s: %w", documentID, store.ErrNotFound)
		}
		return fmt.Errorf("document %s at version %d: %w", documentID, expectedVersion, store.ErrVersionConflict)
	}
	rec.UpdatedAt = now
	return nil
}

func (s *StoreImpl) List(ctx context.Context, ownerID string, limit int) ([]*models.DocumentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT document_id, owner_id, filename, content_type, size_bytes, page_count,
		       status, storage_locations, last_error, version, created_at, updated_at
		FROM documents WHERE owner_id = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var records []*models.DocumentRecord
	for rows.Next() {
		rec := &models.DocumentRecord{}
		var status string
		var locations []byte
		var version int64
		if err := rows.Scan(
			&rec.DocumentID, &rec.OwnerID, &rec.Filename, &rec.ContentType,
			&rec.SizeBytes, &rec.PageCount, &status, &locations, &rec.LastError,
			&version, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return records, fmt.Errorf("scan document row: %w", err)
		}
		rec.Status = models.DocumentStatus(status)
		if len(locations) > 0 {
			if err := json.Unmarshal(locations, &rec.StorageLocations); err != nil {
				return records, fmt.Errorf("decode storage locations: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return records, fmt.Errorf("iterate document rows: %w", err)
	}
	return records, nil
}

func marshalLocations(locations map[string]string) ([]byte, error) {
	if locations == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(locations)
	if err != nil {
		return nil, fmt.Errorf("encode storage locations: %w", err)
	}
	return data, nil
}
