package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/okranz/tracklog/internal/domain"
)

// BlobRepo is the object-storage contract seen by the rest of the pipeline:
// bytes in, stable reference out. The backing here is a Postgres bytea table,
// which keeps the database as the single synchronization point; swapping in a
// bucket-backed implementation later only has to honor this interface.
type BlobRepo interface {
	// Put stores the bytes and returns a stable reference to them.
	Put(ctx context.Context, data []byte, contentType string) (uuid.UUID, error)

	// Get reads the bytes back by reference.
	// Returns domain.ErrNotFound if the reference is unknown.
	Get(ctx context.Context, ref uuid.UUID) ([]byte, error)

	// Delete removes the blob. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, ref uuid.UUID) error
}

// pgBlobRepo is the Postgres implementation of BlobRepo.
type pgBlobRepo struct {
	db db
}

// NewBlobRepo constructs a BlobRepo backed by the provided db connection.
func NewBlobRepo(db db) BlobRepo {
	return &pgBlobRepo{db: db}
}

// Put inserts the blob and returns its generated reference.
func (r *pgBlobRepo) Put(ctx context.Context, data []byte, contentType string) (uuid.UUID, error) {
	const q = `
		INSERT INTO blobs (data, content_type, size_bytes)
		VALUES (@data, @content_type, @size_bytes)
		RETURNING id`

	args := pgx.NamedArgs{
		"data":         data,
		"content_type": contentType,
		"size_bytes":   len(data),
	}

	var id pgtype.UUID
	if err := r.db.QueryRow(ctx, q, args).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("repo.BlobRepo.Put: %w", err)
	}
	return uuid.UUID(id.Bytes), nil
}

// Get reads a blob's bytes by reference.
func (r *pgBlobRepo) Get(ctx context.Context, ref uuid.UUID) ([]byte, error) {
	const q = `SELECT data FROM blobs WHERE id = @id`

	var data []byte
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": ref}).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("repo.BlobRepo.Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("repo.BlobRepo.Get: %w", err)
	}
	return data, nil
}

// Delete removes a blob by reference.
func (r *pgBlobRepo) Delete(ctx context.Context, ref uuid.UUID) error {
	const q = `DELETE FROM blobs WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": ref})
	if err != nil {
		return fmt.Errorf("repo.BlobRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.BlobRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}
