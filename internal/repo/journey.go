// Package repo contains all database access logic for the track pipeline.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/okranz/tracklog/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JourneyRepo defines the persistence operations for Journeys.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a mock.
type JourneyRepo interface {
	// Create inserts a new journey and returns the persisted record (with
	// DB-generated id, created_at, and updated_at populated).
	Create(ctx context.Context, journey domain.Journey) (domain.Journey, error)

	// GetByID retrieves a single journey by its UUID primary key.
	// Returns domain.ErrNotFound if no journey with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Journey, error)

	// List returns all journeys ordered by created_at descending.
	List(ctx context.Context) ([]domain.Journey, error)

	// UpdateAggregates overwrites the journey's roll-up totals in one UPDATE.
	// It is always called with a complete, freshly recomputed set — never a
	// delta — so concurrent calls converge on the same row state.
	// Returns domain.ErrNotFound if no journey with that ID exists.
	UpdateAggregates(ctx context.Context, id uuid.UUID, agg domain.JourneyAggregates) error

	// Delete removes a journey by ID; activities under it cascade away.
	// Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// pgJourneyRepo is the Postgres implementation of JourneyRepo.
type pgJourneyRepo struct {
	db db
}

// NewJourneyRepo constructs a JourneyRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewJourneyRepo(db db) JourneyRepo {
	return &pgJourneyRepo{db: db}
}

const journeyColumns = `id, name, total_distance_m, total_elevation_gain_m,
	total_duration_s, activity_count, last_activity_at, created_at, updated_at`

// Create inserts a new journey row and returns the full persisted record.
func (r *pgJourneyRepo) Create(ctx context.Context, journey domain.Journey) (domain.Journey, error) {
	q := `
		INSERT INTO journeys (name)
		VALUES (@name)
		RETURNING ` + journeyColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"name": journey.Name})
	result, err := scanJourney(row)
	if err != nil {
		return domain.Journey{}, fmt.Errorf("repo.JourneyRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a journey by primary key.
func (r *pgJourneyRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Journey, error) {
	q := `SELECT ` + journeyColumns + ` FROM journeys WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanJourney(row)
	if err != nil {
		return domain.Journey{}, fmt.Errorf("repo.JourneyRepo.GetByID: %w", err)
	}
	return result, nil
}

// List returns all journeys ordered by created_at descending (newest first).
func (r *pgJourneyRepo) List(ctx context.Context) ([]domain.Journey, error) {
	q := `SELECT ` + journeyColumns + ` FROM journeys ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.JourneyRepo.List: %w", err)
	}
	defer rows.Close()

	var journeys []domain.Journey
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.JourneyRepo.List: scan: %w", err)
		}
		journeys = append(journeys, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.JourneyRepo.List: rows: %w", err)
	}

	return journeys, nil
}

// UpdateAggregates writes a full set of recomputed totals in a single UPDATE.
func (r *pgJourneyRepo) UpdateAggregates(ctx context.Context, id uuid.UUID, agg domain.JourneyAggregates) error {
	const q = `
		UPDATE journeys
		SET total_distance_m       = @total_distance_m,
		    total_elevation_gain_m = @total_elevation_gain_m,
		    total_duration_s       = @total_duration_s,
		    activity_count         = @activity_count,
		    last_activity_at       = @last_activity_at,
		    updated_at             = now()
		WHERE id = @id`

	args := pgx.NamedArgs{
		"id":                     id,
		"total_distance_m":       agg.TotalDistance,
		"total_elevation_gain_m": agg.TotalElevationGain,
		"total_duration_s":       agg.TotalDuration,
		"activity_count":         agg.ActivityCount,
		"last_activity_at":       agg.LastActivityAt, // nil becomes NULL
	}

	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("repo.JourneyRepo.UpdateAggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.JourneyRepo.UpdateAggregates: %w", domain.ErrNotFound)
	}
	return nil
}

// Delete removes a journey by primary key.
func (r *pgJourneyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM journeys WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.JourneyRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.JourneyRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanJourney maps a single database row into a domain.Journey.
// It handles the UUID and nullable last_activity_at conversions.
func scanJourney(s scanner) (domain.Journey, error) {
	var (
		j      domain.Journey
		id     pgtype.UUID
		lastAt pgtype.Timestamptz
	)

	err := s.Scan(&id, &j.Name, &j.TotalDistance, &j.TotalElevationGain,
		&j.TotalDuration, &j.ActivityCount, &lastAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Journey{}, domain.ErrNotFound
		}
		return domain.Journey{}, err
	}

	j.ID = uuid.UUID(id.Bytes)
	if lastAt.Valid {
		la := lastAt.Time
		j.LastActivityAt = &la
	}

	return j, nil
}
