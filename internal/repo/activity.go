package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/okranz/tracklog/internal/domain"
)

// ActivityRepo defines the persistence operations for Activities.
type ActivityRepo interface {
	// Create inserts a new activity and returns the persisted record.
	// The caller supplies everything except id/created_at/updated_at.
	Create(ctx context.Context, activity domain.Activity) (domain.Activity, error)

	// GetByID retrieves a single activity, including its full point
	// sequence and route geometry.
	// Returns domain.ErrNotFound if no activity with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Activity, error)

	// ListByJourneyID returns all activities under a journey ordered by
	// created_at ascending. Point and route geometry are omitted — callers
	// that need geometry fetch individual activities by ID. The aggregate
	// recompute only reads stats, and loading every point of every
	// activity to sum five numbers would be absurd.
	ListByJourneyID(ctx context.Context, journeyID uuid.UUID) ([]domain.Activity, error)

	// Update applies a typed patch as a single atomic UPDATE and returns
	// the updated record. A patch with no fields set returns the row
	// unchanged. Returns domain.ErrNotFound if the activity does not exist.
	Update(ctx context.Context, id uuid.UUID, patch domain.ActivityUpdate) (domain.Activity, error)

	// Delete removes an activity by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// pgActivityRepo is the Postgres implementation of ActivityRepo.
// Point sequences, route geometry, and stats live in jsonb columns on the
// activity row: they are read and written whole, which matches the pipeline's
// all-or-nothing recompute semantics.
type pgActivityRepo struct {
	db db
}

// NewActivityRepo constructs an ActivityRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewActivityRepo(db db) ActivityRepo {
	return &pgActivityRepo{db: db}
}

const activityColumns = `id, journey_id, name, sport, color, notes, tags, status,
	error_text, file_ref, points, route, stats, created_at, updated_at`

const activitySummaryColumns = `id, journey_id, name, sport, color, notes, tags, status,
	error_text, file_ref, NULL, NULL, stats, created_at, updated_at`

// Create inserts a new activity row and returns the full persisted record.
func (r *pgActivityRepo) Create(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	q := `
		INSERT INTO activities (journey_id, name, sport, color, notes, tags, status, error_text, file_ref, points, route, stats)
		VALUES (@journey_id, @name, @sport, @color, @notes, @tags, @status, @error_text, @file_ref, @points, @route, @stats)
		RETURNING ` + activityColumns

	points, route, stats, err := marshalGeometry(activity.Points, activity.Route, activity.Stats)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Create: %w", err)
	}
	tags, err := marshalTags(activity.Tags)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Create: %w", err)
	}

	args := pgx.NamedArgs{
		"journey_id": activity.JourneyID,
		"name":       activity.Name,
		"sport":      activity.Sport,
		"color":      activity.Color,
		"notes":      activity.Notes,
		"tags":       tags,
		"status":     string(activity.Status),
		"error_text": activity.Error,
		"file_ref":   activity.FileRef, // nil becomes NULL
		"points":     points,
		"route":      route,
		"stats":      stats,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanActivity(row)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves an activity by primary key, geometry included.
func (r *pgActivityRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Activity, error) {
	q := `SELECT ` + activityColumns + ` FROM activities WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanActivity(row)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.GetByID: %w", err)
	}
	return result, nil
}

// ListByJourneyID returns geometry-free activity summaries for a journey.
func (r *pgActivityRepo) ListByJourneyID(ctx context.Context, journeyID uuid.UUID) ([]domain.Activity, error) {
	q := `SELECT ` + activitySummaryColumns + `
		FROM activities
		WHERE journey_id = @journey_id
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"journey_id": journeyID})
	if err != nil {
		return nil, fmt.Errorf("repo.ActivityRepo.ListByJourneyID: %w", err)
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.ActivityRepo.ListByJourneyID: scan: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.ActivityRepo.ListByJourneyID: rows: %w", err)
	}

	return activities, nil
}

// Update builds a SET clause from the patch's non-nil fields and applies it
// in one statement. All-or-nothing: either every set field lands or none do.
func (r *pgActivityRepo) Update(ctx context.Context, id uuid.UUID, patch domain.ActivityUpdate) (domain.Activity, error) {
	sets := []string{"updated_at = now()"}
	args := pgx.NamedArgs{"id": id}

	if patch.Name != nil {
		sets = append(sets, "name = @name")
		args["name"] = *patch.Name
	}
	if patch.Sport != nil {
		sets = append(sets, "sport = @sport")
		args["sport"] = *patch.Sport
	}
	if patch.Color != nil {
		sets = append(sets, "color = @color")
		args["color"] = *patch.Color
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = @notes")
		args["notes"] = *patch.Notes
	}
	if patch.Tags != nil {
		b, err := marshalTags(*patch.Tags)
		if err != nil {
			return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Update: %w", err)
		}
		sets = append(sets, "tags = @tags")
		args["tags"] = b
	}
	if patch.Status != nil {
		sets = append(sets, "status = @status")
		args["status"] = string(*patch.Status)
	}
	if patch.Error != nil {
		sets = append(sets, "error_text = @error_text")
		args["error_text"] = *patch.Error
	} else if patch.ClearError {
		sets = append(sets, "error_text = ''")
	}
	if patch.FileRef != nil {
		sets = append(sets, "file_ref = @file_ref")
		args["file_ref"] = *patch.FileRef
	}
	if patch.Points != nil {
		b, err := json.Marshal(*patch.Points)
		if err != nil {
			return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Update: marshal points: %w", err)
		}
		sets = append(sets, "points = @points")
		args["points"] = b
	}
	if patch.Route != nil {
		b, err := json.Marshal(*patch.Route)
		if err != nil {
			return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Update: marshal route: %w", err)
		}
		sets = append(sets, "route = @route")
		args["route"] = b
	}
	if patch.Stats != nil {
		b, err := json.Marshal(*patch.Stats)
		if err != nil {
			return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Update: marshal stats: %w", err)
		}
		sets = append(sets, "stats = @stats")
		args["stats"] = b
	}

	q := `UPDATE activities SET ` + strings.Join(sets, ", ") +
		` WHERE id = @id RETURNING ` + activityColumns

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanActivity(row)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("repo.ActivityRepo.Update: %w", err)
	}
	return result, nil
}

// Delete removes an activity by primary key.
func (r *pgActivityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM activities WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.ActivityRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ActivityRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// marshalGeometry serializes the three jsonb payloads for an INSERT.
// Nil slices are stored as empty JSON arrays so reads never see SQL NULL
// for an activity that simply has no points yet.
func marshalGeometry(points, route []domain.TrackPoint, stats domain.ActivityStats) ([]byte, []byte, []byte, error) {
	if points == nil {
		points = []domain.TrackPoint{}
	}
	if route == nil {
		route = []domain.TrackPoint{}
	}
	p, err := json.Marshal(points)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal points: %w", err)
	}
	r, err := json.Marshal(route)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal route: %w", err)
	}
	s, err := json.Marshal(stats)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal stats: %w", err)
	}
	return p, r, s, nil
}

// marshalTags serializes the tag list, nil becoming an empty JSON array.
func marshalTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return b, nil
}

// scanActivity maps a single database row into a domain.Activity.
// points and route arrive as raw jsonb (NULL in summary queries).
func scanActivity(s scanner) (domain.Activity, error) {
	var (
		a         domain.Activity
		id        pgtype.UUID
		journeyID pgtype.UUID
		fileRef   pgtype.UUID
		status    string
		tags      []byte
		points    []byte
		route     []byte
		stats     []byte
	)

	err := s.Scan(&id, &journeyID, &a.Name, &a.Sport, &a.Color, &a.Notes, &tags,
		&status, &a.Error, &fileRef, &points, &route, &stats, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Activity{}, domain.ErrNotFound
		}
		return domain.Activity{}, err
	}

	a.ID = uuid.UUID(id.Bytes)
	a.JourneyID = uuid.UUID(journeyID.Bytes)
	a.Status = domain.ProcessingStatus(status)
	if fileRef.Valid {
		fr := uuid.UUID(fileRef.Bytes)
		a.FileRef = &fr
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &a.Tags); err != nil {
			return domain.Activity{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(points) > 0 {
		if err := json.Unmarshal(points, &a.Points); err != nil {
			return domain.Activity{}, fmt.Errorf("unmarshal points: %w", err)
		}
	}
	if len(route) > 0 {
		if err := json.Unmarshal(route, &a.Route); err != nil {
			return domain.Activity{}, fmt.Errorf("unmarshal route: %w", err)
		}
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &a.Stats); err != nil {
			return domain.Activity{}, fmt.Errorf("unmarshal stats: %w", err)
		}
	}

	return a, nil
}
