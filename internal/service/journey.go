// Package service contains the business logic for the track pipeline.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here — services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okranz/tracklog/internal/domain"
	"github.com/okranz/tracklog/internal/repo"
)

// JourneyService implements business logic for Journey operations, including
// the aggregate recalculator that rolls per-activity stats up to the journey.
type JourneyService struct {
	journeys   repo.JourneyRepo
	activities repo.ActivityRepo
	blobs      repo.BlobRepo
}

// NewJourneyService constructs a JourneyService backed by the provided repos.
func NewJourneyService(journeys repo.JourneyRepo, activities repo.ActivityRepo, blobs repo.BlobRepo) *JourneyService {
	return &JourneyService{journeys: journeys, activities: activities, blobs: blobs}
}

// Create validates and persists a new journey.
func (s *JourneyService) Create(ctx context.Context, journey domain.Journey) (domain.Journey, error) {
	if strings.TrimSpace(journey.Name) == "" {
		return domain.Journey{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	result, err := s.journeys.Create(ctx, journey)
	if err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.Create: %w", err)
	}
	return result, nil
}

// GetByID returns a single journey by ID.
func (s *JourneyService) GetByID(ctx context.Context, id uuid.UUID) (domain.Journey, error) {
	result, err := s.journeys.GetByID(ctx, id)
	if err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.GetByID: %w", err)
	}
	return result, nil
}

// List returns all journeys.
// Always returns a non-nil slice so callers can safely range over it.
func (s *JourneyService) List(ctx context.Context) ([]domain.Journey, error) {
	journeys, err := s.journeys.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.JourneyService.List: %w", err)
	}
	if journeys == nil {
		return []domain.Journey{}, nil
	}
	return journeys, nil
}

// Delete removes a journey, the uploaded files behind its activities, and
// (via FK cascade) the activity rows themselves.
func (s *JourneyService) Delete(ctx context.Context, id uuid.UUID) error {
	activities, err := s.activities.ListByJourneyID(ctx, id)
	if err != nil {
		return fmt.Errorf("service.JourneyService.Delete: %w", err)
	}
	for _, a := range activities {
		if a.FileRef == nil {
			continue
		}
		if err := s.blobs.Delete(ctx, *a.FileRef); err != nil {
			return fmt.Errorf("service.JourneyService.Delete: blob %s: %w", a.FileRef, err)
		}
	}
	if err := s.journeys.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.JourneyService.Delete: %w", err)
	}
	return nil
}

// Recalculate recomputes a journey's aggregate fields from its current
// activities and writes them in one UPDATE.
//
// It is always a full recompute — never a delta — which is what makes it safe
// to call repeatedly or concurrently after every create/update/delete/trim/
// split/merge: whoever writes last wrote totals derived from a full scan, so
// there is no lost-update hazard.
//
// Only completed activities contribute; pending, in-flight, and failed ones
// have no trustworthy stats.
func (s *JourneyService) Recalculate(ctx context.Context, journeyID uuid.UUID) error {
	activities, err := s.activities.ListByJourneyID(ctx, journeyID)
	if err != nil {
		return fmt.Errorf("service.JourneyService.Recalculate: %w", err)
	}

	agg := AggregateActivities(activities)

	if err := s.journeys.UpdateAggregates(ctx, journeyID, agg); err != nil {
		return fmt.Errorf("service.JourneyService.Recalculate: %w", err)
	}
	return nil
}

// AggregateActivities folds completed activities into journey totals.
// Pure function, exported for direct testing.
func AggregateActivities(activities []domain.Activity) domain.JourneyAggregates {
	var agg domain.JourneyAggregates
	var last *time.Time

	for _, a := range activities {
		if a.Status != domain.StatusCompleted {
			continue
		}
		agg.TotalDistance += a.Stats.Distance
		agg.TotalElevationGain += a.Stats.ElevationGain
		agg.TotalDuration += a.Stats.Duration
		agg.ActivityCount++

		at := a.Stats.StartTime
		if at == nil {
			// Untimed track: fall back to when it entered the system.
			t := a.CreatedAt
			at = &t
		}
		if last == nil || at.After(*last) {
			last = at
		}
	}

	if last != nil {
		t := *last
		agg.LastActivityAt = &t
	}
	return agg
}
