package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okranz/tracklog/internal/domain"
	"github.com/okranz/tracklog/internal/geo"
	"github.com/okranz/tracklog/internal/repo"
	"github.com/okranz/tracklog/internal/simplify"
)

// JourneyRecalculator schedules a full aggregate recompute for a journey.
// Defined here (in the consumer) so ActivityService can be unit-tested with a
// recorder instead of a real JourneyService.
type JourneyRecalculator interface {
	Recalculate(ctx context.Context, journeyID uuid.UUID) error
}

// ActivityService implements the structural edit operations — trim, split,
// merge, delete — plus reads. Every successful edit recomputes stats from the
// surviving points and schedules a journey aggregate recompute; every failed
// validation leaves all inputs untouched.
type ActivityService struct {
	activities repo.ActivityRepo
	blobs      repo.BlobRepo
	recalc     JourneyRecalculator

	// routeTolerance is the Douglas-Peucker tolerance (meters) used when
	// regenerating render geometry after an edit.
	routeTolerance float64
}

// NewActivityService constructs an ActivityService backed by the provided
// repos and recalculator.
func NewActivityService(activities repo.ActivityRepo, blobs repo.BlobRepo, recalc JourneyRecalculator) *ActivityService {
	return &ActivityService{
		activities:     activities,
		blobs:          blobs,
		recalc:         recalc,
		routeTolerance: simplify.DefaultToleranceMeters,
	}
}

// GetByID returns a single activity, geometry included.
func (s *ActivityService) GetByID(ctx context.Context, id uuid.UUID) (domain.Activity, error) {
	result, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("service.ActivityService.GetByID: %w", err)
	}
	return result, nil
}

// ListByJourneyID returns geometry-free summaries of a journey's activities.
// Always returns a non-nil slice so callers can safely range over it.
func (s *ActivityService) ListByJourneyID(ctx context.Context, journeyID uuid.UUID) ([]domain.Activity, error) {
	activities, err := s.activities.ListByJourneyID(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("service.ActivityService.ListByJourneyID: %w", err)
	}
	if activities == nil {
		return []domain.Activity{}, nil
	}
	return activities, nil
}

// Delete removes an activity and its uploaded file, then recomputes the
// owning journey's aggregates.
func (s *ActivityService) Delete(ctx context.Context, id uuid.UUID) error {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service.ActivityService.Delete: %w", err)
	}
	if err := s.activities.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.ActivityService.Delete: %w", err)
	}
	if activity.FileRef != nil {
		if err := s.blobs.Delete(ctx, *activity.FileRef); err != nil {
			return fmt.Errorf("service.ActivityService.Delete: blob: %w", err)
		}
	}
	if err := s.recalc.Recalculate(ctx, activity.JourneyID); err != nil {
		return fmt.Errorf("service.ActivityService.Delete: %w", err)
	}
	return nil
}

// Trim keeps points [startIndex..endIndex] inclusive, recomputes stats and
// route geometry, and persists the result in place.
// Requires 0 <= startIndex < endIndex <= len(points)-1.
func (s *ActivityService) Trim(ctx context.Context, id uuid.UUID, startIndex, endIndex int) (domain.Activity, error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("service.ActivityService.Trim: %w", err)
	}
	if err := requireEditable(activity); err != nil {
		return domain.Activity{}, err
	}
	n := len(activity.Points)
	if startIndex < 0 || startIndex >= endIndex || endIndex > n-1 {
		return domain.Activity{}, fmt.Errorf("%w: trim range [%d..%d] invalid for %d points",
			domain.ErrValidation, startIndex, endIndex, n)
	}

	points := domain.ClonePoints(activity.Points, startIndex, endIndex)
	updated, err := s.persistGeometry(ctx, id, points)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("service.ActivityService.Trim: %w", err)
	}
	if err := s.recalc.Recalculate(ctx, updated.JourneyID); err != nil {
		return domain.Activity{}, fmt.Errorf("service.ActivityService.Trim: %w", err)
	}
	return updated, nil
}

// Split cuts an activity at splitIndex into two. The original keeps
// [0..splitIndex]; a new activity owns [splitIndex..end], so the boundary
// point is shared and the halves stay spatially contiguous. The new activity
// inherits the original's descriptive fields.
// Requires 0 <= splitIndex < len(points)-1.
func (s *ActivityService) Split(ctx context.Context, id uuid.UUID, splitIndex int, newName string) (first, second domain.Activity, err error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return domain.Activity{}, domain.Activity{}, fmt.Errorf("service.ActivityService.Split: %w", err)
	}
	if err := requireEditable(activity); err != nil {
		return domain.Activity{}, domain.Activity{}, err
	}
	n := len(activity.Points)
	if splitIndex < 0 || splitIndex >= n-1 {
		return domain.Activity{}, domain.Activity{}, fmt.Errorf("%w: split index %d invalid for %d points",
			domain.ErrValidation, splitIndex, n)
	}

	if strings.TrimSpace(newName) == "" {
		newName = activity.Name + " (part 2)"
	}

	secondPoints := domain.ClonePoints(activity.Points, splitIndex, n-1)
	second = domain.Activity{
		JourneyID: activity.JourneyID,
		Name:      newName,
		Sport:     activity.Sport,
		Color:     activity.Color,
		Notes:     activity.Notes,
		Tags:      append([]string(nil), activity.Tags...),
		Status:    domain.StatusCompleted,
		Points:    secondPoints,
		Route:     simplify.Simplify(secondPoints, s.routeTolerance),
		Stats:     geo.ComputeStats(secondPoints),
	}
	// The second half is written before the original is trimmed: at every
	// point in the sequence the full track still exists somewhere, so no
	// failure can lose points.
	second, err = s.activities.Create(ctx, second)
	if err != nil {
		return domain.Activity{}, domain.Activity{}, fmt.Errorf("service.ActivityService.Split: %w", err)
	}

	firstPoints := domain.ClonePoints(activity.Points, 0, splitIndex)
	first, err = s.persistGeometry(ctx, id, firstPoints)
	if err != nil {
		// Remove the second half again so a failed split leaves the original
		// activity as the only copy of the track. The delete runs on a
		// detached context: the rollback must land even when the failure was
		// the request being cancelled.
		if delErr := s.activities.Delete(context.WithoutCancel(ctx), second.ID); delErr != nil {
			return domain.Activity{}, domain.Activity{},
				fmt.Errorf("service.ActivityService.Split: %w (remove second half %s: %v)", err, second.ID, delErr)
		}
		return domain.Activity{}, domain.Activity{}, fmt.Errorf("service.ActivityService.Split: %w", err)
	}

	if err := s.recalc.Recalculate(ctx, activity.JourneyID); err != nil {
		return domain.Activity{}, domain.Activity{}, fmt.Errorf("service.ActivityService.Split: %w", err)
	}
	return first, second, nil
}

// Merge concatenates two or more same-journey activities, in chronological
// order of activity start time, into one new activity.
//
// Merged totals are sums over the inputs (distance, duration, elevation) —
// not a recompute over the concatenated points, which would invent a bridge
// segment between the last point of one activity and the first of the next.
// Max speed is the max across inputs; average speed is merged distance over
// merged duration. Tags are unioned.
//
// All inputs are validated before anything is created or deleted, so a
// validation failure is a guaranteed no-op.
func (s *ActivityService) Merge(ctx context.Context, ids []uuid.UUID, mergedName string, keepOriginals bool) (domain.Activity, error) {
	if len(ids) < 2 {
		return domain.Activity{}, fmt.Errorf("%w: merge needs at least 2 activities", domain.ErrValidation)
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return domain.Activity{}, fmt.Errorf("%w: duplicate activity %s in merge", domain.ErrValidation, id)
		}
		seen[id] = true
	}

	inputs := make([]domain.Activity, 0, len(ids))
	for _, id := range ids {
		a, err := s.activities.GetByID(ctx, id)
		if err != nil {
			return domain.Activity{}, fmt.Errorf("service.ActivityService.Merge: %w", err)
		}
		if err := requireEditable(a); err != nil {
			return domain.Activity{}, err
		}
		if len(inputs) > 0 && a.JourneyID != inputs[0].JourneyID {
			return domain.Activity{}, fmt.Errorf("%w: activities belong to different journeys", domain.ErrValidation)
		}
		inputs = append(inputs, a)
	}

	// Earliest start time first. Untimed activities sort by creation time,
	// which is the best temporal signal they have.
	sort.SliceStable(inputs, func(i, j int) bool {
		return mergeOrderKey(inputs[i]).Before(mergeOrderKey(inputs[j]))
	})

	var points []domain.TrackPoint
	for _, a := range inputs {
		points = append(points, a.Points...)
	}
	merged := domain.Activity{
		JourneyID: inputs[0].JourneyID,
		Name:      mergedName,
		Sport:     inputs[0].Sport,
		Color:     inputs[0].Color,
		Tags:      unionTags(inputs),
		Status:    domain.StatusCompleted,
		Points:    points,
		Route:     simplify.Simplify(points, s.routeTolerance),
		Stats:     mergeStats(inputs, points),
	}
	if strings.TrimSpace(merged.Name) == "" {
		merged.Name = "Merged: " + inputs[0].Name
	}

	merged, err := s.activities.Create(ctx, merged)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("service.ActivityService.Merge: %w", err)
	}

	if !keepOriginals {
		for _, a := range inputs {
			if err := s.activities.Delete(ctx, a.ID); err != nil {
				return domain.Activity{}, fmt.Errorf("service.ActivityService.Merge: delete source: %w", err)
			}
			if a.FileRef != nil {
				if err := s.blobs.Delete(ctx, *a.FileRef); err != nil {
					return domain.Activity{}, fmt.Errorf("service.ActivityService.Merge: delete blob: %w", err)
				}
			}
		}
	}

	if err := s.recalc.Recalculate(ctx, merged.JourneyID); err != nil {
		return domain.Activity{}, fmt.Errorf("service.ActivityService.Merge: %w", err)
	}
	return merged, nil
}

// persistGeometry recomputes stats and route for a fresh point slice and
// patches the activity in one atomic update.
func (s *ActivityService) persistGeometry(ctx context.Context, id uuid.UUID, points []domain.TrackPoint) (domain.Activity, error) {
	route := simplify.Simplify(points, s.routeTolerance)
	stats := geo.ComputeStats(points)
	return s.activities.Update(ctx, id, domain.ActivityUpdate{
		Points: &points,
		Route:  &route,
		Stats:  &stats,
	})
}

// requireEditable rejects edits on activities that are still being ingested
// or that failed ingestion: neither has a trustworthy point sequence.
func requireEditable(a domain.Activity) error {
	if a.Status != domain.StatusCompleted {
		return fmt.Errorf("%w: activity %s is %s, not completed", domain.ErrValidation, a.ID, a.Status)
	}
	return nil
}

// mergeOrderKey is the chronological sort key for merge: the activity's start
// time, or its creation time when the track is untimed.
func mergeOrderKey(a domain.Activity) time.Time {
	if a.Stats.StartTime != nil {
		return *a.Stats.StartTime
	}
	return a.CreatedAt
}

// mergeStats combines per-input totals with geometry recomputed from the
// concatenated points (bounds, center, elevation range).
func mergeStats(inputs []domain.Activity, points []domain.TrackPoint) domain.ActivityStats {
	// Bounds, center, min/max elevation and start time come from the real
	// merged geometry.
	stats := geo.ComputeStats(points)

	// Totals are sums of the inputs, exactly.
	stats.Distance, stats.Duration = 0, 0
	stats.ElevationGain, stats.ElevationLoss = 0, 0
	stats.MaxSpeed = 0
	for _, a := range inputs {
		stats.Distance += a.Stats.Distance
		stats.Duration += a.Stats.Duration
		stats.ElevationGain += a.Stats.ElevationGain
		stats.ElevationLoss += a.Stats.ElevationLoss
		if a.Stats.MaxSpeed > stats.MaxSpeed {
			stats.MaxSpeed = a.Stats.MaxSpeed
		}
	}
	if stats.Duration > 0 {
		stats.AvgSpeed = float64(stats.Distance) / float64(stats.Duration)
	} else {
		stats.AvgSpeed = 0
	}
	return stats
}

// unionTags returns the de-duplicated union of all input tags, preserving
// first-seen order.
func unionTags(inputs []domain.Activity) []string {
	var out []string
	seen := make(map[string]bool)
	for _, a := range inputs {
		for _, t := range a.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
