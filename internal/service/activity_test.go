package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okranz/tracklog/internal/domain"
	"github.com/okranz/tracklog/internal/geo"
	"github.com/okranz/tracklog/internal/repo"
	"github.com/okranz/tracklog/internal/service"
)

// mockActivityRepo is a hand-written test double for repo.ActivityRepo.
// Each method is a function field — set only the ones your test needs; an
// unset method panics, which is exactly what we want for "must not be called"
// assertions.
type mockActivityRepo struct {
	create          func(ctx context.Context, activity domain.Activity) (domain.Activity, error)
	getByID         func(ctx context.Context, id uuid.UUID) (domain.Activity, error)
	listByJourneyID func(ctx context.Context, journeyID uuid.UUID) ([]domain.Activity, error)
	update          func(ctx context.Context, id uuid.UUID, patch domain.ActivityUpdate) (domain.Activity, error)
	delete          func(ctx context.Context, id uuid.UUID) error
}

func (m *mockActivityRepo) Create(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	return m.create(ctx, activity)
}
func (m *mockActivityRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Activity, error) {
	return m.getByID(ctx, id)
}
func (m *mockActivityRepo) ListByJourneyID(ctx context.Context, journeyID uuid.UUID) ([]domain.Activity, error) {
	return m.listByJourneyID(ctx, journeyID)
}
func (m *mockActivityRepo) Update(ctx context.Context, id uuid.UUID, patch domain.ActivityUpdate) (domain.Activity, error) {
	return m.update(ctx, id, patch)
}
func (m *mockActivityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

var _ repo.ActivityRepo = (*mockActivityRepo)(nil)

// mockBlobRepo is a test double for repo.BlobRepo.
type mockBlobRepo struct {
	put    func(ctx context.Context, data []byte, contentType string) (uuid.UUID, error)
	get    func(ctx context.Context, ref uuid.UUID) ([]byte, error)
	delete func(ctx context.Context, ref uuid.UUID) error
}

func (m *mockBlobRepo) Put(ctx context.Context, data []byte, contentType string) (uuid.UUID, error) {
	return m.put(ctx, data, contentType)
}
func (m *mockBlobRepo) Get(ctx context.Context, ref uuid.UUID) ([]byte, error) {
	return m.get(ctx, ref)
}
func (m *mockBlobRepo) Delete(ctx context.Context, ref uuid.UUID) error {
	return m.delete(ctx, ref)
}

var _ repo.BlobRepo = (*mockBlobRepo)(nil)

// recalcRecorder records journey IDs passed to Recalculate.
type recalcRecorder struct {
	calls []uuid.UUID
}

func (r *recalcRecorder) Recalculate(_ context.Context, journeyID uuid.UUID) error {
	r.calls = append(r.calls, journeyID)
	return nil
}

var _ service.JourneyRecalculator = (*recalcRecorder)(nil)

// ---- fixtures --------------------------------------------------------------

// timedPoints builds n points spaced 0.001° apart on a meridian, one minute
// apart, with rising elevation.
func timedPoints(n int) []domain.TrackPoint {
	base := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	points := make([]domain.TrackPoint, n)
	for i := range points {
		ts := base.Add(time.Duration(i) * time.Minute)
		ele := 400.0 + float64(i)*10
		points[i] = domain.TrackPoint{
			Lat: 47.0 + float64(i)*0.001, Lon: 8.0,
			Time: &ts, Elevation: &ele,
		}
	}
	return points
}

// completedActivity builds a completed activity whose stats match its points.
func completedActivity(journeyID uuid.UUID, points []domain.TrackPoint) domain.Activity {
	return domain.Activity{
		ID:        uuid.New(),
		JourneyID: journeyID,
		Name:      "Ride",
		Sport:     "cycling",
		Status:    domain.StatusCompleted,
		Points:    points,
		Stats:     geo.ComputeStats(points),
		CreatedAt: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
	}
}

// fixedGet returns a getByID that serves the given activities by ID.
func fixedGet(activities ...domain.Activity) func(context.Context, uuid.UUID) (domain.Activity, error) {
	byID := make(map[uuid.UUID]domain.Activity, len(activities))
	for _, a := range activities {
		byID[a.ID] = a
	}
	return func(_ context.Context, id uuid.UUID) (domain.Activity, error) {
		a, ok := byID[id]
		if !ok {
			return domain.Activity{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
		}
		return a, nil
	}
}

// applyPatch mimics the repo's patch semantics closely enough for tests.
func applyPatch(a domain.Activity, patch domain.ActivityUpdate) domain.Activity {
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.Points != nil {
		a.Points = *patch.Points
	}
	if patch.Route != nil {
		a.Route = *patch.Route
	}
	if patch.Stats != nil {
		a.Stats = *patch.Stats
	}
	return a
}

// ---- Trim ------------------------------------------------------------------

func TestActivityService_Trim_RecomputesGeometry(t *testing.T) {
	journeyID := uuid.New()
	activity := completedActivity(journeyID, timedPoints(5))

	var gotPatch domain.ActivityUpdate
	activities := &mockActivityRepo{
		getByID: fixedGet(activity),
		update: func(_ context.Context, id uuid.UUID, patch domain.ActivityUpdate) (domain.Activity, error) {
			gotPatch = patch
			return applyPatch(activity, patch), nil
		},
	}
	recalc := &recalcRecorder{}
	svc := service.NewActivityService(activities, &mockBlobRepo{}, recalc)

	got, err := svc.Trim(context.Background(), activity.ID, 1, 3)

	require.NoError(t, err)
	require.Len(t, got.Points, 3)
	assert.Equal(t, activity.Points[1], got.Points[0])
	assert.Equal(t, activity.Points[3], got.Points[2])

	// Stats come from the surviving points only.
	require.NotNil(t, gotPatch.Stats)
	want := geo.ComputeStats(activity.Points[1:4])
	assert.Equal(t, want.Distance, gotPatch.Stats.Distance)
	assert.Equal(t, want.Duration, gotPatch.Stats.Duration)
	require.NotNil(t, gotPatch.Route)

	assert.Equal(t, []uuid.UUID{journeyID}, recalc.calls)
}

func TestActivityService_Trim_InvalidRangeIsNoOp(t *testing.T) {
	activity := completedActivity(uuid.New(), timedPoints(4))

	// update is deliberately unset: calling it would panic the test.
	activities := &mockActivityRepo{getByID: fixedGet(activity)}
	recalc := &recalcRecorder{}
	svc := service.NewActivityService(activities, &mockBlobRepo{}, recalc)

	tests := []struct {
		name       string
		start, end int
	}{
		{"negative start", -1, 2},
		{"start equals end", 2, 2},
		{"start after end", 3, 1},
		{"end out of range", 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Trim(context.Background(), activity.ID, tt.start, tt.end)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Empty(t, recalc.calls, "failed trims must not trigger recomputes")
}

func TestActivityService_Trim_RejectsUnfinishedActivity(t *testing.T) {
	activity := completedActivity(uuid.New(), timedPoints(4))
	activity.Status = domain.StatusProcessing

	activities := &mockActivityRepo{getByID: fixedGet(activity)}
	svc := service.NewActivityService(activities, &mockBlobRepo{}, &recalcRecorder{})

	_, err := svc.Trim(context.Background(), activity.ID, 0, 2)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---- Split -----------------------------------------------------------------

func TestActivityService_Split_SharesBoundaryPoint(t *testing.T) {
	journeyID := uuid.New()
	activity := completedActivity(journeyID, timedPoints(6))
	activity.Tags = []string{"alps"}

	var created domain.Activity
	activities := &mockActivityRepo{
		getByID: fixedGet(activity),
		create: func(_ context.Context, a domain.Activity) (domain.Activity, error) {
			a.ID = uuid.New()
			created = a
			return a, nil
		},
		update: func(_ context.Context, id uuid.UUID, patch domain.ActivityUpdate) (domain.Activity, error) {
			return applyPatch(activity, patch), nil
		},
	}
	recalc := &recalcRecorder{}
	svc := service.NewActivityService(activities, &mockBlobRepo{}, recalc)

	first, second, err := svc.Split(context.Background(), activity.ID, 2, "Descent")

	require.NoError(t, err)

	// The boundary point belongs to both halves: counts sum to n+1.
	assert.Len(t, first.Points, 3)
	assert.Len(t, second.Points, 4)
	assert.Equal(t, activity.Points[2], first.Points[len(first.Points)-1])
	assert.Equal(t, activity.Points[2], second.Points[0])

	// Distance is preserved across the cut (up to per-half rounding).
	total := geo.ComputeStats(activity.Points).Distance
	assert.InDelta(t, total, first.Stats.Distance+second.Stats.Distance, 1)

	// The new activity inherits descriptive fields and is born completed.
	assert.Equal(t, "Descent", second.Name)
	assert.Equal(t, "cycling", created.Sport)
	assert.Equal(t, []string{"alps"}, created.Tags)
	assert.Equal(t, domain.StatusCompleted, created.Status)
	assert.Equal(t, journeyID, created.JourneyID)

	assert.Equal(t, []uuid.UUID{journeyID}, recalc.calls)
}

func TestActivityService_Split_DefaultName(t *testing.T) {
	activity := completedActivity(uuid.New(), timedPoints(4))

	activities := &mockActivityRepo{
		getByID: fixedGet(activity),
		create: func(_ context.Context, a domain.Activity) (domain.Activity, error) {
			return a, nil
		},
		update: func(_ context.Context, id uuid.UUID, patch domain.ActivityUpdate) (domain.Activity, error) {
			return applyPatch(activity, patch), nil
		},
	}
	svc := service.NewActivityService(activities, &mockBlobRepo{}, &recalcRecorder{})

	_, second, err := svc.Split(context.Background(), activity.ID, 1, "  ")

	require.NoError(t, err)
	assert.Equal(t, "Ride (part 2)", second.Name)
}

func TestActivityService_Split_RollsBackSecondHalfOnPatchFailure(t *testing.T) {
	activity := completedActivity(uuid.New(), timedPoints(5))

	secondID := uuid.New()
	var deleted []uuid.UUID
	activities := &mockActivityRepo{
		getByID: fixedGet(activity),
		create: func(_ context.Context, a domain.Activity) (domain.Activity, error) {
			a.ID = secondID
			return a, nil
		},
		update: func(_ context.Context, id uuid.UUID, patch domain.ActivityUpdate) (domain.Activity, error) {
			return domain.Activity{}, fmt.Errorf("connection reset")
		},
		delete: func(_ context.Context, id uuid.UUID) error {
			deleted = append(deleted, id)
			return nil
		},
	}
	recalc := &recalcRecorder{}
	svc := service.NewActivityService(activities, &mockBlobRepo{}, recalc)

	_, _, err := svc.Split(context.Background(), activity.ID, 2, "Descent")

	require.Error(t, err)

	// The created second half is removed again, so the failed split leaves
	// only the untouched original behind.
	assert.Equal(t, []uuid.UUID{secondID}, deleted)
	assert.Empty(t, recalc.calls)
}

func TestActivityService_Split_InvalidIndexIsNoOp(t *testing.T) {
	activity := completedActivity(uuid.New(), timedPoints(4))

	activities := &mockActivityRepo{getByID: fixedGet(activity)}
	svc := service.NewActivityService(activities, &mockBlobRepo{}, &recalcRecorder{})

	for _, idx := range []int{-1, 3, 7} {
		_, _, err := svc.Split(context.Background(), activity.ID, idx, "")
		assert.ErrorIs(t, err, domain.ErrValidation, "index %d", idx)
	}
}

// ---- Merge -----------------------------------------------------------------

func TestActivityService_Merge_SumsTotalsExactly(t *testing.T) {
	journeyID := uuid.New()

	// b starts an hour before a: chronological order must put b first.
	a := completedActivity(journeyID, timedPoints(4))
	b := completedActivity(journeyID, func() []domain.TrackPoint {
		points := timedPoints(3)
		for i := range points {
			ts := points[i].Time.Add(-time.Hour)
			points[i].Time = &ts
			points[i].Lat += 1.0
		}
		return points
	}())
	a.Tags = []string{"alps", "solo"}
	b.Tags = []string{"solo", "rain"}

	var created domain.Activity
	activities := &mockActivityRepo{
		getByID: fixedGet(a, b),
		create: func(_ context.Context, m domain.Activity) (domain.Activity, error) {
			m.ID = uuid.New()
			created = m
			return m, nil
		},
	}
	recalc := &recalcRecorder{}
	svc := service.NewActivityService(activities, &mockBlobRepo{}, recalc)

	merged, err := svc.Merge(context.Background(), []uuid.UUID{a.ID, b.ID}, "Both days", true)

	require.NoError(t, err)

	// Totals are exact sums of the inputs — the virtual segment between the
	// two tracks contributes nothing.
	assert.Equal(t, a.Stats.Distance+b.Stats.Distance, merged.Stats.Distance)
	assert.Equal(t, a.Stats.Duration+b.Stats.Duration, merged.Stats.Duration)
	assert.Equal(t, a.Stats.ElevationGain+b.Stats.ElevationGain, merged.Stats.ElevationGain)
	assert.Equal(t, max(a.Stats.MaxSpeed, b.Stats.MaxSpeed), merged.Stats.MaxSpeed)

	// b's points come first despite being listed second.
	require.Len(t, merged.Points, 7)
	assert.Equal(t, b.Points[0], merged.Points[0])
	assert.Equal(t, a.Points[3], merged.Points[6])

	// Tag union, first-seen order across the requested inputs.
	assert.ElementsMatch(t, []string{"alps", "solo", "rain"}, created.Tags)

	assert.Equal(t, []uuid.UUID{journeyID}, recalc.calls)
}

func TestActivityService_Merge_DeletesSourcesUnlessKept(t *testing.T) {
	journeyID := uuid.New()
	a := completedActivity(journeyID, timedPoints(3))
	b := completedActivity(journeyID, timedPoints(3))
	fileRef := uuid.New()
	a.FileRef = &fileRef

	var deletedActivities, deletedBlobs []uuid.UUID
	activities := &mockActivityRepo{
		getByID: fixedGet(a, b),
		create: func(_ context.Context, m domain.Activity) (domain.Activity, error) {
			return m, nil
		},
		delete: func(_ context.Context, id uuid.UUID) error {
			deletedActivities = append(deletedActivities, id)
			return nil
		},
	}
	blobs := &mockBlobRepo{
		delete: func(_ context.Context, ref uuid.UUID) error {
			deletedBlobs = append(deletedBlobs, ref)
			return nil
		},
	}
	svc := service.NewActivityService(activities, blobs, &recalcRecorder{})

	_, err := svc.Merge(context.Background(), []uuid.UUID{a.ID, b.ID}, "Merged", false)

	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, deletedActivities)
	assert.Equal(t, []uuid.UUID{fileRef}, deletedBlobs)
}

func TestActivityService_Merge_ValidationIsNoOp(t *testing.T) {
	journeyID := uuid.New()
	a := completedActivity(journeyID, timedPoints(3))
	b := completedActivity(uuid.New(), timedPoints(3)) // different journey
	c := completedActivity(journeyID, timedPoints(3))
	c.Status = domain.StatusFailed

	// create/delete unset: any mutation panics the test.
	activities := &mockActivityRepo{getByID: fixedGet(a, b, c)}
	recalc := &recalcRecorder{}
	svc := service.NewActivityService(activities, &mockBlobRepo{}, recalc)

	tests := []struct {
		name string
		ids  []uuid.UUID
	}{
		{"fewer than two", []uuid.UUID{a.ID}},
		{"duplicate input", []uuid.UUID{a.ID, a.ID}},
		{"different journeys", []uuid.UUID{a.ID, b.ID}},
		{"failed input", []uuid.UUID{a.ID, c.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Merge(context.Background(), tt.ids, "Merged", false)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Empty(t, recalc.calls)
}

// ---- Delete ----------------------------------------------------------------

func TestActivityService_Delete_RemovesBlobAndRecalculates(t *testing.T) {
	journeyID := uuid.New()
	activity := completedActivity(journeyID, timedPoints(3))
	fileRef := uuid.New()
	activity.FileRef = &fileRef

	var deletedBlob uuid.UUID
	activities := &mockActivityRepo{
		getByID: fixedGet(activity),
		delete:  func(_ context.Context, id uuid.UUID) error { return nil },
	}
	blobs := &mockBlobRepo{
		delete: func(_ context.Context, ref uuid.UUID) error {
			deletedBlob = ref
			return nil
		},
	}
	recalc := &recalcRecorder{}
	svc := service.NewActivityService(activities, blobs, recalc)

	require.NoError(t, svc.Delete(context.Background(), activity.ID))
	assert.Equal(t, fileRef, deletedBlob)
	assert.Equal(t, []uuid.UUID{journeyID}, recalc.calls)
}

func TestActivityService_GetByID_NotFound(t *testing.T) {
	activities := &mockActivityRepo{getByID: fixedGet()}
	svc := service.NewActivityService(activities, &mockBlobRepo{}, &recalcRecorder{})

	_, err := svc.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
