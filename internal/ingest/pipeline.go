// Package ingest runs the per-file processing lifecycle:
//
//	pending → uploading → processing → completed | failed
//
// One Pipeline.Run call advances exactly one uploaded file through the whole
// lifecycle. Failures are terminal for that file only: the activity is
// patched to failed with a human-readable message, nothing partial is
// persisted, and siblings in the same batch are unaffected.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/okranz/tracklog/internal/domain"
	"github.com/okranz/tracklog/internal/geo"
	"github.com/okranz/tracklog/internal/repo"
	"github.com/okranz/tracklog/internal/service"
	"github.com/okranz/tracklog/internal/simplify"
	"github.com/okranz/tracklog/internal/track"
)

// Job is one uploaded file waiting to be ingested.
type Job struct {
	JourneyID   uuid.UUID
	FileName    string
	ContentType string
	Data        []byte
}

// Pipeline advances jobs through the processing state machine.
type Pipeline struct {
	activities repo.ActivityRepo
	blobs      repo.BlobRepo
	recalc     service.JourneyRecalculator
	log        *slog.Logger

	routeTolerance float64
}

// NewPipeline constructs a Pipeline.
func NewPipeline(activities repo.ActivityRepo, blobs repo.BlobRepo, recalc service.JourneyRecalculator, log *slog.Logger) *Pipeline {
	return &Pipeline{
		activities:     activities,
		blobs:          blobs,
		recalc:         recalc,
		log:            log,
		routeTolerance: simplify.DefaultToleranceMeters,
	}
}

// CreatePending creates the placeholder activity for a job. It is separate
// from Run so an upload handler can hand back activity IDs immediately and
// let the rest of the lifecycle proceed in the background.
func (p *Pipeline) CreatePending(ctx context.Context, job Job) (domain.Activity, error) {
	activity, err := p.activities.Create(ctx, domain.Activity{
		JourneyID: job.JourneyID,
		Name:      pendingName(job.FileName),
		Status:    domain.StatusPending,
	})
	if err != nil {
		return domain.Activity{}, fmt.Errorf("ingest.Pipeline.CreatePending: %w", err)
	}
	return activity, nil
}

// Run drives one pending activity through uploading and processing to a
// terminal state. The returned activity is the final persisted record; its
// Status tells the caller how the file fared. The error return is reserved
// for infrastructure failures (the activity row itself could not be written)
// — parse and storage failures are recorded on the activity, not returned.
// A per-job deadline that elapses at any stage, including during the parse,
// likewise ends in a recorded failed status, never a stranded non-terminal
// row.
//
// Run never resurrects a terminal activity: retrying a failed file means
// creating a fresh pending one.
func (p *Pipeline) Run(ctx context.Context, activity domain.Activity, job Job) (domain.Activity, error) {
	if activity.Status.Terminal() {
		return activity, fmt.Errorf("ingest.Pipeline.Run: activity %s already %s", activity.ID, activity.Status)
	}

	log := p.log.With("activity_id", activity.ID, "file", job.FileName)
	log.Info("ingest started", "bytes", len(job.Data))

	// --- uploading --------------------------------------------------------
	if _, err := p.setStatus(ctx, activity.ID, domain.StatusUploading); err != nil {
		return p.persistErr(ctx, activity.ID, err, log)
	}
	ref, err := p.blobs.Put(ctx, job.Data, job.ContentType)
	if err != nil {
		// Transport/storage failure is terminal for this file.
		return p.fail(ctx, activity.ID, fmt.Errorf("storing uploaded file: %w", err), log)
	}
	if _, err := p.activities.Update(ctx, activity.ID, domain.ActivityUpdate{FileRef: &ref}); err != nil {
		return p.persistErr(ctx, activity.ID, fmt.Errorf("ingest.Pipeline.Run: attach file ref: %w", err), log)
	}

	// --- processing -------------------------------------------------------
	if _, err := p.setStatus(ctx, activity.ID, domain.StatusProcessing); err != nil {
		return p.persistErr(ctx, activity.ID, err, log)
	}
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, activity.ID, fmt.Errorf("processing timed out: %w", err), log)
	}

	raw, err := track.Parse(job.Data, track.FormatFromFilename(job.FileName))
	if err != nil {
		return p.fail(ctx, activity.ID, err, log)
	}

	stats := geo.ComputeStats(raw.Points)
	route := simplify.Simplify(raw.Points, p.routeTolerance)

	// One atomic patch carries everything: final name, geometry, stats, and
	// the completed status. A crash before this line leaves a processing
	// activity with no partial stats.
	name := finalName(raw, job.FileName)
	completed := domain.StatusCompleted
	updated, err := p.activities.Update(ctx, activity.ID, domain.ActivityUpdate{
		Name:       &name,
		Sport:      &raw.Sport,
		Status:     &completed,
		ClearError: true,
		Points:     &raw.Points,
		Route:      &route,
		Stats:      &stats,
	})
	if err != nil {
		return p.persistErr(ctx, activity.ID, fmt.Errorf("ingest.Pipeline.Run: persist result: %w", err), log)
	}

	if err := p.recalc.Recalculate(ctx, job.JourneyID); err != nil {
		return updated, fmt.Errorf("ingest.Pipeline.Run: %w", err)
	}

	log.Info("ingest completed",
		"points", len(updated.Points),
		"route_points", len(updated.Route),
		"distance_m", updated.Stats.Distance,
	)
	return updated, nil
}

// setStatus records a lifecycle transition.
func (p *Pipeline) setStatus(ctx context.Context, id uuid.UUID, status domain.ProcessingStatus) (domain.Activity, error) {
	a, err := p.activities.Update(ctx, id, domain.ActivityUpdate{Status: &status})
	if err != nil {
		return domain.Activity{}, fmt.Errorf("ingest.Pipeline.Run: set %s: %w", status, err)
	}
	return a, nil
}

// persistErr classifies a failed activity-row write. When the job's context
// has expired, the write was rejected because the per-job deadline elapsed
// (typically mid-parse, the one long stage): the job is abandoned and the
// activity still gets its terminal failed record, via fail's detached-context
// write. Any other write error is real infrastructure trouble and is returned.
func (p *Pipeline) persistErr(ctx context.Context, id uuid.UUID, err error, log *slog.Logger) (domain.Activity, error) {
	if ctx.Err() != nil {
		return p.fail(ctx, id, fmt.Errorf("processing timed out: %w", ctx.Err()), log)
	}
	return domain.Activity{}, err
}

// fail marks the activity failed with the error's message. The write uses a
// context detached from the job's cancellation so a timed-out job still gets
// its failure recorded.
func (p *Pipeline) fail(ctx context.Context, id uuid.UUID, cause error, log *slog.Logger) (domain.Activity, error) {
	log.Warn("ingest failed", "error", cause)

	failed := domain.StatusFailed
	msg := cause.Error()
	a, err := p.activities.Update(context.WithoutCancel(ctx), id, domain.ActivityUpdate{
		Status: &failed,
		Error:  &msg,
	})
	if err != nil {
		return domain.Activity{}, fmt.Errorf("ingest.Pipeline.Run: record failure: %w", err)
	}
	return a, nil
}

// pendingName is the descriptive placeholder name an activity carries before
// the file's own metadata is known.
func pendingName(fileName string) string {
	if fileName == "" {
		return "Uploaded activity"
	}
	return "Processing " + fileName
}

// finalName prefers the name declared inside the track file, falling back to
// the upload's file name stripped of its extension.
func finalName(raw domain.RawTrack, fileName string) string {
	if n := strings.TrimSpace(raw.Name); n != "" {
		return n
	}
	if i := strings.LastIndex(fileName, "."); i > 0 {
		fileName = fileName[:i]
	}
	if fileName == "" {
		return "Imported activity"
	}
	return fileName
}
