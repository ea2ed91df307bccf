package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus is the per-file ingestion lifecycle state.
// Transitions are strictly forward: pending → uploading → processing →
// completed | failed. Completed and failed are terminal; a retry is a brand
// new pending activity, never a resurrected failed one.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusUploading  ProcessingStatus = "uploading"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Activity is one recorded outdoor activity under a journey.
// It exclusively owns its point sequence: edit operations always copy into a
// fresh slice, never hand out views into another activity's points.
type Activity struct {
	ID        uuid.UUID `json:"id"`
	JourneyID uuid.UUID `json:"journey_id"`

	Name  string `json:"name"`
	Sport string `json:"sport,omitempty"`
	Color string `json:"color,omitempty"` // render color, "#rrggbb"
	Notes string `json:"notes,omitempty"`
	// Tags are free-form labels. Merge unions them; split copies them.
	Tags []string `json:"tags,omitempty"`

	Status ProcessingStatus `json:"status"`
	// Error is the human-readable failure message, set only when Status is
	// StatusFailed.
	Error string `json:"error,omitempty"`

	// FileRef points at the original uploaded bytes in the object store.
	// Nil for activities created by split/merge, which have no source file.
	FileRef *uuid.UUID `json:"file_ref,omitempty"`

	// Points is the canonical full-resolution sequence; Route is the
	// simplified render geometry. Stats are always derived from Points,
	// never from Route.
	Points []TrackPoint  `json:"points,omitempty"`
	Route  []TrackPoint  `json:"route,omitempty"`
	Stats  ActivityStats `json:"stats"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Journey is the top-level grouping of activities. The aggregate fields are a
// full recompute over the journey's current activities — never incremented in
// place — so repeated or concurrent recomputation converges.
type Journey struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	TotalDistance      int        `json:"total_distance_m"`
	TotalElevationGain int        `json:"total_elevation_gain_m"`
	TotalDuration      int        `json:"total_duration_s"`
	ActivityCount      int        `json:"activity_count"`
	LastActivityAt     *time.Time `json:"last_activity_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JourneyAggregates carries a freshly recomputed set of journey totals from
// the service layer to the repo, applied as a single UPDATE.
type JourneyAggregates struct {
	TotalDistance      int
	TotalElevationGain int
	TotalDuration      int
	ActivityCount      int
	LastActivityAt     *time.Time
}

// ActivityUpdate is a typed patch for an activity row. Nil fields are left
// untouched; set fields are written together in one UPDATE so a patch is
// atomic. This replaces ad hoc field-merge maps: every partial write in the
// pipeline goes through this struct.
type ActivityUpdate struct {
	Name   *string
	Sport  *string
	Color  *string
	Notes  *string
	Tags   *[]string
	Status *ProcessingStatus
	Error  *string
	// ClearError resets the error text to empty. Separate from Error so a
	// patch can distinguish "leave it" (both zero) from "blank it".
	ClearError bool

	FileRef *uuid.UUID

	Points *[]TrackPoint
	Route  *[]TrackPoint
	Stats  *ActivityStats
}
