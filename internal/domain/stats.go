package domain

import "time"

// BoundingBox is the axis-aligned rectangle enclosing all points of a track,
// in WGS84 degrees.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Center returns the midpoint of the box. This is the one center convention
// used everywhere in the pipeline; see LatLon on ActivityStats.
func (b BoundingBox) Center() LatLon {
	return LatLon{
		Lat: (b.North + b.South) / 2,
		Lon: (b.East + b.West) / 2,
	}
}

// LatLon is a bare WGS84 coordinate pair.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ActivityStats holds everything derived from an activity's point sequence.
// It is never hand-edited: any change to the points recomputes the whole
// struct from scratch.
//
// Distances and elevations are whole meters (rounded at the boundary, float
// internally); durations are whole seconds; speeds stay float m/s.
type ActivityStats struct {
	Distance      int `json:"distance_m"`
	Duration      int `json:"duration_s"`
	ElevationGain int `json:"elevation_gain_m"`
	ElevationLoss int `json:"elevation_loss_m"`
	MaxElevation  int `json:"max_elevation_m"`
	MinElevation  int `json:"min_elevation_m"`

	AvgSpeed float64 `json:"avg_speed_mps"`
	MaxSpeed float64 `json:"max_speed_mps"`

	Bounds BoundingBox `json:"bounds"`
	Center LatLon      `json:"center"`

	// StartTime is the first sample's timestamp, nil for untimed tracks.
	// Merge ordering and journey last-activity tracking read this instead of
	// going back to the raw points.
	StartTime *time.Time `json:"start_time,omitempty"`
}
