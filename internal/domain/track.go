// Package domain contains the core data types for the track-processing
// pipeline. This package has zero heavy dependencies and is imported by every
// other internal package (track, geo, simplify, repo, service, ingest, handler).
package domain

import "time"

// TrackPoint is one sample of a recorded track.
// Latitude and longitude are WGS84 degrees. All other fields are optional
// because not every source format (or every device) records them; a nil
// pointer means "not recorded", which is distinct from zero.
type TrackPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	Elevation *float64   `json:"ele,omitempty"`  // meters
	Time      *time.Time `json:"time,omitempty"` // sample timestamp

	Speed       *float64 `json:"speed,omitempty"` // m/s, as reported by the device
	HeartRate   *int     `json:"hr,omitempty"`    // beats per minute
	Cadence     *int     `json:"cad,omitempty"`   // rpm or spm
	Power       *int     `json:"pwr,omitempty"`   // watts
	Temperature *float64 `json:"temp,omitempty"`  // degrees C
}

// Format identifies one of the supported track file formats.
type Format string

const (
	FormatGPX Format = "gpx"
	FormatTCX Format = "tcx"
	FormatKML Format = "kml"
	FormatKMZ Format = "kmz"
	FormatFIT Format = "fit"

	// FormatUnknown asks the parser to sniff the format from the bytes.
	FormatUnknown Format = ""
)

// RawTrack is the format-agnostic output of the parser: an ordered sample
// sequence plus whatever metadata the source file declared. Point order is
// source-file order; the pipeline assumes that order is temporal order and
// never re-sorts.
type RawTrack struct {
	// Format is the format the bytes actually decoded as. A KMZ upload
	// reports FormatKMZ even though the payload was KML.
	Format Format

	// Name is the track name declared inside the file, if any.
	Name string

	// Sport is the activity type declared by the file (TCX and FIT carry
	// one; GPX and KML usually do not). Free-form, lower-cased.
	Sport string

	Points []TrackPoint
}

// ClonePoints returns a copy of the points in [from..to] inclusive.
// Every structural edit goes through this so no two activities ever share a
// backing array.
func ClonePoints(points []TrackPoint, from, to int) []TrackPoint {
	out := make([]TrackPoint, to-from+1)
	copy(out, points[from:to+1])
	return out
}
