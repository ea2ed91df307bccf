// Package geo derives statistics from track point sequences.
// Everything here is a pure function over []domain.TrackPoint: no I/O, no
// state, no mutation of the input. Internal math is float64; ComputeStats
// rounds meters and seconds to integers at the boundary.
package geo

import (
	"math"
	"time"

	"github.com/okranz/tracklog/internal/domain"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// minSegmentSeconds guards the max-speed scan against divide-by-near-zero
// blowups: segments shorter than this are skipped when looking for the
// fastest segment. They still count toward total distance.
const minSegmentSeconds = 0.5

// Haversine returns the great-circle distance in meters between two WGS84
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const deg = math.Pi / 180

	dLat := (lat2 - lat1) * deg
	dLon := (lon2 - lon1) * deg

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*deg)*math.Cos(lat2*deg)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// TotalDistance sums the haversine distance over all adjacent point pairs.
// Fewer than 2 points is a zero-length track, not an error.
func TotalDistance(points []domain.TrackPoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Haversine(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
	}
	return total
}

// Bounds returns the axis-aligned bounding box of the points.
// The zero box is returned for an empty slice.
func Bounds(points []domain.TrackPoint) domain.BoundingBox {
	if len(points) == 0 {
		return domain.BoundingBox{}
	}
	b := domain.BoundingBox{
		North: points[0].Lat, South: points[0].Lat,
		East: points[0].Lon, West: points[0].Lon,
	}
	for _, p := range points[1:] {
		b.North = math.Max(b.North, p.Lat)
		b.South = math.Min(b.South, p.Lat)
		b.East = math.Max(b.East, p.Lon)
		b.West = math.Min(b.West, p.Lon)
	}
	return b
}

// elevationRange holds the intermediate elevation sums before rounding.
type elevationRange struct {
	gain, loss float64
	min, max   float64
	seen       bool
}

// elevation walks consecutive elevation samples. Points without elevation are
// skipped entirely — they contribute neither gain nor loss, and do not break
// the delta chain (the next elevation sample compares against the last one
// that existed, not against zero).
func elevation(points []domain.TrackPoint) elevationRange {
	var (
		r    elevationRange
		prev float64
	)
	for _, p := range points {
		if p.Elevation == nil {
			continue
		}
		e := *p.Elevation
		if !r.seen {
			r.min, r.max, prev = e, e, e
			r.seen = true
			continue
		}
		if d := e - prev; d > 0 {
			r.gain += d
		} else {
			r.loss += -d
		}
		r.min = math.Min(r.min, e)
		r.max = math.Max(r.max, e)
		prev = e
	}
	return r
}

// Duration returns the elapsed time between the first and last timestamped
// points. Untimed tracks have duration 0 — no synthetic duration is invented.
func Duration(points []domain.TrackPoint) time.Duration {
	first, last := firstTime(points), lastTime(points)
	if first == nil || last == nil || last.Before(*first) {
		return 0
	}
	return last.Sub(*first)
}

// MaxSpeed returns the fastest per-segment speed in m/s. Segments with a time
// delta under minSegmentSeconds are excluded so a GPS burst of samples a few
// milliseconds apart cannot produce an absurd spike.
func MaxSpeed(points []domain.TrackPoint) float64 {
	var maxSpeed float64
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		if a.Time == nil || b.Time == nil {
			continue
		}
		dt := b.Time.Sub(*a.Time).Seconds()
		if dt < minSegmentSeconds {
			continue
		}
		d := Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
		if s := d / dt; s > maxSpeed {
			maxSpeed = s
		}
	}
	return maxSpeed
}

// ComputeStats derives the full ActivityStats from a point sequence.
// Zero or one point yields a zero-valued stats struct, no error.
func ComputeStats(points []domain.TrackPoint) domain.ActivityStats {
	var stats domain.ActivityStats
	if len(points) == 0 {
		return stats
	}

	distance := TotalDistance(points)
	duration := Duration(points).Seconds()

	stats.Distance = int(math.Round(distance))
	stats.Duration = int(math.Round(duration))

	ele := elevation(points)
	if ele.seen {
		stats.ElevationGain = int(math.Round(ele.gain))
		stats.ElevationLoss = int(math.Round(ele.loss))
		stats.MaxElevation = int(math.Round(ele.max))
		stats.MinElevation = int(math.Round(ele.min))
	}

	// Average speed is total/total, not a mean of segment speeds; zero
	// duration gives zero speed, never Inf or NaN.
	if duration > 0 {
		stats.AvgSpeed = distance / duration
	}
	stats.MaxSpeed = MaxSpeed(points)

	stats.Bounds = Bounds(points)
	stats.Center = stats.Bounds.Center()

	if t := firstTime(points); t != nil {
		st := *t
		stats.StartTime = &st
	}
	return stats
}

// firstTime returns the first non-nil timestamp in order, nil if none.
func firstTime(points []domain.TrackPoint) *time.Time {
	for _, p := range points {
		if p.Time != nil {
			return p.Time
		}
	}
	return nil
}

// lastTime returns the last non-nil timestamp in order, nil if none.
func lastTime(points []domain.TrackPoint) *time.Time {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Time != nil {
			return points[i].Time
		}
	}
	return nil
}
