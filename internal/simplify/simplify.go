// Package simplify reduces track geometry for storage and rendering using
// Douglas-Peucker. Statistics are always computed from the unsimplified
// canonical points; nothing in this package feeds back into stats.
package simplify

import (
	"math"

	"github.com/okranz/tracklog/internal/domain"
	"github.com/okranz/tracklog/internal/geo"
)

// DefaultToleranceMeters is the storage tolerance applied at ingest. Five
// meters is around consumer GPS accuracy, so the rendered line stays visually
// identical while dropping the bulk of redundant samples.
const DefaultToleranceMeters = 5.0

// Simplify returns a reduced copy of points where every dropped point lies
// within toleranceMeters of the line between its surviving neighbors.
//
// Invariants: the first and last input points are always retained, order is
// preserved, and the result is a fresh slice that never aliases the input.
// Tolerance 0 drops only exact consecutive coordinate duplicates; distinct
// points survive even when they lie exactly on the chord between their
// neighbors.
func Simplify(points []domain.TrackPoint, toleranceMeters float64) []domain.TrackPoint {
	if len(points) <= 2 {
		out := make([]domain.TrackPoint, len(points))
		copy(out, points)
		return out
	}
	if toleranceMeters <= 0 {
		return dropExactDuplicates(points)
	}

	keep := make([]bool, len(points))
	keep[0], keep[len(points)-1] = true, true
	douglasPeucker(points, 0, len(points)-1, toleranceMeters, keep)

	out := make([]domain.TrackPoint, 0, len(points))
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

// douglasPeucker marks the point farthest from the chord [first..last] as
// kept when it exceeds the tolerance, then recurses on both halves.
func douglasPeucker(points []domain.TrackPoint, first, last int, tol float64, keep []bool) {
	if last-first < 2 {
		return
	}

	var (
		maxDist float64
		maxIdx  = -1
	)
	for i := first + 1; i < last; i++ {
		d := perpendicularDistance(points[i], points[first], points[last])
		if d > maxDist {
			maxDist, maxIdx = d, i
		}
	}

	if maxIdx < 0 {
		return
	}
	if maxDist > tol {
		keep[maxIdx] = true
		douglasPeucker(points, first, maxIdx, tol, keep)
		douglasPeucker(points, maxIdx, last, tol, keep)
	}
}

// dropExactDuplicates is the tolerance-0 path: every point whose coordinates
// differ from the previously kept one survives. Endpoints are always kept.
func dropExactDuplicates(points []domain.TrackPoint) []domain.TrackPoint {
	out := make([]domain.TrackPoint, 0, len(points))
	out = append(out, points[0])
	for i := 1; i < len(points)-1; i++ {
		prev := out[len(out)-1]
		if points[i].Lat == prev.Lat && points[i].Lon == prev.Lon {
			continue
		}
		out = append(out, points[i])
	}
	return append(out, points[len(points)-1])
}

// perpendicularDistance is the distance in meters from p to the segment
// [a, b]. Coordinates are projected onto a local flat plane around the
// segment, which is accurate to well under the tolerances used here for any
// plausible segment length.
func perpendicularDistance(p, a, b domain.TrackPoint) float64 {
	const deg = math.Pi / 180
	cosLat := math.Cos(a.Lat * deg)

	// Meters east/north of a.
	px := (p.Lon - a.Lon) * deg * cosLat * earthRadius
	py := (p.Lat - a.Lat) * deg * earthRadius
	bx := (b.Lon - a.Lon) * deg * cosLat * earthRadius
	by := (b.Lat - a.Lat) * deg * earthRadius

	segLenSq := bx*bx + by*by
	if segLenSq == 0 {
		// Degenerate segment: a and b coincide.
		return geo.Haversine(p.Lat, p.Lon, a.Lat, a.Lon)
	}

	// Clamp the projection to the segment.
	t := (px*bx + py*by) / segLenSq
	t = math.Max(0, math.Min(1, t))

	dx := px - t*bx
	dy := py - t*by
	return math.Sqrt(dx*dx + dy*dy)
}

const earthRadius = 6371000.0
