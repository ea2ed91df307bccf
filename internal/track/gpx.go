package track

import (
	"github.com/tkrajina/gpxgo/gpx"

	"github.com/okranz/tracklog/internal/domain"
)

// parseGPX decodes a GPX document, flattening all tracks and segments into
// one sample sequence in document order.
func parseGPX(data []byte) (domain.RawTrack, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return domain.RawTrack{}, domain.NewParseError(domain.ParseMalformed, domain.FormatGPX, err)
	}

	raw := domain.RawTrack{Format: domain.FormatGPX, Name: doc.Name}

	for _, trk := range doc.Tracks {
		if raw.Name == "" {
			raw.Name = trk.Name
		}
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				tp := domain.TrackPoint{Lat: p.Latitude, Lon: p.Longitude}
				if p.Elevation.NotNull() {
					ele := p.Elevation.Value()
					tp.Elevation = &ele
				}
				if !p.Timestamp.IsZero() {
					ts := p.Timestamp
					tp.Time = &ts
				}
				raw.Points = append(raw.Points, tp)
			}
		}
	}
	return raw, nil
}
