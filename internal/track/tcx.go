package track

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/okranz/tracklog/internal/domain"
)

// TCX (Garmin Training Center) XML mapping. Only the elements the pipeline
// extracts are declared; everything else is ignored by encoding/xml.
type tcxFile struct {
	XMLName    xml.Name      `xml:"TrainingCenterDatabase"`
	Activities []tcxActivity `xml:"Activities>Activity"`
}

type tcxActivity struct {
	Sport string   `xml:"Sport,attr"`
	ID    string   `xml:"Id"`
	Laps  []tcxLap `xml:"Lap"`
}

type tcxLap struct {
	Trackpoints []tcxTrackpoint `xml:"Track>Trackpoint"`
}

type tcxTrackpoint struct {
	Time      string       `xml:"Time"`
	Position  *tcxPosition `xml:"Position"`
	Altitude  *float64     `xml:"AltitudeMeters"`
	HeartRate *int         `xml:"HeartRateBpm>Value"`
	Cadence   *int         `xml:"Cadence"`
}

type tcxPosition struct {
	Lat float64 `xml:"LatitudeDegrees"`
	Lon float64 `xml:"LongitudeDegrees"`
}

// parseTCX decodes a TCX document. Trackpoints without a Position element
// (heart-rate-only samples recorded indoors or during GPS dropout) carry no
// coordinate and are skipped.
func parseTCX(data []byte) (domain.RawTrack, error) {
	var doc tcxFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return domain.RawTrack{}, domain.NewParseError(domain.ParseMalformed, domain.FormatTCX, err)
	}

	raw := domain.RawTrack{Format: domain.FormatTCX}

	for _, act := range doc.Activities {
		if raw.Sport == "" && act.Sport != "" {
			raw.Sport = strings.ToLower(act.Sport)
		}
		for _, lap := range act.Laps {
			for _, p := range lap.Trackpoints {
				if p.Position == nil {
					continue
				}
				tp := domain.TrackPoint{Lat: p.Position.Lat, Lon: p.Position.Lon}
				if p.Altitude != nil {
					ele := *p.Altitude
					tp.Elevation = &ele
				}
				if ts, err := time.Parse(time.RFC3339, p.Time); err == nil {
					tp.Time = &ts
				}
				if p.HeartRate != nil {
					hr := *p.HeartRate
					tp.HeartRate = &hr
				}
				if p.Cadence != nil {
					cad := *p.Cadence
					tp.Cadence = &cad
				}
				raw.Points = append(raw.Points, tp)
			}
		}
	}
	return raw, nil
}
