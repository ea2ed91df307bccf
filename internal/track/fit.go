package track

import (
	"bytes"
	"strings"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/basetype"
	"github.com/muktihari/fit/profile/filedef"
	"github.com/muktihari/fit/profile/typedef"

	"github.com/okranz/tracklog/internal/domain"
)

// FIT scaling constants, per the FIT profile: coordinates are stored as
// semicircles, altitude as (m + 500) * 5, speed as mm/s.
const (
	semicirclesToDegrees = 180.0 / 2147483648.0
	altitudeScale        = 5.0
	altitudeOffset       = 500.0
	speedScale           = 1000.0
)

// parseFIT decodes a binary FIT record stream. Any decoder failure — bad
// header, CRC mismatch, truncation — is terminal for the file; FIT gives no
// meaningful partial result.
func parseFIT(data []byte) (domain.RawTrack, error) {
	dec := decoder.New(bytes.NewReader(data))
	fit, err := dec.Decode()
	if err != nil {
		return domain.RawTrack{}, domain.NewParseError(domain.ParseMalformed, domain.FormatFIT, err)
	}

	act := filedef.NewActivity(fit.Messages...)
	raw := domain.RawTrack{Format: domain.FormatFIT}

	if len(act.Sessions) > 0 {
		if sport := act.Sessions[0].Sport; sport != typedef.SportInvalid {
			raw.Sport = strings.ToLower(sport.String())
		}
	}

	for _, rec := range act.Records {
		// Records without a position fix (tunnel, indoor warm-up) carry
		// invalid semicircles; they have no place in a geographic track.
		if rec.PositionLat == basetype.Sint32Invalid || rec.PositionLong == basetype.Sint32Invalid {
			continue
		}
		tp := domain.TrackPoint{
			Lat: float64(rec.PositionLat) * semicirclesToDegrees,
			Lon: float64(rec.PositionLong) * semicirclesToDegrees,
		}

		// Enhanced fields supersede the narrow legacy ones when present.
		switch {
		case rec.EnhancedAltitude != basetype.Uint32Invalid:
			ele := float64(rec.EnhancedAltitude)/altitudeScale - altitudeOffset
			tp.Elevation = &ele
		case rec.Altitude != basetype.Uint16Invalid:
			ele := float64(rec.Altitude)/altitudeScale - altitudeOffset
			tp.Elevation = &ele
		}
		switch {
		case rec.EnhancedSpeed != basetype.Uint32Invalid:
			spd := float64(rec.EnhancedSpeed) / speedScale
			tp.Speed = &spd
		case rec.Speed != basetype.Uint16Invalid:
			spd := float64(rec.Speed) / speedScale
			tp.Speed = &spd
		}

		if !rec.Timestamp.IsZero() {
			ts := rec.Timestamp
			tp.Time = &ts
		}
		if rec.HeartRate != basetype.Uint8Invalid {
			hr := int(rec.HeartRate)
			tp.HeartRate = &hr
		}
		if rec.Cadence != basetype.Uint8Invalid {
			cad := int(rec.Cadence)
			tp.Cadence = &cad
		}
		if rec.Power != basetype.Uint16Invalid {
			pwr := int(rec.Power)
			tp.Power = &pwr
		}
		if rec.Temperature != basetype.Sint8Invalid {
			temp := float64(rec.Temperature)
			tp.Temperature = &temp
		}

		raw.Points = append(raw.Points, tp)
	}
	return raw, nil
}
