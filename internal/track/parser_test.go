package track_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okranz/tracklog/internal/domain"
	"github.com/okranz/tracklog/internal/track"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="tracklog-test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>Morning Ride</name>
    <type>cycling</type>
    <trkseg>
      <trkpt lat="47.0000" lon="8.0000">
        <ele>410.5</ele>
        <time>2025-07-01T08:00:00Z</time>
      </trkpt>
      <trkpt lat="47.0010" lon="8.0005">
        <ele>415.0</ele>
        <time>2025-07-01T08:01:00Z</time>
      </trkpt>
      <trkpt lat="47.0020" lon="8.0010">
        <time>2025-07-01T08:02:00Z</time>
      </trkpt>
    </trkseg>
  </trk>
</gpx>`

const emptyGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="tracklog-test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><name>Nothing</name><trkseg></trkseg></trk>
</gpx>`

const sampleTCX = `<?xml version="1.0" encoding="UTF-8"?>
<TrainingCenterDatabase xmlns="http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2">
  <Activities>
    <Activity Sport="Running">
      <Lap StartTime="2025-07-01T08:00:00Z">
        <Track>
          <Trackpoint>
            <Time>2025-07-01T08:00:00Z</Time>
            <Position><LatitudeDegrees>47.0</LatitudeDegrees><LongitudeDegrees>8.0</LongitudeDegrees></Position>
            <AltitudeMeters>410.0</AltitudeMeters>
            <HeartRateBpm><Value>121</Value></HeartRateBpm>
            <Cadence>80</Cadence>
          </Trackpoint>
          <Trackpoint>
            <Time>2025-07-01T08:00:10Z</Time>
          </Trackpoint>
          <Trackpoint>
            <Time>2025-07-01T08:00:20Z</Time>
            <Position><LatitudeDegrees>47.001</LatitudeDegrees><LongitudeDegrees>8.0005</LongitudeDegrees></Position>
            <HeartRateBpm><Value>130</Value></HeartRateBpm>
          </Trackpoint>
        </Track>
      </Lap>
    </Activity>
  </Activities>
</TrainingCenterDatabase>`

const sampleKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Hike</name>
    <Placemark>
      <name>Trail</name>
      <LineString>
        <coordinates>
          8.0000,47.0000,410.5
          8.0005,47.0010,415.0
          8.0010,47.0020
        </coordinates>
      </LineString>
    </Placemark>
  </Document>
</kml>`

// parseErrorKind unwraps err to its *domain.ParseError and returns the kind.
func parseErrorKind(t *testing.T, err error) domain.ParseKind {
	t.Helper()
	var perr *domain.ParseError
	require.ErrorAs(t, err, &perr)
	return perr.Kind
}

// buildKMZ zips the given entries into an in-memory KMZ.
func buildKMZ(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestParse_GPX(t *testing.T) {
	raw, err := track.Parse([]byte(sampleGPX), domain.FormatGPX)
	require.NoError(t, err)

	assert.Equal(t, domain.FormatGPX, raw.Format)
	assert.Equal(t, "Morning Ride", raw.Name)
	require.Len(t, raw.Points, 3)

	first := raw.Points[0]
	assert.Equal(t, 47.0, first.Lat)
	assert.Equal(t, 8.0, first.Lon)
	require.NotNil(t, first.Elevation)
	assert.Equal(t, 410.5, *first.Elevation)
	require.NotNil(t, first.Time)

	// Third point carries no elevation; the field must stay nil rather than
	// becoming 0.
	assert.Nil(t, raw.Points[2].Elevation)
}

func TestParse_GPX_EmptyTrack(t *testing.T) {
	_, err := track.Parse([]byte(emptyGPX), domain.FormatGPX)

	require.Error(t, err)
	assert.Equal(t, domain.ParseEmptyTrack, parseErrorKind(t, err))
}

func TestParse_GPX_Malformed(t *testing.T) {
	_, err := track.Parse([]byte("<gpx><trk><trkseg>"), domain.FormatGPX)

	require.Error(t, err)
	assert.Equal(t, domain.ParseMalformed, parseErrorKind(t, err))
}

func TestParse_TCX(t *testing.T) {
	raw, err := track.Parse([]byte(sampleTCX), domain.FormatTCX)
	require.NoError(t, err)

	assert.Equal(t, domain.FormatTCX, raw.Format)
	assert.Equal(t, "running", raw.Sport)

	// The position-less trackpoint is skipped, not emitted at (0,0).
	require.Len(t, raw.Points, 2)

	first := raw.Points[0]
	require.NotNil(t, first.HeartRate)
	assert.Equal(t, 121, *first.HeartRate)
	require.NotNil(t, first.Cadence)
	assert.Equal(t, 80, *first.Cadence)
	require.NotNil(t, first.Elevation)
	assert.Equal(t, 410.0, *first.Elevation)

	second := raw.Points[1]
	assert.Equal(t, 47.001, second.Lat)
	assert.Nil(t, second.Cadence)
}

func TestParse_KML(t *testing.T) {
	raw, err := track.Parse([]byte(sampleKML), domain.FormatKML)
	require.NoError(t, err)

	assert.Equal(t, domain.FormatKML, raw.Format)
	require.Len(t, raw.Points, 3)

	assert.Equal(t, 47.0, raw.Points[0].Lat)
	assert.Equal(t, 8.0, raw.Points[0].Lon)
	require.NotNil(t, raw.Points[0].Elevation)
	assert.Equal(t, 410.5, *raw.Points[0].Elevation)

	// Two-component tuple: no elevation.
	assert.Nil(t, raw.Points[2].Elevation)
}

func TestParse_KMZ(t *testing.T) {
	data := buildKMZ(t, map[string]string{
		"doc.kml":    sampleKML,
		"styles.txt": "not a kml",
	})

	raw, err := track.Parse(data, domain.FormatKMZ)
	require.NoError(t, err)

	assert.Equal(t, domain.FormatKMZ, raw.Format)
	assert.Len(t, raw.Points, 3)
}

func TestParse_KMZ_NoKMLEntry(t *testing.T) {
	data := buildKMZ(t, map[string]string{"readme.txt": "nothing here"})

	_, err := track.Parse(data, domain.FormatKMZ)

	require.Error(t, err)
	assert.Equal(t, domain.ParseMalformed, parseErrorKind(t, err))
}

func TestParse_FIT_Malformed(t *testing.T) {
	// Valid-looking header tag, garbage body.
	data := append([]byte{14, 0x10, 0, 0, 0, 0, 0, 0}, []byte(".FIT")...)
	data = append(data, bytes.Repeat([]byte{0xAB}, 32)...)

	_, err := track.Parse(data, domain.FormatFIT)

	require.Error(t, err)
	assert.Equal(t, domain.ParseMalformed, parseErrorKind(t, err))
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := track.Parse([]byte("lat,lon\n47.0,8.0\n"), domain.FormatUnknown)

	require.Error(t, err)
	kind := parseErrorKind(t, err)
	assert.Equal(t, domain.ParseUnsupportedFormat, kind)

	var perr *domain.ParseError
	require.True(t, errors.As(err, &perr))
	assert.NotEmpty(t, perr.Error())
}

func TestParse_SniffsFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want domain.Format
	}{
		{"gpx", []byte(sampleGPX), domain.FormatGPX},
		{"tcx", []byte(sampleTCX), domain.FormatTCX},
		{"kml", []byte(sampleKML), domain.FormatKML},
		{"kmz", buildKMZ(t, map[string]string{"doc.kml": sampleKML}), domain.FormatKMZ},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := track.Parse(tt.data, domain.FormatUnknown)
			require.NoError(t, err)
			assert.Equal(t, tt.want, raw.Format)
		})
	}
}

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want domain.Format
	}{
		{"ride.gpx", domain.FormatGPX},
		{"Run.TCX", domain.FormatTCX},
		{"hike.kml", domain.FormatKML},
		{"tour.kmz", domain.FormatKMZ},
		{"activity.fit", domain.FormatFIT},
		{"notes.txt", domain.FormatUnknown},
		{"noext", domain.FormatUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, track.FormatFromFilename(tt.name), tt.name)
	}
}
