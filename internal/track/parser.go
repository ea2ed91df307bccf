// Package track decodes uploaded track files (GPX, TCX, KML, KMZ, FIT) into
// the canonical domain.RawTrack sample sequence.
//
// Parsing is a pure transform of bytes to data: no I/O, no side effects.
// Every failure resolves to a typed *domain.ParseError — a decode that yields
// zero points is an error, never a silently-empty success.
package track

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/okranz/tracklog/internal/domain"
)

// zipMagic is the local-file-header signature every ZIP (and so every KMZ)
// starts with.
var zipMagic = []byte("PK\x03\x04")

// FormatFromFilename maps a file extension to a format hint.
// Unknown extensions return domain.FormatUnknown, which makes Parse sniff.
func FormatFromFilename(name string) domain.Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gpx":
		return domain.FormatGPX
	case ".tcx":
		return domain.FormatTCX
	case ".kml":
		return domain.FormatKML
	case ".kmz":
		return domain.FormatKMZ
	case ".fit":
		return domain.FormatFIT
	default:
		return domain.FormatUnknown
	}
}

// Parse decodes data as the hinted format, sniffing the real format from the
// bytes when the hint is domain.FormatUnknown.
func Parse(data []byte, hint domain.Format) (domain.RawTrack, error) {
	format := hint
	if format == domain.FormatUnknown {
		format = sniff(data)
	}

	var (
		raw domain.RawTrack
		err error
	)
	switch format {
	case domain.FormatGPX:
		raw, err = parseGPX(data)
	case domain.FormatTCX:
		raw, err = parseTCX(data)
	case domain.FormatKML:
		raw, err = parseKML(data)
	case domain.FormatKMZ:
		raw, err = parseKMZ(data)
	case domain.FormatFIT:
		raw, err = parseFIT(data)
	default:
		return domain.RawTrack{}, domain.NewParseError(domain.ParseUnsupportedFormat, domain.FormatUnknown, nil)
	}
	if err != nil {
		return domain.RawTrack{}, err
	}

	if len(raw.Points) == 0 {
		return domain.RawTrack{}, domain.NewParseError(domain.ParseEmptyTrack, format, nil)
	}
	return raw, nil
}

// sniff guesses the format from the first bytes of the file.
func sniff(data []byte) domain.Format {
	if bytes.HasPrefix(data, zipMagic) {
		return domain.FormatKMZ
	}
	if isFITHeader(data) {
		return domain.FormatFIT
	}

	// XML formats: look for the root element within the first chunk so a
	// long declaration or comment doesn't hide it.
	head := data
	if len(head) > 2048 {
		head = head[:2048]
	}
	switch {
	case bytes.Contains(head, []byte("<gpx")):
		return domain.FormatGPX
	case bytes.Contains(head, []byte("<TrainingCenterDatabase")):
		return domain.FormatTCX
	case bytes.Contains(head, []byte("<kml")):
		return domain.FormatKML
	default:
		return domain.FormatUnknown
	}
}

// isFITHeader checks for the ".FIT" tag at bytes 8..11 of the FIT file header.
func isFITHeader(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[8:12], []byte(".FIT"))
}
