package track

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/okranz/tracklog/internal/domain"
)

// maxKMZEntryBytes caps how much we will decompress from a single KMZ entry.
// A KMZ is attacker-supplied input; without a cap a small zip bomb could
// balloon into gigabytes.
const maxKMZEntryBytes = 64 << 20

// parseKMZ unzips a KMZ container, locates the KML payload, and delegates to
// the KML parser. KMZ is not a track format itself — a KMZ with no .kml entry
// is malformed, not empty.
func parseKMZ(data []byte) (domain.RawTrack, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.RawTrack{}, domain.NewParseError(domain.ParseMalformed, domain.FormatKMZ, err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			continue
		}
		// Convention is a single doc.kml at the root; failing that, take
		// the first KML entry found.
		if entry == nil || strings.EqualFold(f.Name, "doc.kml") {
			entry = f
		}
	}
	if entry == nil {
		return domain.RawTrack{}, domain.NewParseError(domain.ParseMalformed, domain.FormatKMZ,
			errors.New("no KML entry in archive"))
	}

	rc, err := entry.Open()
	if err != nil {
		return domain.RawTrack{}, domain.NewParseError(domain.ParseMalformed, domain.FormatKMZ, err)
	}
	defer rc.Close()

	payload, err := io.ReadAll(io.LimitReader(rc, maxKMZEntryBytes))
	if err != nil {
		return domain.RawTrack{}, domain.NewParseError(domain.ParseMalformed, domain.FormatKMZ, err)
	}

	raw, err := parseKML(payload)
	if err != nil {
		// Report the container format the caller actually uploaded.
		var perr *domain.ParseError
		if errors.As(err, &perr) {
			return domain.RawTrack{}, domain.NewParseError(perr.Kind, domain.FormatKMZ, perr.Err)
		}
		return domain.RawTrack{}, err
	}
	raw.Format = domain.FormatKMZ
	return raw, nil
}
