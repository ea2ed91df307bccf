package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. bad trim indices, merge across journeys).
// Handlers should map this to HTTP 422 Unprocessable Entity.
// Edit operations validate everything before mutating anything, so an
// ErrValidation always means nothing was persisted.
var ErrValidation = errors.New("validation error")

// ParseKind classifies why a track file failed to parse.
type ParseKind string

const (
	// ParseUnsupportedFormat: the bytes match none of the five formats.
	ParseUnsupportedFormat ParseKind = "unsupported-format"
	// ParseMalformed: the format was recognized but the content could not
	// be decoded (bad XML, bad FIT header/CRC, truncation, KMZ without KML).
	ParseMalformed ParseKind = "malformed"
	// ParseEmptyTrack: decode succeeded but yielded zero usable points.
	ParseEmptyTrack ParseKind = "empty-track"
)

// ParseError is the typed failure of the format parser. It is terminal for
// the one file it describes: ingestion records it on the activity and moves
// on, it never aborts a batch.
type ParseError struct {
	Kind   ParseKind
	Format Format // format attempted, FormatUnknown if sniffing failed
	Err    error  // underlying decode error, may be nil
}

func (e *ParseError) Error() string {
	msg := string(e.Kind)
	if e.Format != FormatUnknown {
		msg = fmt.Sprintf("%s %s file", msg, e.Format)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError builds a ParseError; err may be nil when the kind alone says
// everything (e.g. empty-track).
func NewParseError(kind ParseKind, format Format, err error) *ParseError {
	return &ParseError{Kind: kind, Format: format, Err: err}
}
