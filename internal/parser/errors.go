package parser

import (
	"errors"

	"github.com/chainring/backend/internal/models"
)

// Failure kinds. Every fatal import error wraps exactly one of these.
var (
	// ErrMalformedStream means the interchange pair stream broke the section grammar.
	ErrMalformedStream = errors.New("malformed interchange stream")
	// ErrUnknownCommand means a drawing or room file used an unknown keyword.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidNumber means a coordinate, radius, angle or count was not numeric.
	ErrInvalidNumber = errors.New("invalid number")
	// ErrMissingField means a record had fewer tokens than its layout needs.
	ErrMissingField = errors.New("missing field")
	// ErrNoEncoding means no candidate encoding decoded the whole file.
	ErrNoEncoding = errors.New("no usable encoding")
	// ErrRead covers opening and reading the source.
	ErrRead = errors.New("read failed")
	// ErrUnsupportedFormat means no registered parser accepted the file.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

func parseErr(line int, content string, kind error, reason string) *models.ParseError {
	return &models.ParseError{Line: line, Content: content, Reason: reason, Err: kind}
}
