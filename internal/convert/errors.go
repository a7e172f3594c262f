package convert

import (
	"errors"

	"shiftcal/internal/roster"
)

// Kind buckets conversion failures for callers that map them onto a
// transport, such as HTTP status codes.
type Kind int

const (
	KindUnknown Kind = iota
	// KindBadRequest: the caller's input was invalid before any parsing
	// happened, e.g. an empty search name.
	KindBadRequest
	// KindFormat: the bytes are not a recognizable roster grid.
	KindFormat
	// KindParse: the grid was recognized but a required value in it is
	// unusable.
	KindParse
	// KindFetch: the source file could not be retrieved. Assigned at the
	// transport boundary; Classify never returns it because fetching
	// happens before Convert runs.
	KindFetch
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindFormat:
		return "format"
	case KindParse:
		return "parse"
	case KindFetch:
		return "fetch"
	}
	return "unknown"
}

// RequestError reports invalid caller input.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string { return e.Msg }

// Classify maps an error returned by Convert to its Kind.
func Classify(err error) Kind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return KindBadRequest
	}
	var formatErr *roster.FormatError
	if errors.As(err, &formatErr) {
		return KindFormat
	}
	var parseErr *roster.ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}
	return KindUnknown
}
