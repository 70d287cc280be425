package request

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat matches every *FormatError.
	ErrFormat = errors.New("malformed request")

	// ErrMissingRequestLine is returned when the header block is empty.
	ErrMissingRequestLine = errors.New("missing request line")

	// ErrMissingContentLength is returned when a POST has no Content-Length header.
	ErrMissingContentLength = errors.New("missing Content-Length header")

	// ErrBodyTooLarge is returned when Content-Length exceeds the parser limit.
	ErrBodyTooLarge = errors.New("declared body exceeds limit")

	// ErrTruncatedBody matches every *TruncatedBodyError.
	ErrTruncatedBody = errors.New("request body truncated")
)

// FormatError reports request content that cannot be interpreted.
type FormatError struct {
	// Field names the offending element, e.g. "Content-Length".
	Field string
	// Value is the raw value as received, if any.
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("request: invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("request: invalid %s: %v", e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFormat) true for any FormatError.
func (*FormatError) Is(target error) bool { return target == ErrFormat }

// IOError reports a failure of the underlying stream while reading the
// header block. It is fatal to the parse.
type IOError struct {
	// Op is what the parser was doing, e.g. "reading header block".
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("request: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// TruncatedBodyError reports that the stream ended before Content-Length
// bytes of body were read. The request returned alongside it carries the
// partial body.
type TruncatedBodyError struct {
	Declared int
	Read     int
}

func (e *TruncatedBodyError) Error() string {
	return fmt.Sprintf("request: body truncated: read %d of %d bytes", e.Read, e.Declared)
}

// Is makes errors.Is(err, ErrTruncatedBody) true for any TruncatedBodyError.
func (*TruncatedBodyError) Is(target error) bool { return target == ErrTruncatedBody }
