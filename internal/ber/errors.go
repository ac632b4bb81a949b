package ber

import (
	"errors"
	"fmt"
)

// Structural decoder errors. Any of these terminates decoding of a stream.
var (
	// ErrMalformedTag is returned for an invalid high tag number continuation.
	ErrMalformedTag = errors.New("ber: malformed tag")

	// ErrMalformedLength is returned for invalid long form length octets, an
	// indefinite length on a primitive tag, or a length that overruns the
	// enclosing value.
	ErrMalformedLength = errors.New("ber: malformed length")

	// ErrUnexpectedEndOfContents is returned when an end-of-contents marker
	// appears outside an indefinite-length constructed value.
	ErrUnexpectedEndOfContents = errors.New("ber: unexpected end-of-contents")

	// ErrTruncatedStream is returned by Close when the stream ends inside a TLV.
	ErrTruncatedStream = errors.New("ber: truncated stream")

	// ErrMaxDepthExceeded is returned when nesting exceeds the configured depth.
	ErrMaxDepthExceeded = errors.New("ber: maximum nesting depth exceeded")

	// ErrLengthLimitExceeded is returned when a declared length exceeds the
	// configured maximum.
	ErrLengthLimitExceeded = errors.New("ber: length limit exceeded")

	// ErrDecoderClosed is returned by Feed after Close.
	ErrDecoderClosed = errors.New("ber: decoder closed")
)

// Content octet errors returned by the value helpers.
var (
	// ErrInvalidBoolean is returned when a boolean value has invalid length.
	ErrInvalidBoolean = errors.New("ber: invalid boolean encoding")

	// ErrInvalidInteger is returned when an integer value is malformed.
	ErrInvalidInteger = errors.New("ber: invalid integer encoding")

	// ErrInvalidNull is returned when a null value has non-zero length.
	ErrInvalidNull = errors.New("ber: invalid null encoding")

	// ErrInvalidOID is returned for malformed object identifier contents.
	ErrInvalidOID = errors.New("ber: invalid object identifier")
)

// Tree and encoder errors.
var (
	// ErrInvalidTuple is returned when a tuple violates the TLV model.
	ErrInvalidTuple = errors.New("ber: invalid tuple")

	// ErrNotConstructed is returned when appending a child to a primitive node.
	ErrNotConstructed = errors.New("ber: node is not constructed")

	// ErrInvalidNode is returned for a node id outside the tree.
	ErrInvalidNode = errors.New("ber: invalid node")

	// ErrLengthNotComputed is returned when serializing a node whose length
	// is still indefinite.
	ErrLengthNotComputed = errors.New("ber: length not computed")

	// ErrUnbalanced is returned when Begin and End calls do not pair up.
	ErrUnbalanced = errors.New("ber: unbalanced constructed encoding")
)

// DecodeError provides detailed information about a decoding failure.
type DecodeError struct {
	Offset  int    // Absolute stream offset where the error occurred
	Message string // Human-readable error description
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ber: decode error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("ber: decode error at offset %d: %s", e.Offset, e.Message)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a new DecodeError with the given parameters.
func NewDecodeError(offset int, message string, err error) *DecodeError {
	return &DecodeError{
		Offset:  offset,
		Message: message,
		Err:     err,
	}
}
