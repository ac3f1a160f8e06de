package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMediaType is returned for uploads that are not PDFs.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrCorruptDocument is returned when a PDF cannot be parsed at all.
	ErrCorruptDocument = errors.New("corrupt document")
	// ErrDetectorUnavailable covers transport failures talking to the detector.
	ErrDetectorUnavailable = errors.New("detector unavailable")
	// ErrDetectorProtocol covers malformed detector responses.
	ErrDetectorProtocol = errors.New("detector protocol error")
	// ErrUnparsableDate is returned when a candidate date cannot be parsed.
	ErrUnparsableDate = errors.New("unparsable date")
	// ErrAuthMissing is returned when publishing without a bearer token.
	ErrAuthMissing = errors.New("missing calendar credentials")
)

// RejectedError reports an event the calendar provider refused to create.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("calendar rejected event: %s", e.Reason)
}
