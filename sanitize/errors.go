package sanitize

import (
	"errors"
	"fmt"
)

// Stage sentinels. Every failure out of Engine.Sanitize wraps exactly one
// of these so callers can map it to a tool error or HTTP status without
// parsing messages.
var (
	// ErrProfileNotFound: the named profile does not exist. Raised before
	// the store is touched.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrDocumentUnavailable: the file identifier does not resolve to a
	// live object (unknown, malformed, or expired).
	ErrDocumentUnavailable = errors.New("document unavailable")
	// ErrExtractionFailed: the payload could not be parsed as its declared
	// format.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrPartialSanitization: at least one chunk never produced valid
	// model output. No partially sanitized text is ever returned.
	ErrPartialSanitization = errors.New("partial sanitization failure")
	// ErrBackendUnavailable: the model backend stayed unreachable through
	// the connection retry budget.
	ErrBackendUnavailable = errors.New("model backend unavailable")
	// ErrTimeout: the end-to-end deadline elapsed before the run finished.
	ErrTimeout = errors.New("sanitization timed out")
)

// ChunkError reports which chunk exhausted its retry budget without a
// valid model response. It unwraps to ErrPartialSanitization.
type ChunkError struct {
	Ordinal  int
	Attempts int
	Cause    error
}

func (e *ChunkError) Error() string {
	msg := fmt.Sprintf("chunk %d produced no valid output after %d attempts", e.Ordinal, e.Attempts)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ChunkError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrPartialSanitization, e.Cause}
	}
	return []error{ErrPartialSanitization}
}
