package reading

import "errors"

// Domain errors for the reading package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, reading.ErrNotFound) {
//	    // 404
//	}
var (
	// ErrNotFound is returned when no reading matches the lookup.
	ErrNotFound = errors.New("reading: not found")

	// ErrStoreUnavailable is returned when the store cannot be reached.
	ErrStoreUnavailable = errors.New("reading: store unavailable")

	// ErrWriteFailure is returned when the store rejects a write.
	ErrWriteFailure = errors.New("reading: write failed")

	// ErrInvalidReading is returned when a reading fails validation.
	ErrInvalidReading = errors.New("reading: invalid")
)
