package reading

import (
	"fmt"
	"math"
)

// maxDateLength bounds the caller-supplied date string.
const maxDateLength = 64

// Validate checks a reading before it is stored.
// The date is only checked for presence and length, never parsed.
func Validate(r *Reading) error {
	if r.SensorID < 0 {
		return fmt.Errorf("%w: sensorId must not be negative", ErrInvalidReading)
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return fmt.Errorf("%w: reading must be a finite number", ErrInvalidReading)
	}
	if r.Date == "" {
		return fmt.Errorf("%w: date is required", ErrInvalidReading)
	}
	if len(r.Date) > maxDateLength {
		return fmt.Errorf("%w: date exceeds %d characters", ErrInvalidReading, maxDateLength)
	}
	return nil
}
