package reading

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// createRequest is the wire shape of a new reading. Pointer fields
// distinguish a missing field from a zero value.
type createRequest struct {
	SensorID *int     `json:"sensorId"`
	Value    *float64 `json:"reading"`
	Date     *string  `json:"date"`
}

// Decode reads a single JSON reading from r.
//
// Field names match case-insensitively, so base station payloads such as
// {"SensorId":1,"Reading":20.5,"date":"..."} are accepted. Unknown fields,
// trailing data and missing fields are rejected with ErrInvalidReading.
// Any "id" in the payload is rejected as unknown; the store assigns IDs.
func Decode(r io.Reader) (Reading, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var req createRequest
	if err := dec.Decode(&req); err != nil {
		return Reading{}, fmt.Errorf("%w: malformed JSON: %w", ErrInvalidReading, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Reading{}, fmt.Errorf("%w: body must contain a single JSON object", ErrInvalidReading)
	}

	switch {
	case req.SensorID == nil:
		return Reading{}, fmt.Errorf("%w: sensorId is required", ErrInvalidReading)
	case req.Value == nil:
		return Reading{}, fmt.Errorf("%w: reading is required", ErrInvalidReading)
	case req.Date == nil:
		return Reading{}, fmt.Errorf("%w: date is required", ErrInvalidReading)
	}

	return Reading{
		SensorID: *req.SensorID,
		Value:    *req.Value,
		Date:     *req.Date,
	}, nil
}
