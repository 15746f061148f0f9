package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and key names for mirrored readings.
const (
	ReadingMeasurement = "sensor_readings"
	SensorIDTag        = "sensor_id"
	ValueField         = "value"
)

// readingTimeLayouts are tried in order when interpreting a reading date.
var readingTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// ReadingTime interprets a caller-supplied date as a point timestamp.
// Dates in neither RFC3339 nor "2006-01-02T15:04:05" (taken as UTC) fall
// back to now.
//
// Parameters:
//   - date: The reading's date string as stored
//   - now: Timestamp used when date does not parse
//
// Returns:
//   - time.Time: The point timestamp
func ReadingTime(date string, now time.Time) time.Time {
	for _, layout := range readingTimeLayouts {
		if ts, err := time.Parse(layout, date); err == nil {
			return ts
		}
	}
	return now
}

// NewReadingPoint builds the point for one sensor reading.
//
// Parameters:
//   - sensorID: Stored as the sensor_id tag
//   - value: Stored as the value field
//   - ts: Point timestamp
//
// Returns:
//   - *write.Point: A sensor_readings point ready for the write API
func NewReadingPoint(sensorID int, value float64, ts time.Time) *write.Point {
	return write.NewPoint(
		ReadingMeasurement,
		map[string]string{SensorIDTag: strconv.Itoa(sensorID)},
		map[string]interface{}{ValueField: value},
		ts,
	)
}

// WriteReading queues one sensor reading. The write is non-blocking and
// batched; failures surface through the SetOnError callback.
//
// Parameters:
//   - sensorID: Sensor that produced the reading
//   - value: The measured value
//   - date: The reading's date string, parsed by ReadingTime
//
// Returns:
//   - error: ErrNotConnected after Close
func (c *Client) WriteReading(sensorID int, value float64, date string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writeAPI.WritePoint(NewReadingPoint(sensorID, value, ReadingTime(date, time.Now())))
	return nil
}
