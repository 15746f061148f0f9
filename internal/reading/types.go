package reading

import (
	"strconv"
	"strings"
)

// ID is the opaque identifier assigned by the store on insert.
// MongoDB produces a 24-character hex ObjectID, SQLite a decimal row id.
type ID string

// String returns the identifier as a string.
func (id ID) String() string { return string(id) }

// Reading is a single sensor measurement.
//
// Date is whatever the caller supplied. It is not parsed, normalised, or
// used for anything other than ordering, and that ordering is a plain
// string comparison.
type Reading struct {
	ID       ID      `json:"id,omitempty"`
	SensorID int     `json:"sensorId"`
	Value    float64 `json:"reading"`
	Date     string  `json:"date"`
}

// DefaultListLimit is the fixed page size for ListRecent.
const DefaultListLimit = 20

// LookupKind distinguishes a lookup by identifier from a request for the latest reading.
type LookupKind int

const (
	// LookupByID fetches the reading with a specific ID.
	LookupByID LookupKind = iota

	// LookupLatest fetches the reading with the greatest date.
	LookupLatest
)

// Lookup selects a single reading: either ByID(id) or Latest().
type Lookup struct {
	Kind LookupKind
	ID   ID
}

// ByID returns a Lookup for the given identifier.
func ByID(id ID) Lookup {
	return Lookup{Kind: LookupByID, ID: id}
}

// Latest returns a Lookup for the most recently dated reading.
func Latest() Lookup {
	return Lookup{Kind: LookupLatest}
}

// ParseLookup converts a path identifier into a Lookup.
//
// A negative integer ("-1") or the word "latest" selects the latest reading.
// Anything else is treated as an identifier.
func ParseLookup(raw string) Lookup {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "latest") {
		return Latest()
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n < 0 {
		return Latest()
	}
	return ByID(ID(raw))
}
