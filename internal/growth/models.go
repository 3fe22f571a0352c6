package growth

import (
	"encoding/json"

	"github.com/gofhir/fhir/r4"
)

// Category codes routed into a GrowthSeries.
const (
	CategoryHeight = "height"
	CategoryWeight = "weight"
)

// DefaultDateLayout renders dates the way an en-US locale date string does (1/2/2006).
const DefaultDateLayout = "1/2/2006"

// Measurement is a single dated reading. It is only built from a record that
// has a timestamp, a numeric value and a unit.
type Measurement struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Series holds the height and weight readings in source record order.
type Series struct {
	Height []Measurement `json:"height"`
	Weight []Measurement `json:"weight"`
}

// EmptySeries returns a Series whose sequences are empty rather than nil.
func EmptySeries() Series {
	return Series{
		Height: []Measurement{},
		Weight: []Measurement{},
	}
}

// Result is what a reader reports for a patient: the series (always present),
// whether a fetch is still in flight, and the error of the last fetch, if any.
type Result struct {
	GrowthData Series
	IsLoading  bool
	Error      error
}

// Bundle is the observation search response envelope. Entries are kept raw so
// each one is decoded on its own.
type Bundle struct {
	Total *int              `json:"total,omitempty"`
	Data  []json.RawMessage `json:"data,omitempty"`
	// Entry carries the entries when the server answers with a plain FHIR searchset Bundle.
	Entry []json.RawMessage `json:"entry,omitempty"`
}

// Entries returns the raw entries, preferring data over entry.
func (b Bundle) Entries() []json.RawMessage {
	if len(b.Data) > 0 {
		return b.Data
	}
	return b.Entry
}

// BundleEntry wraps a single resource.
type BundleEntry struct {
	Resource *Observation `json:"resource,omitempty"`
}

// Observation is the subset of a FHIR Observation needed for growth charts.
type Observation struct {
	ResourceType      string              `json:"resourceType,omitempty"`
	ID                string              `json:"id,omitempty"`
	EffectiveDateTime string              `json:"effectiveDateTime,omitempty"`
	ValueQuantity     *Quantity           `json:"valueQuantity,omitempty"`
	Code              *r4.CodeableConcept `json:"code,omitempty"`
}

// Quantity is a measured amount.
type Quantity struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
}
