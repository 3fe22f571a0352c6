package growth

import (
	"encoding/json"
	"time"

	"github.com/i474232898/growth-observations/internal/common"
)

// dateTimeLayouts are the FHIR dateTime forms, most precise first.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// BuildSeries maps a bundle into a freshly allocated Series. Entries that do
// not decode, lack a date, value or unit, or carry a code other than height or
// weight are skipped. layout formats the dates; empty means DefaultDateLayout.
func BuildSeries(b Bundle, layout string) Series {
	if layout == "" {
		layout = DefaultDateLayout
	}

	series := EmptySeries()
	for _, raw := range b.Entries() {
		var entry BundleEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Resource == nil {
			continue
		}

		m, ok := toMeasurement(entry.Resource, layout)
		if !ok {
			continue
		}

		switch categoryOf(entry.Resource) {
		case CategoryHeight:
			series.Height = append(series.Height, m)
		case CategoryWeight:
			series.Weight = append(series.Weight, m)
		}
	}
	return series
}

func toMeasurement(obs *Observation, layout string) (Measurement, bool) {
	if obs.EffectiveDateTime == "" || obs.ValueQuantity == nil {
		return Measurement{}, false
	}
	q := obs.ValueQuantity
	if q.Value == nil || q.Unit == "" {
		return Measurement{}, false
	}

	ts, ok := parseDateTime(obs.EffectiveDateTime)
	if !ok {
		return Measurement{}, false
	}

	return Measurement{
		Date:  ts.Format(layout),
		Value: *q.Value,
		Unit:  q.Unit,
	}, true
}

// categoryOf returns the normalized code of the first coding, or "" when absent.
func categoryOf(obs *Observation) string {
	if obs.Code == nil || len(obs.Code.Coding) == 0 {
		return ""
	}
	code := obs.Code.Coding[0].Code
	if code == nil {
		return ""
	}
	return common.NormalizeCode(*code)
}

// parseDateTime keeps the calendar date as written; no zone conversion happens.
func parseDateTime(s string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
