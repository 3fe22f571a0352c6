package growth

import (
	"context"
	"net/url"
)

// ObservationSource abstracts the clinical API serving Observation searches.
type ObservationSource interface {
	Name() string
	// SearchObservations runs query, a path relative to the API base URL.
	SearchObservations(ctx context.Context, query string) (Bundle, error)
}

// ObservationQuery returns the search path for a patient's height and weight
// observations. It doubles as the cache key for the patient.
func ObservationQuery(patientID string) string {
	return "Observation?patient=" + url.QueryEscape(patientID) + "&code=" + CategoryHeight + "," + CategoryWeight
}
