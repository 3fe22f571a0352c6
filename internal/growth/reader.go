package growth

import (
	"context"

	"github.com/i474232898/growth-observations/internal/fetch"
)

// Reader turns a patient's height and weight observations into a Series.
// It holds no state of its own; fetching, deduplication and caching belong to the cache.
type Reader struct {
	source     ObservationSource
	cache      *fetch.Cache[Bundle]
	dateLayout string
}

// NewReader creates a new Reader.
func NewReader(source ObservationSource, cache *fetch.Cache[Bundle], dateLayout string) *Reader {
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	return &Reader{
		source:     source,
		cache:      cache,
		dateLayout: dateLayout,
	}
}

// GetGrowthData returns immediately. While the first fetch for the patient is
// in flight the result reports IsLoading with an empty series. An empty
// patientID requests nothing.
func (r *Reader) GetGrowthData(patientID string) Result {
	key := cacheKey(patientID)
	return r.result(r.cache.Request(key, r.fetcher(key)))
}

// AwaitGrowthData is GetGrowthData, blocking until the patient's fetch settles or ctx ends.
func (r *Reader) AwaitGrowthData(ctx context.Context, patientID string) Result {
	key := cacheKey(patientID)
	return r.result(r.cache.Await(ctx, key, r.fetcher(key)))
}

// Refresh drops the cached response for the patient and awaits a new one.
func (r *Reader) Refresh(ctx context.Context, patientID string) Result {
	key := cacheKey(patientID)
	r.cache.Invalidate(key)
	return r.result(r.cache.Await(ctx, key, r.fetcher(key)))
}

// Revalidate refetches every cached patient and returns how many were refetched.
func (r *Reader) Revalidate(ctx context.Context) int {
	return r.cache.Revalidate(ctx)
}

func (r *Reader) fetcher(key fetch.Key) fetch.Fetcher[Bundle] {
	query, _ := key.Value()
	return func(ctx context.Context) (Bundle, error) {
		return r.source.SearchObservations(ctx, query)
	}
}

func (r *Reader) result(st fetch.State[Bundle]) Result {
	series := EmptySeries()
	if st.HasData {
		series = BuildSeries(st.Data, r.dateLayout)
	}
	return Result{
		GrowthData: series,
		IsLoading:  st.IsLoading,
		Error:      st.Err,
	}
}

func cacheKey(patientID string) fetch.Key {
	if patientID == "" {
		return fetch.NoKey()
	}
	return fetch.KeyOf(ObservationQuery(patientID))
}
