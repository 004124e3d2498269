package memory

import (
	"context"
	"sync"

	geometry "borehole-geometry/internal/geometry/domain"
)

// StationRepository is an in-memory station store for demo/testing.
// Each borehole's list is replaced as a whole, so readers see either the old or the new set.
type StationRepository struct {
	mu   sync.RWMutex
	data map[string][]geometry.Station
}

// NewStationRepository constructs a repository.
func NewStationRepository() *StationRepository {
	return &StationRepository{data: make(map[string][]geometry.Station)}
}

// ListByBorehole returns a copy of the stations ordered by MD.
func (r *StationRepository) ListByBorehole(ctx context.Context, boreholeID string) ([]geometry.Station, error) {
	_ = ctx
	if boreholeID == "" {
		return nil, geometry.ErrEmptyBoreholeID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.data[boreholeID]
	out := make([]geometry.Station, len(stored))
	copy(out, stored)
	return out, nil
}

// ReplaceAll swaps the borehole's station list.
func (r *StationRepository) ReplaceAll(ctx context.Context, boreholeID string, stations []geometry.Station) error {
	_ = ctx
	if boreholeID == "" {
		return geometry.ErrEmptyBoreholeID
	}
	staged := make([]geometry.Station, len(stations))
	copy(staged, stations)
	for i := range staged {
		if err := staged[i].Validate(); err != nil {
			return err
		}
	}
	geometry.SortStations(staged)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(staged) == 0 {
		delete(r.data, boreholeID)
		return nil
	}
	r.data[boreholeID] = staged
	return nil
}

// DeleteByBorehole removes the borehole's stations.
func (r *StationRepository) DeleteByBorehole(ctx context.Context, boreholeID string) (int, error) {
	_ = ctx
	if boreholeID == "" {
		return 0, geometry.ErrEmptyBoreholeID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.data[boreholeID])
	delete(r.data, boreholeID)
	return n, nil
}

// CountAll returns the number of stored stations across all boreholes.
func (r *StationRepository) CountAll(ctx context.Context) (int64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, stations := range r.data {
		n += int64(len(stations))
	}
	return n, nil
}
