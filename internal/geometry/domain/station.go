package geometry

import (
	"errors"
	"math"
	"sort"
)

// Station is one point of a borehole's stored trajectory.
// X is east, Y is north and Z is vertical depth below the wellhead (positive down).
type Station struct {
	BoreholeID string
	MD         float64
	X          float64
	Y          float64
	Z          float64
	HAZI       *float64
	DEVI       *float64
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if s.BoreholeID == "" {
		return ErrEmptyBoreholeID
	}
	for _, v := range []float64{s.MD, s.X, s.Y, s.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("geometry: non-finite station coordinate")
		}
	}
	return nil
}

// SortStations orders stations ascending by MD in place.
func SortStations(stations []Station) {
	sort.SliceStable(stations, func(i, j int) bool {
		return stations[i].MD < stations[j].MD
	})
}

// WithBorehole stamps the owning borehole on every station.
func WithBorehole(stations []Station, boreholeID string) []Station {
	for i := range stations {
		stations[i].BoreholeID = boreholeID
	}
	return stations
}

func floatPtr(v float64) *float64 {
	return &v
}
