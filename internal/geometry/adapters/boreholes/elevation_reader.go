package boreholes

import (
	"context"
	"errors"

	boreholedomain "borehole-geometry/internal/boreholes/domain"
	geometry "borehole-geometry/internal/geometry/domain"
)

// ElevationReader reads reference elevations from borehole masterdata.
type ElevationReader struct {
	repo boreholedomain.BoreholeRepository
}

// NewElevationReader constructs an ElevationReader.
func NewElevationReader(repo boreholedomain.BoreholeRepository) (*ElevationReader, error) {
	if repo == nil {
		return nil, errors.New("elevation reader: nil repo")
	}
	return &ElevationReader{repo: repo}, nil
}

// ReferenceElevation returns the borehole's surface elevation, nil when unset.
func (r *ElevationReader) ReferenceElevation(ctx context.Context, boreholeID string) (*float64, error) {
	borehole, err := r.repo.Get(ctx, boreholeID)
	if err != nil {
		return nil, err
	}
	if borehole == nil {
		return nil, geometry.ErrBoreholeNotFound
	}
	return borehole.ReferenceElevation, nil
}
