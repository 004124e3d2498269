package geometry

import "context"

// StationRepository persists a borehole's trajectory.
type StationRepository interface {
	// ListByBorehole returns stations ordered by MD ascending.
	ListByBorehole(ctx context.Context, boreholeID string) ([]Station, error)
	// ReplaceAll swaps the full station set in one commit.
	ReplaceAll(ctx context.Context, boreholeID string, stations []Station) error
	// DeleteByBorehole removes all stations and returns how many were removed.
	DeleteByBorehole(ctx context.Context, boreholeID string) (int, error)
}

// ElevationReader resolves the surface reference elevation of a borehole.
// A nil elevation means the borehole has none recorded.
type ElevationReader interface {
	ReferenceElevation(ctx context.Context, boreholeID string) (*float64, error)
}

// MutationGuard authorizes writes to a borehole.
type MutationGuard interface {
	CanMutate(ctx context.Context, boreholeID string) (bool, error)
}
