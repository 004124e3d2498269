package application

import "time"

// GeometryReplaced is emitted after a borehole's station list was swapped by an upload.
type GeometryReplaced struct {
	BoreholeID   string
	Format       string
	StationCount int
	OccurredAt   time.Time
}

func (e GeometryReplaced) EventBoreholeID() string { return e.BoreholeID }
func (e GeometryReplaced) EventTime() time.Time    { return e.OccurredAt }

// GeometryDeleted is emitted after a borehole's stations were removed.
type GeometryDeleted struct {
	BoreholeID string
	Removed    int
	OccurredAt time.Time
}

func (e GeometryDeleted) EventBoreholeID() string { return e.BoreholeID }
func (e GeometryDeleted) EventTime() time.Time    { return e.OccurredAt }
