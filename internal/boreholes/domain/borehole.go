package boreholes

import (
	"context"
	"errors"
	"time"
)

// Borehole is the masterdata record owning a geometry.
type Borehole struct {
	ID                 string
	TenantID           string
	Name               string
	ReferenceElevation *float64
	LockedBy           string
	LockedAt           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks borehole invariants.
func (b Borehole) Validate() error {
	if b.ID == "" {
		return errors.New("borehole: empty id")
	}
	if b.TenantID == "" {
		return errors.New("borehole: empty tenant id")
	}
	return nil
}

// LockedFor reports whether someone other than subject holds an unexpired lock.
// A zero timeout means locks never expire.
func (b Borehole) LockedFor(subject string, now time.Time, timeout time.Duration) bool {
	if b.LockedBy == "" || b.LockedBy == subject {
		return false
	}
	if b.LockedAt == nil || timeout <= 0 {
		return true
	}
	return now.Before(b.LockedAt.Add(timeout))
}

// BoreholeRepository manages borehole persistence.
type BoreholeRepository interface {
	Get(ctx context.Context, id string) (*Borehole, error)
	Save(ctx context.Context, borehole *Borehole) error
}
