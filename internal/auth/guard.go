package auth

import (
	"context"
	"errors"
	"time"

	boreholes "borehole-geometry/internal/boreholes/domain"
)

// MutationGuard decides whether the caller may modify a borehole.
// The caller needs at least the editor role, must belong to the borehole's
// tenant, and the borehole must not be locked by someone else.
type MutationGuard struct {
	repo        boreholes.BoreholeRepository
	lockTimeout time.Duration
	now         func() time.Time
}

// GuardOption configures the guard.
type GuardOption func(*MutationGuard)

// WithLockTimeout sets how long a borehole lock is honoured. Zero means forever.
func WithLockTimeout(timeout time.Duration) GuardOption {
	return func(g *MutationGuard) {
		g.lockTimeout = timeout
	}
}

// WithGuardClock overrides the clock.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *MutationGuard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewMutationGuard constructs a MutationGuard.
func NewMutationGuard(repo boreholes.BoreholeRepository, opts ...GuardOption) (*MutationGuard, error) {
	if repo == nil {
		return nil, errors.New("mutation guard: nil repo")
	}
	g := &MutationGuard{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CanMutate reports whether the identity in ctx may write to the borehole.
func (g *MutationGuard) CanMutate(ctx context.Context, boreholeID string) (bool, error) {
	err := g.Check(ctx, boreholeID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrLocked), errors.Is(err, ErrTenantMismatch), errors.Is(err, ErrUnauthorized):
		return false, nil
	default:
		return false, err
	}
}

// Check explains why a mutation is refused, or returns nil.
func (g *MutationGuard) Check(ctx context.Context, boreholeID string) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	if !RoleAtLeast(identity.Role, RoleEditor) {
		return ErrForbidden
	}
	borehole, err := g.repo.Get(ctx, boreholeID)
	if err != nil {
		return err
	}
	if borehole == nil {
		return ErrNotFound
	}
	if borehole.TenantID != identity.TenantID {
		return ErrTenantMismatch
	}
	if borehole.LockedFor(identity.Subject, g.now(), g.lockTimeout) {
		return ErrLocked
	}
	return nil
}
