package auth

import (
	"context"

	boreholes "borehole-geometry/internal/boreholes/domain"
)

// BoreholeTenantChecker validates borehole tenant ownership.
type BoreholeTenantChecker interface {
	EnsureBoreholeTenant(ctx context.Context, tenantID, boreholeID string) error
}

// BoreholeChecker checks borehole ownership using masterdata.
type BoreholeChecker struct {
	repo boreholes.BoreholeRepository
}

// NewBoreholeChecker constructs a BoreholeChecker.
func NewBoreholeChecker(repo boreholes.BoreholeRepository) *BoreholeChecker {
	if repo == nil {
		return nil
	}
	return &BoreholeChecker{repo: repo}
}

// EnsureBoreholeTenant verifies borehole belongs to tenant.
func (c *BoreholeChecker) EnsureBoreholeTenant(ctx context.Context, tenantID, boreholeID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if tenantID == "" || boreholeID == "" {
		return nil
	}
	borehole, err := c.repo.Get(ctx, boreholeID)
	if err != nil {
		return err
	}
	if borehole == nil {
		return ErrNotFound
	}
	if borehole.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
