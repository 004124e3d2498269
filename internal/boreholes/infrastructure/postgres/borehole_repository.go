package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	boreholes "borehole-geometry/internal/boreholes/domain"
	"borehole-geometry/internal/database"
)

const defaultBoreholesTable = "boreholes"

// BoreholeRepository is a SQL implementation for boreholes.
type BoreholeRepository struct {
	db      database.DBTX
	dialect database.Dialect
	table   string
}

// NewBoreholeRepository constructs a repository.
func NewBoreholeRepository(db database.DBTX, opts ...BoreholeOption) *BoreholeRepository {
	repo := &BoreholeRepository{db: db, dialect: database.DialectPostgres, table: defaultBoreholesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// BoreholeOption configures the repository.
type BoreholeOption func(*BoreholeRepository)

// WithBoreholeTable overrides the default table name.
func WithBoreholeTable(table string) BoreholeOption {
	return func(repo *BoreholeRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithDialect selects the SQL dialect.
func WithDialect(dialect database.Dialect) BoreholeOption {
	return func(repo *BoreholeRepository) {
		if dialect != "" {
			repo.dialect = dialect
		}
	}
}

// Get loads a borehole by id. A missing borehole yields (nil, nil).
func (r *BoreholeRepository) Get(ctx context.Context, id string) (*boreholes.Borehole, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("borehole repo: nil db")
	}
	if id == "" {
		return nil, errors.New("borehole repo: empty id")
	}

	query := r.dialect.Rebind(fmt.Sprintf(`
SELECT id, tenant_id, name, reference_elevation, locked_by, locked_at
FROM %s
WHERE id = ?
LIMIT 1`, r.table))

	var (
		borehole  boreholes.Borehole
		elevation sql.NullFloat64
		lockedAt  sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&borehole.ID,
		&borehole.TenantID,
		&borehole.Name,
		&elevation,
		&borehole.LockedBy,
		&lockedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if elevation.Valid {
		v := elevation.Float64
		borehole.ReferenceElevation = &v
	}
	if lockedAt.Valid {
		at := lockedAt.Time.UTC()
		borehole.LockedAt = &at
	}
	return &borehole, nil
}

// Save upserts a borehole.
func (r *BoreholeRepository) Save(ctx context.Context, borehole *boreholes.Borehole) error {
	if r == nil || r.db == nil {
		return errors.New("borehole repo: nil db")
	}
	if borehole == nil {
		return errors.New("borehole repo: nil borehole")
	}
	if err := borehole.Validate(); err != nil {
		return err
	}

	query := r.dialect.Rebind(fmt.Sprintf(`
INSERT INTO %s (
	id,
	tenant_id,
	name,
	reference_elevation,
	locked_by,
	locked_at
) VALUES (
	?, ?, ?, ?, ?, ?
)
ON CONFLICT (id)
DO UPDATE SET
	tenant_id = EXCLUDED.tenant_id,
	name = EXCLUDED.name,
	reference_elevation = EXCLUDED.reference_elevation,
	locked_by = EXCLUDED.locked_by,
	locked_at = EXCLUDED.locked_at,
	updated_at = CURRENT_TIMESTAMP`, r.table))

	var elevation sql.NullFloat64
	if borehole.ReferenceElevation != nil {
		elevation = sql.NullFloat64{Float64: *borehole.ReferenceElevation, Valid: true}
	}
	var lockedAt sql.NullTime
	if borehole.LockedAt != nil {
		lockedAt = sql.NullTime{Time: borehole.LockedAt.UTC(), Valid: true}
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		borehole.ID,
		borehole.TenantID,
		borehole.Name,
		elevation,
		borehole.LockedBy,
		lockedAt,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if borehole.CreatedAt.IsZero() {
		borehole.CreatedAt = now
	}
	borehole.UpdatedAt = now
	return nil
}
