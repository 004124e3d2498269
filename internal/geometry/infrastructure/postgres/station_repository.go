package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"borehole-geometry/internal/database"
	geometry "borehole-geometry/internal/geometry/domain"
)

const defaultGeometryTable = "borehole_geometry"

// StationRepository persists borehole stations in Postgres or SQLite.
type StationRepository struct {
	db      *sql.DB
	dialect database.Dialect
	table   string
}

// NewStationRepository constructs a repository.
func NewStationRepository(db *sql.DB, opts ...StationOption) *StationRepository {
	repo := &StationRepository{db: db, dialect: database.DialectPostgres, table: defaultGeometryTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// StationOption configures the repository.
type StationOption func(*StationRepository)

// WithGeometryTable overrides the default table name.
func WithGeometryTable(table string) StationOption {
	return func(repo *StationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithDialect selects the SQL dialect.
func WithDialect(dialect database.Dialect) StationOption {
	return func(repo *StationRepository) {
		if dialect != "" {
			repo.dialect = dialect
		}
	}
}

// ListByBorehole loads stations ordered by MD.
func (r *StationRepository) ListByBorehole(ctx context.Context, boreholeID string) ([]geometry.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	if boreholeID == "" {
		return nil, geometry.ErrEmptyBoreholeID
	}

	query := r.dialect.Rebind(fmt.Sprintf(`
SELECT borehole_id, md, x, y, z, hazi, devi
FROM %s
WHERE borehole_id = ?
ORDER BY md ASC`, r.table))

	rows, err := r.db.QueryContext(ctx, query, boreholeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]geometry.Station, 0)
	for rows.Next() {
		var (
			station    geometry.Station
			hazi, devi sql.NullFloat64
		)
		if err := rows.Scan(
			&station.BoreholeID,
			&station.MD,
			&station.X,
			&station.Y,
			&station.Z,
			&hazi,
			&devi,
		); err != nil {
			return nil, err
		}
		station.HAZI = nullableFloat(hazi)
		station.DEVI = nullableFloat(devi)
		result = append(result, station)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceAll deletes the borehole's stations and inserts the new set in one transaction.
func (r *StationRepository) ReplaceAll(ctx context.Context, boreholeID string, stations []geometry.Station) error {
	if r == nil || r.db == nil {
		return errors.New("station repo: nil db")
	}
	if boreholeID == "" {
		return geometry.ErrEmptyBoreholeID
	}
	for _, station := range stations {
		if err := station.Validate(); err != nil {
			return err
		}
		if station.BoreholeID != boreholeID {
			return fmt.Errorf("station repo: station belongs to %q, not %q", station.BoreholeID, boreholeID)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	deleteQuery := r.dialect.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE borehole_id = ?`, r.table))
	if _, err := tx.ExecContext(ctx, deleteQuery, boreholeID); err != nil {
		_ = tx.Rollback()
		return err
	}

	insertQuery := r.dialect.Rebind(fmt.Sprintf(`
INSERT INTO %s (
	borehole_id, md, x, y, z, hazi, devi
) VALUES (?, ?, ?, ?, ?, ?, ?)`, r.table))
	for _, station := range stations {
		_, err := tx.ExecContext(ctx, insertQuery,
			boreholeID, station.MD, station.X, station.Y, station.Z,
			nullFloat(station.HAZI), nullFloat(station.DEVI))
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// DeleteByBorehole removes every station of the borehole.
func (r *StationRepository) DeleteByBorehole(ctx context.Context, boreholeID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("station repo: nil db")
	}
	if boreholeID == "" {
		return 0, geometry.ErrEmptyBoreholeID
	}
	query := r.dialect.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE borehole_id = ?`, r.table))
	res, err := r.db.ExecContext(ctx, query, boreholeID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// CountAll returns the number of stored stations across all boreholes.
func (r *StationRepository) CountAll(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("station repo: nil db")
	}
	var count int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)).Scan(&count)
	return count, err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
