package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"borehole-geometry/internal/database"
)

// Repository writes audit logs.
type Repository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB, dialect database.Dialect) *Repository {
	if db == nil {
		return nil
	}
	if dialect == "" {
		dialect = database.DialectPostgres
	}
	return &Repository{db: db, dialect: dialect}
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
INSERT INTO audit_logs (
	id, tenant_id, actor, role, action, resource_type, resource_id, borehole_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	?,?,?,?,?,?,?,?,?,?,?,?,?
)`), entry.ID, entry.TenantID, entry.Actor, entry.Role, entry.Action, entry.ResourceType, entry.ResourceID, entry.BoreholeID,
		string(entry.Metadata), entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}
