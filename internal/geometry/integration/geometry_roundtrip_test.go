package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"borehole-geometry/internal/audit"
	"borehole-geometry/internal/auth"
	boreholes "borehole-geometry/internal/boreholes/domain"
	boreholerepo "borehole-geometry/internal/boreholes/infrastructure/postgres"
	"borehole-geometry/internal/database"
	"borehole-geometry/internal/eventing"
	boreholeadapters "borehole-geometry/internal/geometry/adapters/boreholes"
	geometryapp "borehole-geometry/internal/geometry/application"
	geometry "borehole-geometry/internal/geometry/domain"
	geometryrepo "borehole-geometry/internal/geometry/infrastructure/postgres"
	"borehole-geometry/internal/geometry/parser"
)

func TestGeometryRoundTrip_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.DriverSQLite, filepath.Join(t.TempDir(), "geometry.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	runGeometryRoundTrip(t, db, database.DialectSQLite)
}

func TestGeometryRoundTrip_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	db, err := database.Open(ctx, database.DriverPostgres, dsn, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	_, _ = db.ExecContext(ctx, "DELETE FROM borehole_geometry WHERE borehole_id IN ($1, $2)", "bh-it-1", "bh-it-locked")
	_, _ = db.ExecContext(ctx, "DELETE FROM boreholes WHERE id IN ($1, $2)", "bh-it-1", "bh-it-locked")
	_, _ = db.ExecContext(ctx, "DELETE FROM audit_logs WHERE borehole_id = $1", "bh-it-1")
	runGeometryRoundTrip(t, db, database.DialectPostgres)
}

func runGeometryRoundTrip(t *testing.T, db *sql.DB, dialect database.Dialect) {
	t.Helper()
	ctx := auth.WithIdentity(context.Background(), "tenant-it", auth.RoleEditor, "alice")

	boreholeRepo := boreholerepo.NewBoreholeRepository(db, boreholerepo.WithDialect(dialect))
	stationRepo := geometryrepo.NewStationRepository(db, geometryrepo.WithDialect(dialect))

	ref := 420.0
	if err := boreholeRepo.Save(ctx, &boreholes.Borehole{ID: "bh-it-1", TenantID: "tenant-it", Name: "IT-1", ReferenceElevation: &ref}); err != nil {
		t.Fatalf("save borehole: %v", err)
	}
	lockedAt := time.Now().UTC()
	if err := boreholeRepo.Save(ctx, &boreholes.Borehole{ID: "bh-it-locked", TenantID: "tenant-it", LockedBy: "bob", LockedAt: &lockedAt}); err != nil {
		t.Fatalf("save locked borehole: %v", err)
	}
	loaded, err := boreholeRepo.Get(ctx, "bh-it-locked")
	if err != nil || loaded == nil || loaded.LockedAt == nil || loaded.LockedBy != "bob" {
		t.Fatalf("reload locked borehole: %+v (%v)", loaded, err)
	}

	guard, err := auth.NewMutationGuard(boreholeRepo, auth.WithLockTimeout(time.Hour))
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	elevations, err := boreholeadapters.NewElevationReader(boreholeRepo)
	if err != nil {
		t.Fatalf("elevations: %v", err)
	}
	bus := eventing.NewBus()
	var replaced int
	bus.Subscribe(eventing.EventTypeOf[geometryapp.GeometryReplaced](), func(ctx context.Context, event any) error {
		replaced++
		return nil
	})
	svc, err := geometryapp.NewGeometryService(stationRepo, elevations, guard, parser.New(), geometryapp.WithPublisher(bus))
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	first := []byte("MD_m;HAZI;DEVI\n0;0;0\n150;45;15\n300;45;30\n")
	if n, err := svc.Upload(ctx, "bh-it-1", "first.csv", first, "AzInc"); err != nil || n != 3 {
		t.Fatalf("upload first: %d (%v)", n, err)
	}
	second := []byte("MD_m,X_m,Y_m,Z_m,HAZI,DEVI\n0,0,0,0,,\n100,0,0,100,0,0\n250,20,0,240,90,20\n")
	if n, err := svc.Upload(ctx, "bh-it-1", "second.csv", second, "XYZ"); err != nil || n != 3 {
		t.Fatalf("upload second: %d (%v)", n, err)
	}
	stored, err := svc.Stations(ctx, "bh-it-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 3 || stored[2].MD != 250 || stored[2].Z != 240 {
		t.Fatalf("expected second upload only, got %+v", stored)
	}
	if stored[0].HAZI != nil || stored[2].DEVI == nil || *stored[2].DEVI != 20 {
		t.Fatalf("optional angles not round-tripped: %+v", stored)
	}
	if replaced != 2 {
		t.Fatalf("expected 2 replace events, got %d", replaced)
	}

	masl, err := svc.MASL(ctx, "bh-it-1", 175)
	if err != nil || masl == nil || math.Abs(*masl-(420-170)) > 1e-9 {
		t.Fatalf("masl: %v (%v)", masl, err)
	}
	md, err := svc.MDFromMASL(ctx, "bh-it-1", *masl)
	if err != nil || md == nil || math.Abs(*md-175) > 1e-9 {
		t.Fatalf("md from masl: %v (%v)", md, err)
	}

	bad := []byte("MD_m,X_m,Y_m,Z_m\n0,0,0,0\n10,0,0,oops\n")
	var verr *geometry.ValidationError
	if _, err := svc.Upload(ctx, "bh-it-1", "bad.csv", bad, "XYZ"); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if stored, _ := svc.Stations(ctx, "bh-it-1"); len(stored) != 3 {
		t.Fatalf("failed upload must keep geometry, got %d stations", len(stored))
	}

	if _, err := svc.Upload(ctx, "bh-it-locked", "first.csv", first, "AzInc"); !errors.Is(err, geometry.ErrMutationDenied) {
		t.Fatalf("expected locked borehole to be denied, got %v", err)
	}
	if stored, _ := svc.Stations(ctx, "bh-it-locked"); len(stored) != 0 {
		t.Fatalf("locked borehole must stay empty")
	}

	removed, err := svc.Delete(ctx, "bh-it-1")
	if err != nil || removed != 3 {
		t.Fatalf("delete: %d (%v)", removed, err)
	}
	if tvd, _ := svc.TVD(ctx, "bh-it-1", 175); tvd != 175 {
		t.Fatalf("expected identity after delete, got %v", tvd)
	}
	if left, err := stationRepo.ListByBorehole(ctx, "bh-it-1"); err != nil || len(left) != 0 {
		t.Fatalf("expected no stored stations, got %d (%v)", len(left), err)
	}
	if _, err := stationRepo.CountAll(ctx); err != nil {
		t.Fatalf("count: %v", err)
	}

	auditRepo := audit.NewRepository(db, dialect)
	if err := auditRepo.Log(ctx, audit.Entry{
		TenantID:     "tenant-it",
		Actor:        "alice",
		Role:         string(auth.RoleEditor),
		Action:       "geometry.delete",
		ResourceType: "borehole_geometry",
		ResourceID:   "bh-it-1",
		BoreholeID:   "bh-it-1",
		Metadata:     []byte(`{"removed":3}`),
	}); err != nil {
		t.Fatalf("audit log: %v", err)
	}
	var entries int
	query := dialect.Rebind("SELECT COUNT(*) FROM audit_logs WHERE borehole_id = ?")
	if err := db.QueryRowContext(ctx, query, "bh-it-1").Scan(&entries); err != nil || entries < 1 {
		t.Fatalf("expected audit row, got %d (%v)", entries, err)
	}
}
