package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"borehole-geometry/internal/audit"
	"borehole-geometry/internal/auth"
	boreholerepo "borehole-geometry/internal/boreholes/infrastructure/postgres"
	"borehole-geometry/internal/database"
	"borehole-geometry/internal/eventing"
	boreholeadapters "borehole-geometry/internal/geometry/adapters/boreholes"
	geometryapp "borehole-geometry/internal/geometry/application"
	geometryrepo "borehole-geometry/internal/geometry/infrastructure/postgres"
	geometryhttp "borehole-geometry/internal/geometry/interfaces/http"
	"borehole-geometry/internal/geometry/parser"
	"borehole-geometry/internal/observability/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	geometryCfg, err := geometryapp.LoadConfig()
	if err != nil {
		logger.Fatalf("geometry config error: %v", err)
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DSN(), logger)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if geometryCfg.SchemaAutocreate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatalf("db migrate error: %v", err)
		}
	}

	dialect := database.DialectFor(cfg.DBDriver)
	boreholeRepo := boreholerepo.NewBoreholeRepository(db, boreholerepo.WithDialect(dialect))
	stationRepo := geometryrepo.NewStationRepository(db, geometryrepo.WithDialect(dialect))

	metrics.Init(stationRepo, logger)
	boreholeChecker := auth.NewBoreholeChecker(boreholeRepo)
	auditRepo := audit.NewRepository(db, dialect)

	guard, err := auth.NewMutationGuard(boreholeRepo, auth.WithLockTimeout(geometryCfg.LockTimeout))
	if err != nil {
		logger.Fatalf("mutation guard error: %v", err)
	}
	elevations, err := boreholeadapters.NewElevationReader(boreholeRepo)
	if err != nil {
		logger.Fatalf("elevation reader error: %v", err)
	}

	bus := eventing.NewBus()
	bus.Subscribe(eventing.EventTypeOf[geometryapp.GeometryReplaced](), func(ctx context.Context, event any) error {
		evt, ok := event.(geometryapp.GeometryReplaced)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		env, _ := eventing.EnvelopeFromContext(ctx)
		logger.Printf("geometry replaced: borehole=%s format=%s stations=%d event=%s", evt.BoreholeID, evt.Format, evt.StationCount, env.EventID)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[geometryapp.GeometryDeleted](), func(ctx context.Context, event any) error {
		evt, ok := event.(geometryapp.GeometryDeleted)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		env, _ := eventing.EnvelopeFromContext(ctx)
		logger.Printf("geometry deleted: borehole=%s removed=%d event=%s", evt.BoreholeID, evt.Removed, env.EventID)
		return nil
	})

	geometryService, err := geometryapp.NewGeometryService(
		stationRepo,
		elevations,
		guard,
		parser.New(parser.WithMaxRows(geometryCfg.MaxRows)),
		geometryapp.WithPublisher(bus),
		geometryapp.WithLogger(logger),
		geometryapp.WithMaxUploadBytes(geometryCfg.MaxUploadBytes),
	)
	if err != nil {
		logger.Fatalf("geometry service error: %v", err)
	}
	geometryHandler, err := geometryhttp.NewHandler(
		geometryService,
		boreholeChecker,
		auditRepo,
		geometryhttp.WithMaxBodyBytes(geometryCfg.MaxUploadBytes),
		geometryhttp.WithExportTitle(geometryCfg.ExportTitle),
		geometryhttp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("geometry handler error: %v", err)
	}

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil))

	mux := http.NewServeMux()
	mux.Handle("/api/v1/geometry/formats", geometryHandler)
	mux.Handle("/api/v1/boreholes/", geometryHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Printf("http listening on %s (driver=%s)", cfg.HTTPAddr, cfg.DBDriver)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	DBDriver    string
	SQLitePath  string
	HTTPAddr    string
	JWTSecret   string
}

// DSN returns the connection string for the selected driver.
func (c config) DSN() string {
	if c.DBDriver == database.DriverSQLite {
		return c.SQLitePath
	}
	return c.DatabaseURL
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		DBDriver:    getenvDefault("DB_DRIVER", database.DriverPostgres),
		SQLitePath:  getenvDefault("SQLITE_PATH", "borehole-geometry.db"),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DBDriver != database.DriverPostgres && cfg.DBDriver != database.DriverSQLite {
		log.Fatalf("DB_DRIVER must be %s or %s", database.DriverPostgres, database.DriverSQLite)
	}
	if cfg.DBDriver == database.DriverPostgres && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
