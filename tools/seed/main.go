package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"borehole-geometry/internal/auth"
	boreholes "borehole-geometry/internal/boreholes/domain"
	boreholerepo "borehole-geometry/internal/boreholes/infrastructure/postgres"
	"borehole-geometry/internal/database"
	boreholeadapters "borehole-geometry/internal/geometry/adapters/boreholes"
	geometryapp "borehole-geometry/internal/geometry/application"
	geometry "borehole-geometry/internal/geometry/domain"
	geometryrepo "borehole-geometry/internal/geometry/infrastructure/postgres"
	"borehole-geometry/internal/geometry/parser"
)

type config struct {
	driver        string
	dsn           string
	baseURL       string
	jwtSecret     string
	tenantID      string
	subject       string
	prefix        string
	boreholeCount int
	stationCount  int
	stepMD        float64
	maxDevi       float64
	elevation     float64
	tokenTTL      time.Duration
	tokenOut      string
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN, DATABASE_URL or SQLITE_PATH is required")
	}
	if cfg.boreholeCount <= 0 {
		log.Fatal("borehole-count must be > 0")
	}
	if cfg.stationCount < 2 {
		log.Fatal("station-count must be >= 2")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.driver, cfg.dsn, log.Default())
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	dialect := database.DialectFor(cfg.driver)
	boreholeRepo := boreholerepo.NewBoreholeRepository(db, boreholerepo.WithDialect(dialect))
	ids := buildBoreholeIDs(cfg.prefix, cfg.boreholeCount)

	log.Printf("seeding boreholes: count=%d tenant=%s", len(ids), cfg.tenantID)
	if err := seedBoreholes(ctx, boreholeRepo, cfg, ids); err != nil {
		log.Fatalf("seed boreholes: %v", err)
	}

	survey := buildSurvey(cfg.stationCount, cfg.stepMD, cfg.maxDevi)
	if cfg.baseURL != "" {
		if cfg.jwtSecret == "" {
			log.Fatal("AUTH_JWT_SECRET is required with base-url")
		}
		token, err := auth.SignJWT([]byte(cfg.jwtSecret), cfg.tenantID, auth.RoleEditor, cfg.subject, cfg.tokenTTL)
		if err != nil {
			log.Fatalf("sign token: %v", err)
		}
		if err := writeLines(cfg.tokenOut, []string{token}); err != nil {
			log.Fatalf("write token: %v", err)
		}
		log.Printf("uploading surveys via %s", cfg.baseURL)
		if err := uploadViaAPI(ctx, cfg.baseURL, token, ids, survey); err != nil {
			log.Fatalf("upload: %v", err)
		}
		return
	}

	stationRepo := geometryrepo.NewStationRepository(db, geometryrepo.WithDialect(dialect))
	guard, err := auth.NewMutationGuard(boreholeRepo)
	if err != nil {
		log.Fatalf("guard: %v", err)
	}
	elevations, err := boreholeadapters.NewElevationReader(boreholeRepo)
	if err != nil {
		log.Fatalf("elevations: %v", err)
	}
	svc, err := geometryapp.NewGeometryService(stationRepo, elevations, guard, parser.New())
	if err != nil {
		log.Fatalf("service: %v", err)
	}
	seedCtx := auth.WithIdentity(ctx, cfg.tenantID, auth.RoleEditor, cfg.subject)
	for _, id := range ids {
		count, err := svc.Upload(seedCtx, id, "seed.csv", survey, string(geometry.FormatAzInc))
		if err != nil {
			log.Fatalf("upload %s: %v", id, err)
		}
		log.Printf("borehole %s: %d stations", id, count)
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.driver, "driver", envOrDefault("DB_DRIVER", database.DriverPostgres), "database driver (pgx or sqlite)")
	flag.StringVar(&cfg.dsn, "dsn", "", "database DSN or sqlite path")
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", ""), "upload through the API instead of the database")
	flag.StringVar(&cfg.jwtSecret, "jwt-secret", envOrDefault("AUTH_JWT_SECRET", ""), "secret used to sign the upload token")
	flag.StringVar(&cfg.tenantID, "tenant-id", envOrDefault("TENANT_ID", "tenant-demo"), "tenant owning the seeded boreholes")
	flag.StringVar(&cfg.subject, "subject", envOrDefault("SEED_SUBJECT", "seed"), "token subject")
	flag.StringVar(&cfg.prefix, "borehole-prefix", envOrDefault("BOREHOLE_PREFIX", "bh-seed-"), "borehole id prefix")
	flag.IntVar(&cfg.boreholeCount, "borehole-count", envOrInt("BOREHOLE_COUNT", 5), "number of boreholes to seed")
	flag.IntVar(&cfg.stationCount, "station-count", envOrInt("STATION_COUNT", 40), "survey rows per borehole")
	flag.Float64Var(&cfg.stepMD, "step-md", envOrFloat("STEP_MD", 30), "MD spacing between survey rows (m)")
	flag.Float64Var(&cfg.maxDevi, "max-devi", envOrFloat("MAX_DEVI", 60), "deviation reached at the bottom (deg)")
	flag.Float64Var(&cfg.elevation, "elevation", envOrFloat("REFERENCE_ELEVATION", 250), "reference elevation of every borehole (m)")
	flag.DurationVar(&cfg.tokenTTL, "token-ttl", time.Hour, "lifetime of the upload token")
	flag.StringVar(&cfg.tokenOut, "token-out", envOrDefault("TOKEN_OUT", ""), "output file for the signed token")
	flag.Parse()

	if cfg.dsn == "" {
		if cfg.driver == database.DriverSQLite {
			cfg.dsn = envOrDefault("SQLITE_PATH", "")
		} else {
			cfg.dsn = envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", ""))
		}
	}
	return cfg
}

func buildBoreholeIDs(prefix string, count int) []string {
	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		ids = append(ids, fmt.Sprintf("%s%03d", prefix, i))
	}
	return ids
}

func seedBoreholes(ctx context.Context, repo *boreholerepo.BoreholeRepository, cfg config, ids []string) error {
	for i, id := range ids {
		elevation := cfg.elevation + float64(i)
		if err := repo.Save(ctx, &boreholes.Borehole{
			ID:                 id,
			TenantID:           cfg.tenantID,
			Name:               strings.ToUpper(id),
			ReferenceElevation: &elevation,
		}); err != nil {
			return err
		}
	}
	return nil
}

// buildSurvey renders a build-and-hold AzInc survey: deviation grows linearly
// to maxDevi over the first half and holds, azimuth turns slowly to the east.
func buildSurvey(rows int, stepMD, maxDevi float64) []byte {
	var b bytes.Buffer
	b.WriteString("MD_m;HAZI;DEVI\n")
	half := float64(rows-1) / 2
	for i := 0; i < rows; i++ {
		devi := maxDevi * math.Min(float64(i)/half, 1)
		hazi := 90 * float64(i) / float64(rows-1)
		fmt.Fprintf(&b, "%.2f;%.3f;%.3f\n", float64(i)*stepMD, hazi, devi)
	}
	return b.Bytes()
}

func uploadViaAPI(ctx context.Context, baseURL, token string, ids []string, survey []byte) error {
	client := &http.Client{Timeout: 30 * time.Second}
	baseURL = strings.TrimRight(baseURL, "/")
	for _, id := range ids {
		url := fmt.Sprintf("%s/api/v1/boreholes/%s/geometry?format=%s&filename=seed.csv", baseURL, id, geometry.FormatAzInc)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(survey))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "text/csv")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		var respBody struct {
			Count int `json:"count"`
		}
		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return fmt.Errorf("upload failed for %s: http %d", id, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
			_ = resp.Body.Close()
			return err
		}
		_ = resp.Body.Close()
		log.Printf("borehole %s: %d stations", id, respBody.Count)
	}
	return nil
}

func writeLines(path string, lines []string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	content := strings.Join(lines, "\n")
	return os.WriteFile(path, []byte(content), 0o600)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envOrFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}
