package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GEOMETRY_CONFIG", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRows != defaultMaxRows || cfg.MaxUploadBytes != defaultMaxUploadBytes || cfg.LockTimeout != defaultLockTimeout {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfig_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geometry.yaml")
	content := "max_rows: 500\nlock_timeout: 5m\nexport_title: Site A\nschema_autocreate: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("GEOMETRY_CONFIG", path)
	t.Setenv("GEOMETRY_MAX_UPLOAD_BYTES", "2048")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRows != 500 || cfg.LockTimeout != 5*time.Minute || cfg.ExportTitle != "Site A" || cfg.SchemaAutocreate {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 2048 {
		t.Fatalf("env override not applied: %d", cfg.MaxUploadBytes)
	}
}

func TestLoadConfig_RejectsNonPositiveRows(t *testing.T) {
	t.Setenv("GEOMETRY_CONFIG", "")
	t.Setenv("GEOMETRY_MAX_ROWS", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error")
	}
}
