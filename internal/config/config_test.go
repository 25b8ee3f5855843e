package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STATEMENTS_STORAGE_BACKEND", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("Gemini.Model = %q, want %q", cfg.Gemini.Model, "gemini-2.5-flash")
	}
	if !cfg.Dedup.WithinBatch {
		t.Error("Dedup.WithinBatch = false, want true")
	}
	if cfg.Normalize.YearPolicy != YearPolicyCurrent {
		t.Errorf("Normalize.YearPolicy = %q, want %q", cfg.Normalize.YearPolicy, YearPolicyCurrent)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Notion.Enabled() {
		t.Error("Notion.Enabled() = true, want false")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STATEMENTS_STORAGE_BACKEND", "mongo")
	t.Setenv("STATEMENTS_STORAGE_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("STATEMENTS_NORMALIZE_YEAR_POLICY", "fixed")
	t.Setenv("STATEMENTS_NORMALIZE_DEFAULT_YEAR", "2025")
	t.Setenv("STATEMENTS_DEDUP_WITHIN_BATCH", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.MongoURI != "mongodb://localhost:27017" {
		t.Errorf("Storage.MongoURI = %q", cfg.Storage.MongoURI)
	}
	if cfg.Normalize.DefaultYear != 2025 {
		t.Errorf("Normalize.DefaultYear = %d, want 2025", cfg.Normalize.DefaultYear)
	}
	if cfg.Dedup.WithinBatch {
		t.Error("Dedup.WithinBatch = true, want false")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statements.yaml")
	content := `
storage:
  backend: bigquery
gcp:
  project_id: my-project
  dataset: cards
notion:
  token: secret
  database_id: db-1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GCP.ProjectID != "my-project" || cfg.GCP.Dataset != "cards" {
		t.Errorf("GCP = %+v", cfg.GCP)
	}
	if !cfg.Notion.Enabled() {
		t.Error("Notion.Enabled() = false, want true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() error = nil, want error for missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Storage:   StorageConfig{Backend: BackendMemory},
			Normalize: NormalizeConfig{YearPolicy: YearPolicyCurrent},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "memory backend", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "sqlite" }, wantErr: true},
		{name: "bigquery without project", mutate: func(c *Config) { c.Storage.Backend = BackendBigQuery }, wantErr: true},
		{name: "mongo without uri", mutate: func(c *Config) { c.Storage.Backend = BackendMongo }, wantErr: true},
		{name: "fixed year without year", mutate: func(c *Config) { c.Normalize.YearPolicy = YearPolicyFixed }, wantErr: true},
		{name: "fixed year", mutate: func(c *Config) {
			c.Normalize.YearPolicy = YearPolicyFixed
			c.Normalize.DefaultYear = 2024
		}},
		{name: "unknown year policy", mutate: func(c *Config) { c.Normalize.YearPolicy = "guess" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
