// Package config loads runtime settings from an optional config file and
// STATEMENTS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. STATEMENTS_GCP_PROJECT_ID.
const EnvPrefix = "STATEMENTS"

// Storage backends.
const (
	BackendBigQuery = "bigquery"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Year policies for dates printed without a year.
const (
	YearPolicyCurrent = "current"
	YearPolicyFixed   = "fixed"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GCPConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
	Bucket    string `mapstructure:"bucket"`
}

type GeminiConfig struct {
	Model      string `mapstructure:"model"`
	APIVersion string `mapstructure:"api_version"`
	// CacheExtractions memoizes model responses per document checksum for the process lifetime.
	CacheExtractions bool `mapstructure:"cache_extractions"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type NormalizeConfig struct {
	YearPolicy  string `mapstructure:"year_policy"`
	DefaultYear int    `mapstructure:"default_year"`
}

type DedupConfig struct {
	WithinBatch bool `mapstructure:"within_batch"`
}

type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

// Enabled reports whether the Notion export is configured.
func (n NotionConfig) Enabled() bool {
	return n.Token != "" && n.DatabaseID != ""
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// Config is the full application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	GCP       GCPConfig       `mapstructure:"gcp"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Notion    NotionConfig    `mapstructure:"notion"`
	Server    ServerConfig    `mapstructure:"server"`
	UserID    string          `mapstructure:"user_id"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("gcp.dataset", "statements")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.api_version", "v1")
	v.SetDefault("gemini.cache_extractions", true)
	v.SetDefault("storage.backend", BackendBigQuery)
	v.SetDefault("storage.mongo_database", "statements")
	v.SetDefault("normalize.year_policy", YearPolicyCurrent)
	v.SetDefault("normalize.default_year", 0)
	v.SetDefault("dedup.within_batch", true)
	v.SetDefault("server.port", "8080")
	v.SetDefault("user_id", "")
	// Registered so AutomaticEnv can see keys that have no default.
	for _, key := range []string{"gcp.project_id", "gcp.bucket", "storage.mongo_uri", "notion.token", "notion.database_id"} {
		v.SetDefault(key, "")
	}
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path, applies env overrides and validates the result.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: reading config file %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("FromViper: decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings and the settings each backend requires.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendBigQuery:
		if c.GCP.ProjectID == "" {
			return fmt.Errorf("%w: gcp.project_id is required for the bigquery backend", ErrInvalidConfig)
		}
	case BackendMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("%w: storage.mongo_uri is required for the mongo backend", ErrInvalidConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	switch c.Normalize.YearPolicy {
	case YearPolicyCurrent:
	case YearPolicyFixed:
		if c.Normalize.DefaultYear < 1 || c.Normalize.DefaultYear > 9999 {
			return fmt.Errorf("%w: normalize.default_year must be set for the fixed year policy", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown normalize.year_policy %q", ErrInvalidConfig, c.Normalize.YearPolicy)
	}

	return nil
}
