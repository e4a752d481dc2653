package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	BlobBaseURL               string        `koanf:"blob_base_url"`
	BlobDriver                string        `koanf:"blob_driver"`
	BlobLocalDir              string        `koanf:"blob_local_dir"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries"`
	GCSBucket                 string        `koanf:"gcs_bucket"`
	MaxUploadSizeMB           int           `koanf:"max_upload_size_mb"`
	PublicURL                 string        `koanf:"public_url"`
	ServerHost                string        `koanf:"server_host"`
	ServerPort                int           `koanf:"server_port"`
	TileSize                  int           `koanf:"tile_size"`
}

const (
	BlobDriverLocal = "local"
	BlobDriverGCS   = "gcs"
)

// New loads configuration from an optional YAML file (CONFIG_FILE, default
// ./config.yaml) and environment variables. Environment variables take
// precedence over the file; both map onto the snake_case field names.
func New() (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "./config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file: %s", configFile)
		}
	}

	// Only accept env vars that correspond to known config fields so
	// unrelated environment noise is ignored.
	known := knownKeys()
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if !known[key] {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if cfg.DatabaseFilePath == "" {
		return nil, errors.New("missing required config: DATABASE_FILE_PATH (database_file_path)")
	}
	if cfg.BlobDriver == BlobDriverGCS && cfg.GCSBucket == "" {
		return nil, errors.New("missing required config: GCS_BUCKET (gcs_bucket)")
	}

	return cfg, nil
}

// NewForTest returns a config suitable for unit tests: in-memory database,
// loopback host, and defaults for everything else.
func NewForTest() *Config {
	cfg := defaultConfig()
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		BlobDriver:                BlobDriverLocal,
		BlobLocalDir:              "./tmp/blob",
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        3,
		MaxUploadSizeMB:           25,
		PublicURL:                 "http://localhost:3000",
		ServerHost:                "0.0.0.0",
		ServerPort:                3000,
		TileSize:                  512,
	}
}

func knownKeys() map[string]bool {
	keys := map[string]bool{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		keys[toSnakeCase(t.Field(i).Name)] = true
	}
	return keys
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
