package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayush/ivr-designer/internal/store"
)

// Config holds all service configuration. Values come from defaults, then
// an optional YAML file (CONFIG_FILE), then environment variables.
type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	StoreBackend string `yaml:"store_backend"`
	DataDir      string `yaml:"data_dir"`
	PostgresDSN  string `yaml:"postgres_dsn"`
	SQLitePath   string `yaml:"sqlite_path"`
	MongoURI     string `yaml:"mongo_uri"`
	MongoDB      string `yaml:"mongo_db"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	SessionTTL    time.Duration `yaml:"session_ttl"`

	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`

	AllowedOrigins []string `yaml:"allowed_origins"`
}

func defaults() *Config {
	return &Config{
		Port:           "8080",
		Environment:    "development",
		LogLevel:       "info",
		StoreBackend:   store.BackendFile,
		DataDir:        "./data",
		SQLitePath:     "./data/ivr.db",
		MongoDB:        "ivr_designer",
		SessionTTL:     24 * time.Hour,
		MinioBucket:    "flow-snapshots",
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
	}
}

// Load reads .env (if present), the YAML file named by CONFIG_FILE (if set)
// and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.Port = getenv("PORT", c.Port)
	c.Environment = getenv("ENVIRONMENT", c.Environment)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)

	c.StoreBackend = getenv("STORE_BACKEND", c.StoreBackend)
	c.DataDir = getenv("DATA_DIR", c.DataDir)
	c.PostgresDSN = getenv("POSTGRES_DSN", c.PostgresDSN)
	c.SQLitePath = getenv("SQLITE_PATH", c.SQLitePath)
	c.MongoURI = getenv("MONGO_URI", c.MongoURI)
	c.MongoDB = getenv("MONGO_DB", c.MongoDB)

	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)

	c.MinioEndpoint = getenv("MINIO_ENDPOINT", c.MinioEndpoint)
	c.MinioAccessKey = getenv("MINIO_ACCESS_KEY", c.MinioAccessKey)
	c.MinioSecretKey = getenv("MINIO_SECRET_KEY", c.MinioSecretKey)
	c.MinioBucket = getenv("MINIO_BUCKET", c.MinioBucket)

	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MINIO_USE_SSL: %w", err)
		}
		c.MinioUseSSL = b
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SESSION_TTL: %w", err)
		}
		c.SessionTTL = d
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	var errs []error
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("port %q is not a number", c.Port))
	}
	switch c.StoreBackend {
	case store.BackendMemory:
	case store.BackendFile:
		if c.DataDir == "" {
			errs = append(errs, errors.New("DATA_DIR is required for the file backend"))
		}
	case store.BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres backend"))
		}
	case store.BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite backend"))
		}
	case store.BackendMongo:
		if c.MongoURI == "" || c.MongoDB == "" {
			errs = append(errs, errors.New("MONGO_URI and MONGO_DB are required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.MinioEndpoint != "" && (c.MinioBucket == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		errs = append(errs, errors.New("MINIO_BUCKET, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }

// StoreOptions maps the store settings onto store.Open options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:     c.StoreBackend,
		DataDir:     c.DataDir,
		PostgresDSN: c.PostgresDSN,
		SQLitePath:  c.SQLitePath,
		MongoURI:    c.MongoURI,
		MongoDB:     c.MongoDB,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
