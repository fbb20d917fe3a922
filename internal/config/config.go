// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr         = ":8080"
	defaultDatabaseURL      = "file:learnhub.db?_pragma=foreign_keys(1)"
	defaultJWTSecret        = "change-me-jwt-secret"
	defaultJWTAccessTTL     = "15m"
	defaultRefreshTTLDays   = 7
	defaultBcryptCost       = 12
	defaultTokenStore       = "sql"
	defaultRedisAddr        = "localhost:6379"
	defaultRedisPrefix      = "learnhub:"
	defaultRefreshRetention = "720h"
	defaultStorageBackend   = "local"
	defaultUploadDir        = "./uploads"
	defaultMaterialMaxSize  = 50 << 20
	defaultS3Region         = "us-east-1"
	defaultOAuthStateSecret = "change-me-oauth-state"
	defaultLogLevel         = "info"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string
	LogLevel    string
	CORSOrigins []string

	Auth    AuthConfig
	Redis   RedisConfig
	Storage StorageConfig
	Google  GoogleConfig
	AMQPURL string
}

type AuthConfig struct {
	JWTSecret        string
	JWTIssuer        string
	JWTAccessTTL     time.Duration
	RefreshTTLDays   int
	BcryptCost       int
	TokenStore       string
	RefreshRetention time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type StorageConfig struct {
	Backend     string
	UploadDir   string
	MaxSize     int64
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	StateSecret  string
}

// Enabled reports whether Google login is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)
	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))

	var err error
	a := &cfg.Auth
	a.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	a.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	a.TokenStore = strings.ToLower(strings.TrimSpace(getEnv("TOKEN_STORE", defaultTokenStore)))
	if a.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL); err != nil {
		return nil, err
	}
	if a.RefreshRetention, err = parseDurationEnv("REFRESH_RETENTION", defaultRefreshRetention); err != nil {
		return nil, err
	}
	if a.RefreshTTLDays, err = parseIntEnv("REFRESH_TTL_DAYS", defaultRefreshTTLDays); err != nil {
		return nil, err
	}
	if a.BcryptCost, err = parseIntEnv("BCRYPT_COST", defaultBcryptCost); err != nil {
		return nil, err
	}

	r := &cfg.Redis
	r.Addr = strings.TrimSpace(getEnv("REDIS_ADDR", defaultRedisAddr))
	r.Password = os.Getenv("REDIS_PASSWORD")
	r.KeyPrefix = getEnv("REDIS_KEY_PREFIX", defaultRedisPrefix)
	if r.DB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}

	s := &cfg.Storage
	s.Backend = strings.ToLower(strings.TrimSpace(getEnv("STORAGE_BACKEND", defaultStorageBackend)))
	s.UploadDir = strings.TrimSpace(getEnv("UPLOAD_DIR", defaultUploadDir))
	s.S3Bucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
	s.S3Region = strings.TrimSpace(getEnv("S3_REGION", defaultS3Region))
	s.S3Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	s.S3AccessKey = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY"))
	s.S3SecretKey = strings.TrimSpace(os.Getenv("S3_SECRET_KEY"))
	maxSize, err := parseIntEnv("MATERIAL_MAX_SIZE", defaultMaterialMaxSize)
	if err != nil {
		return nil, err
	}
	s.MaxSize = int64(maxSize)

	g := &cfg.Google
	g.ClientID = strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_ID"))
	g.ClientSecret = strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"))
	g.RedirectURL = strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_REDIRECT_URL"))
	g.StateSecret = strings.TrimSpace(getEnv("OAUTH_STATE_SECRET", defaultOAuthStateSecret))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProdLike reports whether the config targets a production environment.
func (c *Config) ProdLike() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.Auth.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.Auth.RefreshTTLDays <= 0 {
		return fmt.Errorf("REFRESH_TTL_DAYS must be > 0")
	}
	if cfg.Auth.RefreshRetention < 0 {
		return fmt.Errorf("REFRESH_RETENTION must be >= 0")
	}
	if cfg.Storage.MaxSize <= 0 {
		return fmt.Errorf("MATERIAL_MAX_SIZE must be > 0")
	}

	switch cfg.Auth.TokenStore {
	case "sql", "redis", "memory":
	default:
		return fmt.Errorf("TOKEN_STORE must be one of: sql, redis, memory")
	}

	switch cfg.Storage.Backend {
	case "local":
		if cfg.Storage.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR must not be empty")
		}
	case "s3":
		if cfg.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET must be set when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: local, s3")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.Auth.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.Google.Enabled() && isEmptyOrDefault(cfg.Google.StateSecret, defaultOAuthStateSecret) {
			return fmt.Errorf("in prod/release OAUTH_STATE_SECRET must be set and not default")
		}
		if cfg.Auth.TokenStore == "memory" {
			return fmt.Errorf("in prod/release TOKEN_STORE=memory is not allowed")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
