// Package config loads runtime configuration from the environment.  A .env
// file in the working directory is read first when present; real
// environment variables win over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds every runtime setting.
type Config struct {
	Env      string // dev, test, prod
	Port     string
	LogLevel string

	StoreDriver string // mysql or memory
	DBUser      string
	DBPass      string // may be empty
	DBHost      string
	DBPort      string
	DBName      string

	JWTSecret        string
	AdminTokenTTLMin int

	// AtomicWrites runs multi-statement operations in one transaction when
	// the store supports it.
	AtomicWrites    bool
	StrictLocks     bool
	OverlapOnCreate bool

	RabbitURL   string // empty disables the broker; audit events are logged instead
	AuditQueue  string
	AuditLogDir string

	Media     MediaConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
}

// MediaConfig configures the S3 media uploader.  Bucket empty disables it.
type MediaConfig struct {
	Bucket        string
	Region        string
	PublicBaseURL string
}

// LoadDotEnv reads .env from the working directory if it exists.
// Variables already set in the environment are not overridden.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads .env (if any) and then the environment.
func Load() (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.  Every missing
// required variable is reported in a single error.
func FromEnv() (Config, error) {
	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:              envStr("APP_ENV", "dev"),
		Port:             envStr("APP_PORT", "8080"),
		LogLevel:         envStr("LOG_LEVEL", "INFO"),
		StoreDriver:      strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		JWTSecret:        must("JWT_SECRET"),
		AdminTokenTTLMin: envInt("ADMIN_TOKEN_TTL_MIN", 60),
		AtomicWrites:     envBool("STORE_ATOMIC_WRITES", true),
		StrictLocks:      envBool("ASSIGNMENT_STRICT_LOCKS", false),
		OverlapOnCreate:  envBool("EVENT_OVERLAP_ON_CREATE", false),
		RabbitURL:        os.Getenv("RABBITMQ_URL"),
		AuditQueue:       envStr("AUDIT_QUEUE", "admin.audit"),
		AuditLogDir:      envStr("AUDIT_LOG_DIR", "logs"),
		Media: MediaConfig{
			Bucket:        os.Getenv("MEDIA_S3_BUCKET"),
			Region:        envStr("AWS_REGION", "us-east-1"),
			PublicBaseURL: os.Getenv("MEDIA_PUBLIC_BASE_URL"),
		},
		Cache:     LoadCacheConfig(),
		RateLimit: LoadRateLimitConfig(),
		Redis:     LoadRedisConfig(),
	}

	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	case DriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMySQL, DriverMemory, cfg.StoreDriver)
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if err := checkTokenTTL(cfg.AdminTokenTTLMin); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AdminTokenTTL is the lifetime of minted admin tokens.
func (c Config) AdminTokenTTL() time.Duration {
	return time.Duration(c.AdminTokenTTLMin) * time.Minute
}

// AdminTokenTTLFromEnv reads only ADMIN_TOKEN_TTL_MIN, for the token command.
func AdminTokenTTLFromEnv() (time.Duration, error) {
	cfg := Config{AdminTokenTTLMin: envInt("ADMIN_TOKEN_TTL_MIN", 60)}
	if err := checkTokenTTL(cfg.AdminTokenTTLMin); err != nil {
		return 0, err
	}
	return cfg.AdminTokenTTL(), nil
}

func checkTokenTTL(minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("ADMIN_TOKEN_TTL_MIN must be positive, got %d", minutes)
	}
	return nil
}

// DatabaseFromEnv reads only the MySQL settings, for the migrate command.
func DatabaseFromEnv() (Config, error) {
	cfg := Config{
		StoreDriver: DriverMySQL,
		LogLevel:    envStr("LOG_LEVEL", "INFO"),
		DBUser:      os.Getenv("DB_USER"),
		DBPass:      os.Getenv("DB_PASS"),
		DBHost:      os.Getenv("DB_HOST"),
		DBPort:      envStr("DB_PORT", "3306"),
		DBName:      os.Getenv("DB_NAME"),
	}
	return cfg, requireSet("DB_USER", "DB_HOST", "DB_NAME")
}

// AuditFromEnv reads only the broker settings, for the audit consumer.
func AuditFromEnv() (Config, error) {
	cfg := Config{
		LogLevel:    envStr("LOG_LEVEL", "INFO"),
		RabbitURL:   os.Getenv("RABBITMQ_URL"),
		AuditQueue:  envStr("AUDIT_QUEUE", "admin.audit"),
		AuditLogDir: envStr("AUDIT_LOG_DIR", "logs"),
	}
	return cfg, requireSet("RABBITMQ_URL")
}

// JWTSecretFromEnv returns JWT_SECRET, for the token command.
func JWTSecretFromEnv() (string, error) {
	return os.Getenv("JWT_SECRET"), requireSet("JWT_SECRET")
}

func requireSet(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if os.Getenv(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
}
