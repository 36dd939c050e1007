package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr              string
	DatabaseURL       string
	Environment       string
	ParametersFile    string
	CatalogFile       string
	ParameterTimeout  time.Duration
	BatchConcurrency  int
	JobQueueSize      int
	JobWorkers        int
	JobRetention      int
	MaxBodyBytes      int64
	MaxBatchSize      int
	RateLimitPerMin   int
	MetricsEnabled    bool
	RunMigrations     bool
	RunSeed           bool
	MigrationsDir     string
	LogLevel          string
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	CORSOrigins       []string
	TrustedProxies    []string
}

func Load() Config {
	return Config{
		Addr:              getEnv("APP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		Environment:       getEnv("APP_ENV", "development"),
		ParametersFile:    getEnv("PARAMETERS_FILE", ""),
		CatalogFile:       getEnv("CATALOG_FILE", ""),
		ParameterTimeout:  getEnvDuration("PARAMETER_TIMEOUT", 2*time.Second),
		BatchConcurrency:  getEnvInt("BATCH_CONCURRENCY", 8),
		JobQueueSize:      getEnvInt("JOB_QUEUE_SIZE", 128),
		JobWorkers:        getEnvInt("JOB_WORKERS", 1),
		JobRetention:      getEnvInt("JOB_RETENTION", 1000),
		MaxBodyBytes:      int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		MaxBatchSize:      getEnvInt("MAX_BATCH_SIZE", 5000),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 600),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		RunMigrations:     getEnvBool("RUN_MIGRATIONS", false),
		RunSeed:           getEnvBool("RUN_SEED", false),
		MigrationsDir:     getEnv("MIGRATIONS_DIR", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getEnvDuration("READ_HEADER_TIMEOUT", 5*time.Second),
		CORSOrigins:       getEnvList("CORS_ALLOWED_ORIGINS"),
		TrustedProxies:    getEnvList("TRUSTED_PROXIES"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// UsesDatabase reports whether parameters and the catalog come from PostgreSQL.
func (c Config) UsesDatabase() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// SlogLevel maps LOG_LEVEL onto a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (c Config) Validate() error {
	if c.Environment == "production" && !c.UsesDatabase() && strings.TrimSpace(c.ParametersFile) == "" {
		return fmt.Errorf("DATABASE_URL or PARAMETERS_FILE must be set in production")
	}
	if (c.RunMigrations || c.RunSeed) && !c.UsesDatabase() {
		return fmt.Errorf("RUN_MIGRATIONS and RUN_SEED require DATABASE_URL")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.ParameterTimeout <= 0 {
		return fmt.Errorf("PARAMETER_TIMEOUT must be positive")
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive")
	}
	if c.JobQueueSize <= 0 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be positive")
	}
	if c.JobWorkers <= 0 {
		return fmt.Errorf("JOB_WORKERS must be positive")
	}
	if c.JobRetention <= 0 {
		return fmt.Errorf("JOB_RETENTION must be positive")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MAX_BATCH_SIZE must be positive")
	}
	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

// TrustedProxyPrefixes parses TRUSTED_PROXIES. A bare address trusts that
// single host.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, item := range c.TrustedProxies {
		if prefix, err := netip.ParsePrefix(item); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address or prefix %q", item)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
