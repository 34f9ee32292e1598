package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Quote providers
const (
	ProviderFinnhub = "finnhub"
	ProviderYahoo   = "yahoo"
)

// Config holds application configuration
type Config struct {
	HTTPPort int
	GRPCPort int // 0 disables the gRPC server

	StoreDriver string // holdings and lots
	DatabaseURL string
	QuoteStore  string
	SQLitePath  string

	QuoteProvider         string
	FinnhubAPIKey         string
	QuoteTTL              time.Duration
	QuoteFetchTimeout     time.Duration
	QuoteFetchConcurrency int
	QuoteRefreshSchedule  string // cron spec, empty disables the background refresh

	APIToken    string
	CORSOrigins []string

	LogLevel  string
	LogPretty bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	ttlSeconds, err := getEnvAsInt("QUOTE_TTL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := getEnvAsDuration("QUOTE_FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	concurrency, err := getEnvAsInt("QUOTE_FETCH_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	httpPort, err := getEnvAsInt("PORT", 3001)
	if err != nil {
		return nil, err
	}
	grpcPort, err := getEnvAsInt("GRPC_PORT", 8080)
	if err != nil {
		return nil, err
	}

	storeDriver := strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres))

	cfg := &Config{
		HTTPPort:              httpPort,
		GRPCPort:              grpcPort,
		StoreDriver:           storeDriver,
		DatabaseURL:           databaseURL(),
		QuoteStore:            strings.ToLower(getEnv("QUOTE_STORE", storeDriver)),
		SQLitePath:            getEnv("SQLITE_PATH", "data/quotes.db"),
		QuoteProvider:         strings.ToLower(getEnv("QUOTE_PROVIDER", ProviderFinnhub)),
		FinnhubAPIKey:         getEnv("FINNHUB_API_KEY", ""),
		QuoteTTL:              time.Duration(ttlSeconds) * time.Second,
		QuoteFetchTimeout:     fetchTimeout,
		QuoteFetchConcurrency: concurrency,
		QuoteRefreshSchedule:  strings.TrimSpace(getEnv("QUOTE_REFRESH_SCHEDULE", "")),
		APIToken:              getEnv("API_TOKEN", "dev-token"),
		CORSOrigins:           splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogPretty:             getEnvAsBool("LOG_PRETTY", false),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration can be used
func (c *Config) Validate() error {
	if c.QuoteTTL <= 0 {
		return invalid("QUOTE_TTL_SECONDS must be positive, got %s", c.QuoteTTL)
	}
	if c.QuoteFetchTimeout <= 0 {
		return invalid("QUOTE_FETCH_TIMEOUT must be positive, got %s", c.QuoteFetchTimeout)
	}
	if c.QuoteFetchConcurrency <= 0 {
		return invalid("QUOTE_FETCH_CONCURRENCY must be positive, got %d", c.QuoteFetchConcurrency)
	}

	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return invalid("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver)
	}
	switch c.QuoteStore {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return invalid("QUOTE_STORE must be %q, %q or %q, got %q", DriverPostgres, DriverSQLite, DriverMemory, c.QuoteStore)
	}
	if c.QuoteStore == DriverSQLite && c.SQLitePath == "" {
		return invalid("SQLITE_PATH is required for the sqlite quote store")
	}

	switch c.QuoteProvider {
	case ProviderFinnhub:
		if c.FinnhubAPIKey == "" {
			return invalid("FINNHUB_API_KEY is required for the finnhub provider")
		}
	case ProviderYahoo:
	default:
		return invalid("QUOTE_PROVIDER must be %q or %q, got %q", ProviderFinnhub, ProviderYahoo, c.QuoteProvider)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return invalid("PORT out of range: %d", c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return invalid("GRPC_PORT out of range: %d", c.GRPCPort)
	}

	return nil
}

// UsesPostgres reports whether any store needs a database connection
func (c *Config) UsesPostgres() bool {
	return c.StoreDriver == DriverPostgres || c.QuoteStore == DriverPostgres
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrConfiguration, fmt.Sprintf(format, args...))
}

// databaseURL prefers an explicit DSN and otherwise builds one from individual vars (Docker friendly)
func databaseURL() string {
	if dsn := getEnv("DATABASE_URL", ""); dsn != "" {
		return dsn
	}
	if dsn := getEnv("DB_CONN_STR", ""); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "wealthflow"),
	)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intVal, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid("%s must be an integer, got %q", key, value)
	}
	return intVal, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid("%s must be a duration such as 10s, got %q", key, value)
	}
	return d, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
