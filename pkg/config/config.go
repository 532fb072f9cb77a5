package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Transaction isolation levels accepted by LEDGER_TX_ISOLATION.
const (
	IsolationReadCommitted  = "read_committed"
	IsolationRepeatableRead = "repeatable_read"
	IsolationSerializable   = "serializable"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Ledger      LedgerConfig
	Idempotency IdempotencyConfig
	Metrics     MetricsConfig
	Reports     ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig carries verification settings; tokens are issued elsewhere.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LedgerConfig tunes installment scheduling and settlement.
type LedgerConfig struct {
	Timezone            string
	DefaultInstallments int
	SingleDueDays       int
	TxIsolation         string
}

// IdempotencyConfig governs replay of payment submissions.
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// ReportsConfig bounds report exports.
type ReportsConfig struct {
	MaxRows int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Ledger = LedgerConfig{
		Timezone:            v.GetString("LEDGER_TIMEZONE"),
		DefaultInstallments: v.GetInt("LEDGER_DEFAULT_INSTALLMENTS"),
		SingleDueDays:       v.GetInt("LEDGER_SINGLE_DUE_DAYS"),
		TxIsolation:         normalizeIsolation(v.GetString("LEDGER_TX_ISOLATION")),
	}
	if cfg.Ledger.SingleDueDays <= 0 {
		cfg.Ledger.SingleDueDays = 7
	}

	cfg.Idempotency = IdempotencyConfig{
		Enabled: v.GetBool("ENABLE_IDEMPOTENCY"),
		TTL:     parseDuration(v.GetString("IDEMPOTENCY_TTL"), 24*time.Hour),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	maxRows := v.GetInt("REPORTS_MAX_ROWS")
	if maxRows <= 0 {
		maxRows = 5000
	}
	cfg.Reports = ReportsConfig{MaxRows: maxRows}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "driving_school")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LEDGER_TIMEZONE", "UTC")
	v.SetDefault("LEDGER_DEFAULT_INSTALLMENTS", 1)
	v.SetDefault("LEDGER_SINGLE_DUE_DAYS", 7)
	v.SetDefault("LEDGER_TX_ISOLATION", IsolationReadCommitted)

	v.SetDefault("ENABLE_IDEMPOTENCY", false)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("REPORTS_MAX_ROWS", 5000)
}

// Location resolves the ledger timezone, falling back to UTC.
func (c LedgerConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func normalizeIsolation(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case IsolationRepeatableRead:
		return IsolationRepeatableRead
	case IsolationSerializable:
		return IsolationSerializable
	default:
		return IsolationReadCommitted
	}
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
