package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const defaultSourceURL = "https://www.mtss.go.cr/temas-laborales/salarios/Documentos-Salarios/lista_salarios_2025.pdf"

// Config holds all application configuration
type Config struct {
	Source        SourceConfig
	Extraction    ExtractionConfig
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
	Gemini        GeminiConfig
	Refresh       RefreshConfig
	Notify        NotifyConfig
}

type SourceConfig struct {
	URL             string
	CacheDir        string
	DownloadTimeout time.Duration
	Offline         bool
}

type ExtractionConfig struct {
	OutputPath string
	XLSXPath   string
	Edition    string
	Workers    int
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSOrigins        []string
	ShutdownTimeout    time.Duration
}

// DatabaseConfig configures the optional Postgres mirror. URL, when set,
// takes precedence over the individual fields.
type DatabaseConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       slog.Level
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// GeminiConfig is optional. Without an API key the analysis endpoint
// answers 500 and everything else keeps working. GOOGLE_API_KEY is read
// when GEMINI_API_KEY is unset.
type GeminiConfig struct {
	APIKey            string
	Model             string
	BaseURL           string
	RequestsPerMinute int
}

// RefreshConfig schedules periodic pipeline runs. An empty schedule
// disables them.
type RefreshConfig struct {
	Schedule string
	Timeout  time.Duration
}

// NotifyConfig configures failure e-mails. Empty APIKey disables them.
type NotifyConfig struct {
	ResendAPIKey string
	From         string
	To           []string
}

// LoadDotEnv reads .env files into the environment. Missing files are ignored
// and variables already set win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	LoadDotEnv()

	cfg := &Config{
		Source: SourceConfig{
			URL:             getEnv("SOURCE_URL", defaultSourceURL),
			CacheDir:        getEnv("SOURCE_CACHE_DIR", "data/documents"),
			DownloadTimeout: getEnvAsDuration("SOURCE_DOWNLOAD_TIMEOUT", 60*time.Second),
			Offline:         getEnvAsBool("SOURCE_OFFLINE", false),
		},
		Extraction: ExtractionConfig{
			OutputPath: getEnv("OUTPUT_CSV", "salarios_limpios_2025.csv"),
			XLSXPath:   getEnv("OUTPUT_XLSX", ""),
			Edition:    getEnv("EDITION", "2025"),
			Workers:    getEnvAsInt("DECODE_WORKERS", 1),
		},
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 5000),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 40),
			CORSOrigins:        getEnvAsList("CORS_ORIGINS"),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("POSTGRES_ENABLED", false),
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "salarios"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 4),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			LogLevel:       getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
		},
		Profiling: ProfilingConfig{
			Enabled: getEnvAsBool("PPROF_ENABLED", false),
			Port:    getEnvAsInt("PPROF_PORT", 6060),
		},
		Gemini: GeminiConfig{
			APIKey:            getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
			Model:             getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
			BaseURL:           getEnv("GEMINI_BASE_URL", ""),
			RequestsPerMinute: getEnvAsInt("GEMINI_REQUESTS_PER_MINUTE", 30),
		},
		Refresh: RefreshConfig{
			Schedule: getEnv("REFRESH_SCHEDULE", ""),
			Timeout:  getEnvAsDuration("REFRESH_TIMEOUT", 10*time.Minute),
		},
		Notify: NotifyConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			From:         getEnv("NOTIFY_FROM", ""),
			To:           getEnvAsList("NOTIFY_TO"),
		},
	}

	if cfg.Database.URL != "" {
		cfg.Database.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects malformed values. Optional features left unset are fine.
func (c *Config) Validate() error {
	var errs []error

	if c.Source.URL == "" && !c.Source.Offline {
		errs = append(errs, errors.New("SOURCE_URL is required unless SOURCE_OFFLINE is set"))
	}
	if c.Extraction.OutputPath == "" {
		errs = append(errs, errors.New("OUTPUT_CSV must not be empty"))
	}
	if c.Extraction.Workers < 1 {
		errs = append(errs, fmt.Errorf("DECODE_WORKERS must be at least 1, got %d", c.Extraction.Workers))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port))
	}
	if c.Server.RateLimitPerSecond < 1 || c.Server.RateLimitBurst < 1 {
		errs = append(errs, errors.New("rate limit values must be positive"))
	}
	if c.Refresh.Schedule != "" {
		if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("REFRESH_SCHEDULE %q: %w", c.Refresh.Schedule, err))
		}
	}
	if c.Notify.ResendAPIKey != "" && (c.Notify.From == "" || len(c.Notify.To) == 0) {
		errs = append(errs, errors.New("NOTIFY_FROM and NOTIFY_TO are required with RESEND_API_KEY"))
	}

	return errors.Join(errs...)
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns host:port for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err == nil {
		return level
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
