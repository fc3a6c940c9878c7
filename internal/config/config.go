package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Session   SessionConfig
	Throttle  ThrottleConfig
	RateLimit RateLimitConfig
	Reports   ReportConfig
	Email     EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	SentryDSN      string
}

type SessionConfig struct {
	IdleTimeout time.Duration
	Store       string // "memory" or "redis"
	RedisAddr   string
	RedisDB     int
	CookieName  string
}

// ThrottleConfig covers both the IP-keyed login throttle and the parallel
// per-account lock in the credential store. Both use the same thresholds.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
	Store       string // "memory" or "redis"
}

// ActionLimit configures the sliding-window rate limiter for one action.
type ActionLimit struct {
	Limit  int
	Window time.Duration
}

type RateLimitConfig struct {
	Actions   map[string]ActionLimit
	Retention time.Duration // how long rate_limits rows are kept
}

type ReportConfig struct {
	CronSecret    string
	SigningSecret string        // signs report download tokens
	DownloadTTL   time.Duration // lifetime of a signed download link
	TickInterval  time.Duration // in-process scheduler tick
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "coverdesk"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseList(getEnv("ALLOWED_ORIGINS", "")),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
			SentryDSN:      getEnv("SENTRY_DSN", ""),
		},
		Session: SessionConfig{
			IdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 1*time.Hour),
			Store:       getEnv("SESSION_STORE", "memory"),
			RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
			RedisDB:     getEnvAsInt("REDIS_DB", 0),
			CookieName:  getEnv("SESSION_COOKIE_NAME", "coverdesk_session"),
		},
		Throttle: ThrottleConfig{
			MaxAttempts: getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
			Window:      getEnvAsDuration("LOGIN_THROTTLE_WINDOW", 5*time.Minute),
			Store:       getEnv("THROTTLE_STORE", "memory"),
		},
		RateLimit: RateLimitConfig{
			Actions:   defaultActionLimits(),
			Retention: getEnvAsDuration("RATE_LIMIT_RETENTION", 24*time.Hour),
		},
		Reports: ReportConfig{
			CronSecret:    getEnv("CRON_SECRET", ""),
			SigningSecret: getEnv("REPORT_SIGNING_SECRET", ""),
			DownloadTTL:   getEnvAsDuration("REPORT_DOWNLOAD_TTL", 15*time.Minute),
			TickInterval:  getEnvAsDuration("REPORT_TICK_INTERVAL", 5*time.Minute),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Session.Store != "memory" && cfg.Session.Store != "redis" {
		return nil, fmt.Errorf("SESSION_STORE must be \"memory\" or \"redis\", got %q", cfg.Session.Store)
	}

	if cfg.Reports.SigningSecret == "" {
		return nil, fmt.Errorf("REPORT_SIGNING_SECRET is required")
	}
	if err := validateSigningSecret(cfg.Reports.SigningSecret, env); err != nil {
		return nil, err
	}

	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM is required when EMAIL_ENABLED is set")
	}

	return cfg, nil
}

// defaultActionLimits is the action -> {limit, window} mapping for the
// sliding-window rate limiter. Actions absent from the map are not limited.
func defaultActionLimits() map[string]ActionLimit {
	limits := map[string]ActionLimit{
		"report_generate": {Limit: getEnvAsInt("RATE_LIMIT_REPORT_GENERATE", 5), Window: getEnvAsDuration("RATE_LIMIT_REPORT_GENERATE_WINDOW", 1*time.Hour)},
		"claim_file":      {Limit: getEnvAsInt("RATE_LIMIT_CLAIM_FILE", 10), Window: getEnvAsDuration("RATE_LIMIT_CLAIM_FILE_WINDOW", 1*time.Hour)},
		"setting_update":  {Limit: getEnvAsInt("RATE_LIMIT_SETTING_UPDATE", 20), Window: getEnvAsDuration("RATE_LIMIT_SETTING_UPDATE_WINDOW", 1*time.Hour)},
	}
	return limits
}

// validateSigningSecret enforces minimum strength for the report token secret
func validateSigningSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("REPORT_SIGNING_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("REPORT_SIGNING_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
