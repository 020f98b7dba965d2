package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Ledger backends
const (
	LedgerBackendRedis  = "redis"
	LedgerBackendMemory = "memory"
)

// Config holds the application configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort  int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	APIPrefix   string `env:"API_PREFIX" envDefault:"/api/v1"`

	DB DBConfig

	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LedgerBackend string `env:"LEDGER_BACKEND" envDefault:"redis"`

	HMACSecretKey              string `env:"HMAC_SECRET_KEY"`
	HMACTokenExpirationSeconds int    `env:"HMAC_TOKEN_EXPIRATION_SECONDS" envDefault:"86400"`
	SSOMFAURL                  string `env:"SSO_MFA_URL" envDefault:"http://localhost:3000"`

	SMTP              SMTPConfig
	MailSenderNoreply string `env:"MAIL_SENDER_NOREPLY" envDefault:"\"InfinityHubs\" <noreply@infinityhubs.in>"`

	AutoPromoteOnCreate bool          `env:"AUTO_PROMOTE_ON_CREATE" envDefault:"true"`
	NotifyWorkers       int           `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyQueueSize     int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"100"`
	TaskTimeout         time.Duration `env:"TASK_TIMEOUT" envDefault:"30s"`

	VerifyRateLimit  int           `env:"VERIFY_RATE_LIMIT" envDefault:"10"`
	VerifyRateWindow time.Duration `env:"VERIFY_RATE_WINDOW" envDefault:"1m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// DBConfig holds the Postgres connection settings
type DBConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"tenantonboard"`
	Password        string        `env:"DB_PASSWORD" envDefault:"dev"`
	Name            string        `env:"DB_NAME" envDefault:"tenantonboard"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// SMTPConfig holds outbound mail settings. An empty Host disables delivery
// and mail is written to the log instead.
type SMTPConfig struct {
	Host     string        `env:"SMTP_HOST"`
	Port     int           `env:"SMTP_PORT" envDefault:"465"`
	Username string        `env:"SMTP_USERNAME"`
	Password string        `env:"SMTP_PASSWORD"`
	Timeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment values win.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.CORSAllowedOrigins = trimCSV(cfg.CORSAllowedOrigins)
	cfg.APIPrefix = "/" + strings.Trim(cfg.APIPrefix, "/")
	cfg.SSOMFAURL = strings.TrimRight(cfg.SSOMFAURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.HMACSecretKey == "" {
		if c.IsDevelopment() {
			c.HMACSecretKey = "development-only-secret"
		} else {
			errs = append(errs, errors.New("HMAC_SECRET_KEY is required"))
		}
	}
	if c.HMACTokenExpirationSeconds <= 0 {
		errs = append(errs, fmt.Errorf("invalid HMAC_TOKEN_EXPIRATION_SECONDS: %d", c.HMACTokenExpirationSeconds))
	}
	switch c.LedgerBackend {
	case LedgerBackendRedis, LedgerBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid LEDGER_BACKEND: %q", c.LedgerBackend))
	}
	if c.SMTP.Host != "" && c.SMTP.Port != 465 && c.SMTP.Port != 587 {
		errs = append(errs, fmt.Errorf("invalid SMTP_PORT: %d (465 or 587)", c.SMTP.Port))
	}
	if c.NotifyWorkers <= 0 || c.NotifyQueueSize <= 0 {
		errs = append(errs, errors.New("NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be positive"))
	}
	if c.VerifyRateLimit <= 0 {
		errs = append(errs, fmt.Errorf("invalid VERIFY_RATE_LIMIT: %d", c.VerifyRateLimit))
	}
	if c.VerifyRateWindow <= 0 {
		errs = append(errs, fmt.Errorf("invalid VERIFY_RATE_WINDOW: %s", c.VerifyRateWindow))
	}
	if c.TaskTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid TASK_TIMEOUT: %s", c.TaskTimeout))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in the development environment
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// TokenTTL is the lifetime of activation tokens and their ledger entries
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.HMACTokenExpirationSeconds) * time.Second
}

func trimCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
