package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Server    ServerConfig
	Gateway   GatewayConfig
	Email     EmailConfig
	Slack     SlackConfig
	Notify    NotifyConfig
	Lease     LeaseConfig
	Payment   PaymentConfig
	Scheduler SchedulerConfig
	Log       LogConfig
	Metrics   bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds the shared secret used to verify principal tokens.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT verification secret config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RateLimit    float64
	RateBurst    int
}

// GatewayConfig holds Midtrans settings.
type GatewayConfig struct {
	ServerKey  string //nolint:gosec // G117: gateway credential config
	Production bool
	Webhook    bool
}

// EmailConfig holds the HTTP email provider settings. An empty BaseURL
// selects the log-only mailer.
type EmailConfig struct {
	BaseURL string
	APIKey  string //nolint:gosec // G117: provider credential config
	From    string
	Timeout time.Duration
}

// SlackConfig holds ops alert settings. Alerts are off without a token.
type SlackConfig struct {
	BotToken string
	Channel  string
}

// NotifyConfig holds notification dispatcher settings.
type NotifyConfig struct {
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	PollInterval time.Duration
	BatchSize    int
	SendTimeout  time.Duration
}

type LeaseConfig struct {
	AutoRenew            bool
	HoldUnitUntilSettled bool
}

type PaymentConfig struct {
	StaleAfter time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables, after merging a
// .env file from the working directory when one exists. Variables already
// set in the environment win over the file.
// Defaults are safe for local development only.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: reading .env: %w", err)
	}

	var p parser
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("LEASEKEEP_DB_HOST", "localhost"),
			Port:     p.int("LEASEKEEP_DB_PORT", 5432),
			User:     getEnv("LEASEKEEP_DB_USER", "leasekeep"),
			Password: getEnv("LEASEKEEP_DB_PASSWORD", ""),
			DBName:   getEnv("LEASEKEEP_DB_NAME", "leasekeep_dev"),
			SSLMode:  getEnv("LEASEKEEP_DB_SSLMODE", "disable"),
			MaxConns: p.int("LEASEKEEP_DB_MAX_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr:     getEnv("LEASEKEEP_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("LEASEKEEP_REDIS_PASSWORD", ""),
			DB:       p.int("LEASEKEEP_REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("LEASEKEEP_JWT_SECRET", ""),
		},
		Server: ServerConfig{
			Addr:         getEnv("LEASEKEEP_SERVER_ADDR", ":8080"),
			ReadTimeout:  p.duration("LEASEKEEP_SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: p.duration("LEASEKEEP_SERVER_WRITE_TIMEOUT", 30*time.Second),
			CORSOrigins:  getEnvList("LEASEKEEP_CORS_ORIGINS", []string{"http://localhost:5173"}),
			RateLimit:    p.float("LEASEKEEP_RATE_LIMIT", 10),
			RateBurst:    p.int("LEASEKEEP_RATE_BURST", 20),
		},
		Gateway: GatewayConfig{
			ServerKey:  getEnv("LEASEKEEP_MIDTRANS_SERVER_KEY", ""),
			Production: p.bool("LEASEKEEP_MIDTRANS_PRODUCTION", false),
			Webhook:    p.bool("LEASEKEEP_MIDTRANS_WEBHOOK", true),
		},
		Email: EmailConfig{
			BaseURL: getEnv("LEASEKEEP_EMAIL_BASE_URL", ""),
			APIKey:  getEnv("LEASEKEEP_EMAIL_API_KEY", ""),
			From:    getEnv("LEASEKEEP_EMAIL_FROM", "noreply@leasekeep.local"),
			Timeout: p.duration("LEASEKEEP_EMAIL_TIMEOUT", 10*time.Second),
		},
		Slack: SlackConfig{
			BotToken: getEnv("LEASEKEEP_SLACK_BOT_TOKEN", ""),
			Channel:  getEnv("LEASEKEEP_SLACK_CHANNEL", "#leasekeep-ops"),
		},
		Notify: NotifyConfig{
			MaxAttempts:  p.int("LEASEKEEP_NOTIFY_MAX_ATTEMPTS", 5),
			BaseBackoff:  p.duration("LEASEKEEP_NOTIFY_BASE_BACKOFF", 30*time.Second),
			MaxBackoff:   p.duration("LEASEKEEP_NOTIFY_MAX_BACKOFF", 30*time.Minute),
			PollInterval: p.duration("LEASEKEEP_NOTIFY_POLL_INTERVAL", 5*time.Second),
			BatchSize:    p.int("LEASEKEEP_NOTIFY_BATCH_SIZE", 20),
			SendTimeout:  p.duration("LEASEKEEP_NOTIFY_SEND_TIMEOUT", 10*time.Second),
		},
		Lease: LeaseConfig{
			AutoRenew:            p.bool("LEASEKEEP_LEASE_AUTO_RENEW", false),
			HoldUnitUntilSettled: p.bool("LEASEKEEP_LEASE_HOLD_UNIT_UNTIL_SETTLED", false),
		},
		Payment: PaymentConfig{
			StaleAfter: p.duration("LEASEKEEP_PAYMENT_STALE_AFTER", 24*time.Hour),
		},
		Scheduler: SchedulerConfig{
			Interval: p.duration("LEASEKEEP_SCHEDULER_INTERVAL", time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LEASEKEEP_LOG_LEVEL", "info"),
			Format: getEnv("LEASEKEEP_LOG_FORMAT", "json"),
		},
		Metrics: p.bool("LEASEKEEP_METRICS", true),
	}
	if p.err != nil {
		return nil, fmt.Errorf("config.Load: %w", p.err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("LEASEKEEP_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("LEASEKEEP_JWT_SECRET must be at least 32 characters")
	}

	if c.Database.SSLMode == "disable" {
		log.Warn().Msg("LEASEKEEP_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}
	if c.Gateway.Webhook && c.Gateway.ServerKey == "" {
		log.Warn().Msg("LEASEKEEP_MIDTRANS_SERVER_KEY is empty; webhook notifications will be rejected")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("LEASEKEEP_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("LEASEKEEP_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("LEASEKEEP_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("LEASEKEEP_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
		return fmt.Errorf("LEASEKEEP_RATE_LIMIT and LEASEKEEP_RATE_BURST must be positive, got %g/%d",
			c.Server.RateLimit, c.Server.RateBurst)
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("LEASEKEEP_NOTIFY_MAX_ATTEMPTS must be >= 1, got %d", c.Notify.MaxAttempts)
	}
	if c.Notify.BaseBackoff <= 0 || c.Notify.MaxBackoff < c.Notify.BaseBackoff {
		return fmt.Errorf("LEASEKEEP_NOTIFY_BASE_BACKOFF must be positive and <= LEASEKEEP_NOTIFY_MAX_BACKOFF, got %s/%s",
			c.Notify.BaseBackoff, c.Notify.MaxBackoff)
	}
	if c.Notify.PollInterval <= 0 {
		return fmt.Errorf("LEASEKEEP_NOTIFY_POLL_INTERVAL must be positive, got %s", c.Notify.PollInterval)
	}
	if c.Notify.BatchSize < 1 {
		return fmt.Errorf("LEASEKEEP_NOTIFY_BATCH_SIZE must be >= 1, got %d", c.Notify.BatchSize)
	}
	if c.Payment.StaleAfter <= 0 {
		return fmt.Errorf("LEASEKEEP_PAYMENT_STALE_AFTER must be positive, got %s", c.Payment.StaleAfter)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("LEASEKEEP_SCHEDULER_INTERVAL must be positive, got %s", c.Scheduler.Interval)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// parser keeps the first parse error so Load can read every group in one pass.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	v, err := getEnvInt(key, fallback)
	p.keep(err)
	return v
}

func (p *parser) bool(key string, fallback bool) bool {
	v, err := getEnvBool(key, fallback)
	p.keep(err)
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v, err := getEnvDuration(key, fallback)
	p.keep(err)
	return v
}

func (p *parser) float(key string, fallback float64) float64 {
	v, err := getEnvFloat(key, fallback)
	p.keep(err)
	return v
}

func (p *parser) keep(err error) {
	if p.err == nil {
		p.err = err
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
