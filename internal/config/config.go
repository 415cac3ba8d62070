package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	Stripe       StripeConfig       `yaml:"stripe"`
	SendGrid     SendGridConfig     `yaml:"sendgrid"`
	Notification NotificationConfig `yaml:"notification"`
	Redis        RedisConfig        `yaml:"redis"`
	Log          LogConfig          `yaml:"log"`
	Lending      LendingConfig      `yaml:"lending"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// JWTConfig contains bearer token verification settings
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// StripeConfig contains payment gateway settings
type StripeConfig struct {
	SecretKey             string `yaml:"secret_key"`
	PublishableKey        string `yaml:"publishable_key"`
	Currency              string `yaml:"currency"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// SendGridConfig contains email delivery settings
type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// NotificationConfig contains async dispatch settings
type NotificationConfig struct {
	Sender        string  `yaml:"sender"` // "sendgrid" or "log"
	Workers       int     `yaml:"workers"`
	QueueSize     int     `yaml:"queue_size"`
	MaxRetries    int     `yaml:"max_retries"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// RedisConfig contains the optional idempotency store settings.
// An empty Addr selects the in-process store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// LendingConfig contains lending policy settings
type LendingConfig struct {
	SettlementGraceHours int `yaml:"settlement_grace_hours"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	MarkOverdueItems         string `yaml:"mark_overdue_items"`
	SendOverdueNotifications string `yaml:"send_overdue_notifications"`
	RollbackStaleSettlements string `yaml:"rollback_stale_settlements"`
	PageSize                 int    `yaml:"page_size"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a validated configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Stripe
	if val := os.Getenv("STRIPE_SECRET_KEY"); val != "" {
		c.Stripe.SecretKey = val
	}
	if val := os.Getenv("STRIPE_PUBLISHABLE_KEY"); val != "" {
		c.Stripe.PublishableKey = val
	}

	// SendGrid
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	// Stripe validation
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("stripe secret key is required")
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "usd"
	}
	if c.Stripe.RequestTimeoutSeconds <= 0 {
		c.Stripe.RequestTimeoutSeconds = 10
	}

	// Notification defaults
	if c.Notification.Sender == "" {
		c.Notification.Sender = "log"
	}
	if c.Notification.Sender != "log" && c.Notification.Sender != "sendgrid" {
		return fmt.Errorf("unsupported notification sender: %s", c.Notification.Sender)
	}
	if c.Notification.Sender == "sendgrid" && c.SendGrid.APIKey == "" {
		return fmt.Errorf("sendgrid api key is required")
	}
	if c.Notification.Workers <= 0 {
		c.Notification.Workers = 2
	}
	if c.Notification.QueueSize <= 0 {
		c.Notification.QueueSize = 100
	}
	if c.Notification.MaxRetries < 0 {
		c.Notification.MaxRetries = 0
	}
	if c.Notification.RatePerSecond <= 0 {
		c.Notification.RatePerSecond = 5
	}

	// Lending defaults
	if c.Lending.SettlementGraceHours <= 0 {
		c.Lending.SettlementGraceHours = 24
	}

	// Scheduler defaults
	if c.Scheduler.MarkOverdueItems == "" {
		c.Scheduler.MarkOverdueItems = "0 1 0 * * *" // 00:01 UTC
	}
	if c.Scheduler.SendOverdueNotifications == "" {
		c.Scheduler.SendOverdueNotifications = "0 0 12 * * *" // Noon UTC
	}
	if c.Scheduler.RollbackStaleSettlements == "" {
		c.Scheduler.RollbackStaleSettlements = "0 0 0 * * *" // Midnight UTC
	}
	if c.Scheduler.PageSize <= 0 {
		c.Scheduler.PageSize = 50
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SettlementGrace is how long a paid item may stay out before the payment lapses
func (c *Config) SettlementGrace() time.Duration {
	return time.Duration(c.Lending.SettlementGraceHours) * time.Hour
}

// GatewayTimeout bounds every payment gateway request
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Stripe.RequestTimeoutSeconds) * time.Second
}
