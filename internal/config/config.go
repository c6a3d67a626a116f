package config

import (
	"fmt"
	"net"
	"slices"
	"time"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	pkgconfig "github.com/alex-rublevsky/rublevsky-studio/pkg/config"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/database"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/logger"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/tracing"
)

// Mail transports selectable with MAIL_TRANSPORT.
const (
	MailTransportLog  = "log"
	MailTransportSMTP = "smtp"
	MailTransportAPI  = "api"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "storefront"

// Config holds all configuration for the storefront.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Rotating log file, disabled when LOG_FILE is empty.
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`

	// HTTP server
	HTTPPort       int           `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	PprofCIDRs     []string      `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
	CatalogMaxAge  time.Duration `env:"CATALOG_CACHE_MAX_AGE" envDefault:"60s"`

	// Requests per minute per client IP on checkout and auth.
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// PostgreSQL. DATABASE_URL, when set, wins over the discrete fields.
	DatabaseURL        string        `env:"DATABASE_URL"`
	DBHost             string        `env:"DB_HOST" envDefault:"localhost"`
	DBPort             int           `env:"DB_PORT" envDefault:"5432"`
	DBUser             string        `env:"DB_USER" envDefault:"storefront"`
	DBPassword         string        `env:"DB_PASSWORD" envDefault:"storefront"`
	DBName             string        `env:"DB_NAME" envDefault:"storefront"`
	DBSSLMode          string        `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	SlowQueryThreshold time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	AutoMigrate        bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// Redis
	RedisURL      string `env:"REDIS_URL"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	CartTTL         time.Duration `env:"CART_TTL" envDefault:"168h"`
	ProductCacheTTL time.Duration `env:"PRODUCT_CACHE_TTL" envDefault:"5m"`
	IdempotencyTTL  time.Duration `env:"EVENT_IDEMPOTENCY_TTL" envDefault:"72h"`

	// Kafka. Without brokers events are dropped, no consumers run and
	// checkout sends the owner alert itself.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Auth
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-me-in-production-at-least-32-bytes"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// Pricing and shipping, in minor units of Currency.
	Currency              string `env:"STORE_CURRENCY" envDefault:"CAD"`
	ShippingFlatRate      int64  `env:"SHIPPING_FLAT_RATE" envDefault:"1000"`
	FreeShippingThreshold int64  `env:"FREE_SHIPPING_THRESHOLD" envDefault:"10000"`

	// Shop identity used in emails.
	ShopName       string `env:"SHOP_NAME" envDefault:"Rublevsky Studio"`
	ShopURL        string `env:"SHOP_URL" envDefault:"http://localhost:3000"`
	// ShopOwnerEmail receives an alert for every order. Empty disables alerts.
	ShopOwnerEmail string `env:"SHOP_OWNER_EMAIL"`

	// Mail
	MailTransport string        `env:"MAIL_TRANSPORT" envDefault:"log"`
	MailFrom      string        `env:"MAIL_FROM" envDefault:"shop@localhost"`
	MailFromName  string        `env:"MAIL_FROM_NAME" envDefault:"Rublevsky Studio"`
	MailTimeout   time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`
	SMTPHost      string        `env:"SMTP_HOST"`
	SMTPPort      int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername  string        `env:"SMTP_USERNAME"`
	SMTPPassword  string        `env:"SMTP_PASSWORD"`
	MailAPIURL    string        `env:"MAIL_API_URL"`
	MailAPIKey    string        `env:"MAIL_API_KEY"`

	// Tracing
	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.IsProduction() && c.JWTSecret == "change-me-in-production-at-least-32-bytes" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("invalid JWT expiry: %s", c.JWTExpiry)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("invalid currency %q: want a 3-letter code", c.Currency)
	}
	if c.ShippingFlatRate < 0 || c.FreeShippingThreshold < 0 {
		return fmt.Errorf("shipping amounts must not be negative")
	}
	if c.CartTTL <= 0 {
		return fmt.Errorf("invalid cart TTL: %s", c.CartTTL)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("invalid tracing sample rate: %v", c.TracingSampleRate)
	}

	switch c.MailTransport {
	case MailTransportLog:
	case MailTransportSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required for MAIL_TRANSPORT=smtp")
		}
	case MailTransportAPI:
		if c.MailAPIURL == "" || c.MailAPIKey == "" {
			return fmt.Errorf("MAIL_API_URL and MAIL_API_KEY are required for MAIL_TRANSPORT=api")
		}
	default:
		return fmt.Errorf("invalid mail transport %q: want one of log, smtp, api", c.MailTransport)
	}

	for _, cidr := range c.PprofCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid pprof CIDR %q: %w", cidr, err)
		}
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return slices.Contains([]string{"production", "prod"}, c.Environment)
}

// Postgres returns the database connection settings.
func (c *Config) Postgres() database.PostgresConfig {
	pc := database.DefaultPostgresConfig()
	pc.URL = c.DatabaseURL
	pc.Host = c.DBHost
	pc.Port = c.DBPort
	pc.User = c.DBUser
	pc.Password = c.DBPassword
	pc.DBName = c.DBName
	pc.SSLMode = c.DBSSLMode
	pc.MaxConns = c.DBMaxConns
	pc.MinConns = c.DBMinConns
	return pc
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		URL:      c.RedisURL,
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// LogFileConfig returns the rotating file settings.
func (c *Config) LogFileConfig() logger.FileConfig {
	return logger.FileConfig{
		Path:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
		Compress:   true,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing(version string) tracing.Config {
	return tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.TracingEndpoint,
		SampleRate:     c.TracingSampleRate,
		Enabled:        c.TracingEnabled,
	}
}

// ShippingPolicy returns the checkout shipping rule.
func (c *Config) ShippingPolicy() domain.ShippingPolicy {
	return domain.ShippingPolicy{FlatRate: c.ShippingFlatRate, FreeThreshold: c.FreeShippingThreshold}
}
