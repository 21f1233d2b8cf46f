package models

import "time"

// Config represents application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	NSQ      NSQConfig
	Events   EventsConfig
	JWT      JWTConfig
	APIKey   APIKeyConfig
	Gateway  GatewayConfig
	Payments PaymentsConfig
	NewRelic NewRelicConfig
	Logger   LoggerConfig
}

// AppConfig contains application-specific configuration
type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
	Version     string
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	Username  string
	Password  string
	Database  string
	SSLMode   string
	MaxConns  int
	IdleConns int
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// NATSConfig contains NATS connection configuration
type NATSConfig struct {
	URL string
}

// NSQConfig contains NSQ daemon configuration
type NSQConfig struct {
	Address string
}

// EventsConfig selects the broker that carries payment events ("nats" or "nsq")
type EventsConfig struct {
	Broker string
}

// JWTConfig contains JWT authentication configuration
type JWTConfig struct {
	Secret     string
	Expiration int // in minutes
	Issuer     string
}

// APIKeyConfig maps internal caller names to their API keys
type APIKeyConfig struct {
	AdminService string
	OpsService   string
}

// Keys returns the configured service name to key mapping
func (c APIKeyConfig) Keys() map[string]string {
	return map[string]string{
		"admin-service": c.AdminService,
		"ops-service":   c.OpsService,
	}
}

// GatewayConfig holds the external payment processor settings
type GatewayConfig struct {
	BaseURL                string
	SecretKey              string
	CallbackURL            string
	Timeout                time.Duration
	WebhookVerifySignature bool
}

// PaymentsConfig holds top-up policy values
type PaymentsConfig struct {
	Currency              string
	MinAmount             int64 // minor units
	ReferenceMaxAttempts  int
	VerifyMaxRetries      int
	VerifyRetryBaseDelay  time.Duration
	ReconcileAfter        time.Duration
	StaleAfter            time.Duration
	ReconcileBatchSize    int
	CacheTTL              time.Duration
	InitiateRateLimit     int
	InitiateRateLimitSpan time.Duration
}

// NewRelicConfig contains New Relic APM configuration
type NewRelicConfig struct {
	LicenseKey  string
	AppName     string
	Enabled     bool
	ForwardLogs bool
}

// LoggerConfig contains Zap logger configuration
type LoggerConfig struct {
	Level    string
	FilePath string
}
