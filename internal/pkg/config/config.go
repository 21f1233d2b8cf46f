package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/piresc/topup/internal/pkg/models"
)

func InitConfig(configPath string) *models.Config {
	local := GetEnv("APP_ENV", "local")
	if local == "local" {
		// Load config from file
		err := godotenv.Load(configPath)
		if err != nil {
			log.Println("error loading config from file", err)
		}
	}
	// Create config from environment variables
	return loadConfigFromEnv()
}

func loadConfigFromEnv() *models.Config {
	configs := &models.Config{}

	// App config
	configs.App.Name = GetEnv("APP_NAME", "payments-service")
	configs.App.Environment = GetEnv("APP_ENV", "")
	configs.App.Debug = GetEnvAsBool("APP_DEBUG", true)
	configs.App.Version = GetEnv("APP_VERSION", "")

	// Server config
	configs.Server.Host = GetEnv("SERVER_HOST", "")
	configs.Server.Port = GetEnvAsInt("SERVER_PORT", 9995)
	configs.Server.ReadTimeout = GetEnvAsInt("SERVER_READ_TIMEOUT", 0)
	configs.Server.WriteTimeout = GetEnvAsInt("SERVER_WRITE_TIMEOUT", 0)
	configs.Server.ShutdownTimeout = GetEnvAsInt("SERVER_SHUTDOWN_TIMEOUT", 30)

	// Database config
	configs.Database.Driver = GetEnv("DB_DRIVER", "pgx")
	configs.Database.Host = GetEnv("DB_HOST", "")
	configs.Database.Port = GetEnvAsInt("DB_PORT", 5432)
	configs.Database.Username = GetEnv("DB_USERNAME", "")
	configs.Database.Password = GetEnv("DB_PASSWORD", "")
	configs.Database.Database = GetEnv("DB_DATABASE", "")
	configs.Database.SSLMode = GetEnv("DB_SSL_MODE", "disable")
	configs.Database.MaxConns = GetEnvAsInt("DB_MAX_CONNS", 0)
	configs.Database.IdleConns = GetEnvAsInt("DB_IDLE_CONNS", 0)

	// Redis config
	configs.Redis.Host = GetEnv("REDIS_HOST", "")
	configs.Redis.Port = GetEnvAsInt("REDIS_PORT", 6379)
	configs.Redis.Password = GetEnv("REDIS_PASSWORD", "")
	configs.Redis.DB = GetEnvAsInt("REDIS_DB", 0)
	configs.Redis.PoolSize = GetEnvAsInt("REDIS_POOL_SIZE", 0)

	// Event brokers
	configs.NATS.URL = GetEnv("NATS_URL", "")
	configs.NSQ.Address = GetEnv("NSQ_ADDRESS", "")
	configs.Events.Broker = GetEnv("EVENTS_BROKER", "nats")

	// JWT config
	configs.JWT.Secret = GetEnv("JWT_SECRET", "")
	configs.JWT.Expiration = GetEnvAsInt("JWT_EXPIRATION", 60)
	configs.JWT.Issuer = GetEnv("JWT_ISSUER", "")

	// API keys for internal callers
	configs.APIKey.AdminService = GetEnv("ADMIN_SERVICE_API_KEY", "")
	configs.APIKey.OpsService = GetEnv("OPS_SERVICE_API_KEY", "")

	// Payment gateway config
	configs.Gateway.BaseURL = GetEnv("GATEWAY_BASE_URL", "https://api.paystack.co")
	configs.Gateway.SecretKey = GetEnv("GATEWAY_SECRET_KEY", "")
	configs.Gateway.CallbackURL = GetEnv("GATEWAY_CALLBACK_URL", "")
	configs.Gateway.Timeout = time.Duration(GetEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second
	configs.Gateway.WebhookVerifySignature = GetEnvAsBool("GATEWAY_WEBHOOK_VERIFY_SIGNATURE", true)

	// Payments policy
	configs.Payments.Currency = GetEnv("PAYMENTS_CURRENCY", "NGN")
	configs.Payments.MinAmount = GetEnvAsInt64("PAYMENTS_MIN_AMOUNT", 100)
	configs.Payments.ReferenceMaxAttempts = GetEnvAsInt("PAYMENTS_REFERENCE_MAX_ATTEMPTS", 5)
	configs.Payments.VerifyMaxRetries = GetEnvAsInt("PAYMENTS_VERIFY_MAX_RETRIES", 2)
	configs.Payments.VerifyRetryBaseDelay = GetEnvAsDuration("PAYMENTS_VERIFY_RETRY_BASE_DELAY", 200*time.Millisecond)
	configs.Payments.ReconcileAfter = GetEnvAsDuration("PAYMENTS_RECONCILE_AFTER", 15*time.Minute)
	configs.Payments.StaleAfter = GetEnvAsDuration("PAYMENTS_STALE_AFTER", 24*time.Hour)
	configs.Payments.ReconcileBatchSize = GetEnvAsInt("PAYMENTS_RECONCILE_BATCH_SIZE", 100)
	configs.Payments.CacheTTL = GetEnvAsDuration("PAYMENTS_CACHE_TTL", 24*time.Hour)
	configs.Payments.InitiateRateLimit = GetEnvAsInt("PAYMENTS_INITIATE_RATE_LIMIT", 10)
	configs.Payments.InitiateRateLimitSpan = GetEnvAsDuration("PAYMENTS_INITIATE_RATE_LIMIT_SPAN", time.Minute)

	// NewRelic config
	configs.NewRelic.LicenseKey = GetEnv("NEW_RELIC_LICENSE_KEY", "")
	configs.NewRelic.AppName = GetEnv("NEW_RELIC_APP_NAME", "")
	configs.NewRelic.Enabled = GetEnvAsBool("NEW_RELIC_ENABLED", false)
	configs.NewRelic.ForwardLogs = GetEnvAsBool("NEW_RELIC_FORWARD_LOGS", false)

	// Logger config
	configs.Logger.Level = GetEnv("LOG_LEVEL", "info")
	configs.Logger.FilePath = GetEnv("LOG_FILE_PATH", "")

	return configs
}

// Helper functions to get environment variables with different types
func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func GetEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Warning: Invalid int64 value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

// GetEnvAsDuration parses values such as "24h" or "500ms"
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := GetEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}
