package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg := InitConfig("does-not-exist.env")

	assert.Equal(t, "payments-service", cfg.App.Name)
	assert.Equal(t, "NGN", cfg.Payments.Currency)
	assert.Equal(t, int64(100), cfg.Payments.MinAmount)
	assert.Equal(t, 5, cfg.Payments.ReferenceMaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Payments.StaleAfter)
	assert.Equal(t, 15*time.Minute, cfg.Payments.ReconcileAfter)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.True(t, cfg.Gateway.WebhookVerifySignature)
	assert.Equal(t, "nats", cfg.Events.Broker)
}

func TestInitConfig_LoadsEnvFileWhenLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payments.env")
	content := "PAYMENTS_MIN_AMOUNT=5000\nPAYMENTS_STALE_AFTER=2h\nGATEWAY_SECRET_KEY=sk_test_abc\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("APP_ENV", "local")
	// godotenv never overrides variables that are already set, so start clean
	for _, key := range []string{"PAYMENTS_MIN_AMOUNT", "PAYMENTS_STALE_AFTER", "GATEWAY_SECRET_KEY"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg := InitConfig(path)

	assert.Equal(t, int64(5000), cfg.Payments.MinAmount)
	assert.Equal(t, 2*time.Hour, cfg.Payments.StaleAfter)
	assert.Equal(t, "sk_test_abc", cfg.Gateway.SecretKey)
}

func TestGetEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	t.Setenv("TEST_INT64", "1.5")
	t.Setenv("TEST_BOOL", "maybe")
	t.Setenv("TEST_DURATION", "soon")

	assert.Equal(t, 7, GetEnvAsInt("TEST_INT", 7))
	assert.Equal(t, int64(9), GetEnvAsInt64("TEST_INT64", 9))
	assert.False(t, GetEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, time.Minute, GetEnvAsDuration("TEST_DURATION", time.Minute))
}
