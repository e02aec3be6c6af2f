package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/bakery")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 400.0, cfg.FreePlanCredits)
	assert.Zero(t, cfg.RenewalInterval)
	assert.False(t, cfg.StorageEnabled())
	assert.False(t, cfg.UsageEventsEnabled())
}

func TestLoadRequiresStripe(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/bakery")
	t.Setenv("JWT_SECRET", "s")
	// Setenv restores the variable after the test; unset it for the run.
	t.Setenv("STRIPE_SECRET_KEY", "")
	require.NoError(t, os.Unsetenv("STRIPE_SECRET_KEY"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadToolNeedsOnlyDatabase(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/bakery")
	t.Setenv("STRIPE_SECRET_KEY", "")

	cfg, err := LoadTool()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/bakery", cfg.DBConnectionString)
	assert.Empty(t, cfg.RedisAddr)
}

func TestOptionalIntegrations(t *testing.T) {
	cfg := &Config{S3Bucket: "media", S3AccessKey: "a", S3SecretKey: "b", GCPProjectID: "p", PubSubUsageTopic: "credit-usage"}
	assert.True(t, cfg.StorageEnabled())
	assert.True(t, cfg.UsageEventsEnabled())
}
