package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LAZYCHAT_API_URL", "https://saas.example.com/api/")
	t.Setenv("WEBHOOK_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://saas.example.com/api", cfg.LazyChatAPIURL)
	assert.Equal(t, "https://saas.example.com/api/woocommerce/webhook", cfg.WebhookURL)
	assert.Equal(t, 15, cfg.EventLogRetentionDays)
	assert.Equal(t, 15*time.Second, cfg.InteractiveTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WEBHOOK_WORKERS", "9")
	t.Setenv("BULK_TIMEOUT", "90")
	t.Setenv("TELEMETRY_TIMEOUT", "750ms")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.WebhookWorkers)
	assert.Equal(t, 90*time.Second, cfg.BulkTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.TelemetryTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvAsIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("WEBHOOK_QUEUE_SIZE", "lots")
	assert.Equal(t, 256, getEnvAsInt("WEBHOOK_QUEUE_SIZE", 256))
}
