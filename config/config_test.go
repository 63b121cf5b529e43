package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "MUSETALK_DIR", "MUSETALK_RESULTS_ROOT", "RENDER_TIMEOUT", "RENDER_STALE_AFTER",
		"MAX_CONCURRENT_JOBS", "REPLY_HISTORY_LIMIT", "REPLY_MAX_TOKENS", "REPLY_TEMPERATURE",
		"TRANSCRIBE_LANGUAGE",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "/app", cfg.MuseTalk.Dir)
	assert.Equal(t, filepath.Join("/app", "results"), cfg.MuseTalk.ResultsRoot)
	assert.Equal(t, 2*time.Minute, cfg.MuseTalk.Timeout)
	assert.Equal(t, time.Hour, cfg.MuseTalk.StaleAfter)
	assert.Equal(t, 0, cfg.MaxConcurrentJobs, "jobs are unbounded unless configured")
	assert.Equal(t, 10, cfg.Reply.HistoryLimit)
	assert.Equal(t, 100, cfg.Reply.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Reply.Temperature, 1e-9)
	assert.Equal(t, "fr", cfg.Language)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_URL", "https://avatar.example.com/")
	t.Setenv("MUSETALK_DIR", "/opt/musetalk")
	t.Setenv("RENDER_TIMEOUT", "45")
	t.Setenv("MAX_CONCURRENT_JOBS", "3")
	t.Setenv("DELIVERY_MODE", "GCS")
	t.Setenv("GCS_BUCKET", "renders")
	t.Setenv("RENDER_FLOAT16", "false")
	t.Setenv("STAGING_RETENTION", "6h")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://avatar.example.com", cfg.PublicURL)
	assert.Equal(t, "/opt/musetalk/results", cfg.MuseTalk.ResultsRoot)
	assert.Equal(t, 45*time.Second, cfg.MuseTalk.Timeout)
	assert.Equal(t, 3, cfg.MaxConcurrentJobs)
	assert.Equal(t, "gcs", cfg.Delivery.Mode)
	assert.Equal(t, "renders", cfg.Delivery.Bucket)
	assert.False(t, cfg.MuseTalk.Float16)
	assert.Equal(t, 6*time.Hour, cfg.Staging.Retention)
}

func TestMissingCredentialsDoNotFailLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ELEVENLABS_API_KEY", "")

	cfg := Load()
	require.Empty(t, cfg.OpenAI.APIKey)
	require.Empty(t, cfg.ElevenLabs.APIKey)
}

func TestRedisAddrFallbacks(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_URI", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	assert.Equal(t, "redis://localhost:6379/0", RedisAddr())
}
