package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, 15, cfg.Conversation.RateLimitMax)
	assert.Equal(t, 60*time.Second, cfg.Conversation.RateLimitWindow)
	assert.Equal(t, 45*time.Second, cfg.Conversation.LockMaxWait)
	assert.Equal(t, 5*time.Minute, cfg.Conversation.DedupeTTL)
	assert.Equal(t, 24*time.Hour, cfg.Conversation.StaleAfter)
	assert.Equal(t, "MLA", cfg.Conversation.OfficeCode)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.AIModel())
	assert.Same(t, cfg, Global)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "3")
	t.Setenv("RATE_LIMIT_WINDOW", "10s")
	t.Setenv("LOCK_MAX_WAIT", "5")
	t.Setenv("AI_PROVIDER", "Gemini")
	t.Setenv("VALKEY_ENABLED", "yes")
	t.Setenv("APP_BASE_PATH", "/igrs/")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Conversation.RateLimitMax)
	assert.Equal(t, 10*time.Second, cfg.Conversation.RateLimitWindow)
	assert.Equal(t, 5*time.Second, cfg.Conversation.LockMaxWait)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.AIModel())
	assert.True(t, cfg.Database.ValkeyEnabled)
	assert.Equal(t, "/igrs", cfg.App.BasePath)
}

func TestLoadConfig_RejectsUnknownProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "claude")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "AI_PROVIDER")
}

func TestLoadConfig_StaleMustBeShorterThanTTL(t *testing.T) {
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("SESSION_STALE_AFTER", "2h")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "SESSION_STALE_AFTER")
}
