package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetAllSettings returns a map of the non-secret settings currently loaded in memory.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_version":           Global.App.Version,
		"app_debug":             Global.App.Debug,
		"valkey_enabled":        Global.Database.ValkeyEnabled,
		"ai_provider":           Global.AI.Provider,
		"ai_model":              Global.AI.AIModel(),
		"session_ttl":           Global.Conversation.SessionTTL.String(),
		"session_stale_after":   Global.Conversation.StaleAfter.String(),
		"rate_limit_max":        Global.Conversation.RateLimitMax,
		"rate_limit_window":     Global.Conversation.RateLimitWindow.String(),
		"lock_max_wait":         Global.Conversation.LockMaxWait.String(),
		"flow_enabled":          Global.Meta.FlowID != "",
		"storage_max_image":     Global.Storage.MaxImageBytes,
		"storage_max_document":  Global.Storage.MaxDocumentBytes,
		"message_worker_pool":   Global.WorkerPool.Size,
		"message_worker_queue":  Global.WorkerPool.QueueSize,
		"ai_processing_timeout": Global.Conversation.AIProcessingTimeout.String(),
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "24h") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
