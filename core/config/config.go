package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App          AppConfig
	Paths        PathsConfig
	Database     DatabaseConfig
	Meta         MetaConfig
	AI           AIConfig
	Conversation ConversationConfig
	Storage      StorageConfig
	WorkerPool   WorkerPoolConfig
}

type AppConfig struct {
	Version     string
	Port        string
	Debug       bool
	Environment string
	BasePath    string
	ServerID    string
}

type PathsConfig struct {
	BaseDir  string
	Statics  string
	Storages string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

// MetaConfig configures the WhatsApp Cloud API.
type MetaConfig struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	GraphBaseURL  string
	VerifyToken   string
	FlowID        string
	FlowCTA       string
	HTTPTimeout   time.Duration
}

type AIConfig struct {
	Provider          string // openai | gemini
	OpenAIKey         string
	GeminiKey         string
	ConversationModel string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
}

// ConversationConfig tunes the intake dialogue.
type ConversationConfig struct {
	SessionTTL          time.Duration
	StaleAfter          time.Duration
	RateLimitMax        int
	RateLimitWindow     time.Duration
	LockMaxWait         time.Duration
	LockTTL             time.Duration
	DedupeTTL           time.Duration
	AIProcessingTimeout time.Duration
	OfficeCode          string
}

type StorageConfig struct {
	Dir              string
	PublicURL        string
	MaxImageBytes    int64
	MaxDocumentBytes int64
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	appCfg := AppConfig{
		Version:     "v1.3.0",
		Port:        getEnv("APP_PORT", "3000"),
		Debug:       getEnvBool("APP_DEBUG", false),
		Environment: getEnv("APP_ENV", "development"),
		BasePath:    strings.TrimSuffix(getEnv("APP_BASE_PATH", ""), "/"),
		ServerID:    getEnv("SERVER_ID", ""),
	}

	pathsCfg := PathsConfig{
		BaseDir:  baseDir,
		Statics:  getEnv("PATH_STATICS", "statics"),
		Storages: baseDir,
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "grievances.db")),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "igrs:"),
	}

	metaCfg := MetaConfig{
		AccessToken:   getEnv("META_ACCESS_TOKEN", ""),
		PhoneNumberID: getEnv("META_PHONE_NUMBER_ID", ""),
		APIVersion:    getEnv("META_API_VERSION", "v21.0"),
		GraphBaseURL:  getEnv("META_GRAPH_BASE_URL", "https://graph.facebook.com"),
		VerifyToken:   getEnv("META_VERIFY_TOKEN", ""),
		FlowID:        getEnv("META_FLOW_ID", ""),
		FlowCTA:       getEnv("META_FLOW_CTA", "Open form"),
		HTTPTimeout:   getEnvDuration("META_HTTP_TIMEOUT", 15*time.Second),
	}

	aiCfg := AIConfig{
		Provider:          strings.ToLower(getEnv("AI_PROVIDER", "openai")),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		GeminiKey:         getEnv("GEMINI_API_KEY", ""),
		ConversationModel: getEnv("AI_CONVERSATION_MODEL", ""),
		MaxTokens:         getEnvInt("AI_MAX_TOKENS", 1024),
		Temperature:       getEnvFloat("AI_TEMPERATURE", 0.1),
		Timeout:           getEnvDuration("AI_TIMEOUT", 60*time.Second),
	}

	convCfg := ConversationConfig{
		SessionTTL:          getEnvDuration("SESSION_TTL", 48*time.Hour),
		StaleAfter:          getEnvDuration("SESSION_STALE_AFTER", 24*time.Hour),
		RateLimitMax:        getEnvInt("RATE_LIMIT_MAX", 15),
		RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		LockMaxWait:         getEnvDuration("LOCK_MAX_WAIT", 45*time.Second),
		LockTTL:             getEnvDuration("LOCK_TTL", 60*time.Second),
		DedupeTTL:           getEnvDuration("DEDUPE_TTL", 5*time.Minute),
		AIProcessingTimeout: getEnvDuration("AI_PROCESSING_TIMEOUT", 5*time.Minute),
		OfficeCode:          strings.ToUpper(getEnv("GRIEVANCE_OFFICE_CODE", "MLA")),
	}

	storageCfg := StorageConfig{
		Dir:              getEnv("STORAGE_DIR", filepath.Join(pathsCfg.Statics, "attachments")),
		PublicURL:        strings.TrimSuffix(getEnv("STORAGE_PUBLIC_URL", ""), "/"),
		MaxImageBytes:    getEnvInt64("STORAGE_MAX_IMAGE_BYTES", 5*1024*1024),
		MaxDocumentBytes: getEnvInt64("STORAGE_MAX_DOCUMENT_BYTES", 10*1024*1024),
	}

	cfg := &Config{
		App:          appCfg,
		Paths:        pathsCfg,
		Database:     dbCfg,
		Meta:         metaCfg,
		AI:           aiCfg,
		Conversation: convCfg,
		Storage:      storageCfg,
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("MESSAGE_WORKER_POOL_SIZE", 20),
			QueueSize: getEnvInt("MESSAGE_WORKER_QUEUE_SIZE", 1000),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	Global = cfg
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AI.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported AI_PROVIDER %q (expected openai or gemini)", c.AI.Provider)
	}
	if c.Conversation.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	if c.Conversation.StaleAfter >= c.Conversation.SessionTTL {
		return fmt.Errorf("SESSION_STALE_AFTER (%s) must be shorter than SESSION_TTL (%s)", c.Conversation.StaleAfter, c.Conversation.SessionTTL)
	}
	return nil
}

// AIModel returns the configured conversation model or the provider default.
func (c AIConfig) AIModel() string {
	if c.ConversationModel != "" {
		return c.ConversationModel
	}
	if c.Provider == "gemini" {
		return "gemini-2.5-flash"
	}
	return "gpt-4o-mini"
}
