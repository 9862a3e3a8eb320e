package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string

	// Mail provider
	GmailCredentialsFile string
	GmailTokenFile       string
	MaxEmails            int64

	// Calendar provider
	CalendarCredentialsFile string
	CalendarTokenFile       string
	Timezone                string

	// Messenger (Telegram Bot API)
	TelegramBotToken string
	TelegramChatID   int64
	TelegramAPIBase  string

	// Generative model
	OpenAIAPIKey     string
	LLMModel         string
	LLMBaseURL       string
	FallbackAPIKey   string
	FallbackModel    string
	FallbackBaseURL  string
	LLMTimeoutSec    int
	ClassifyMaxChars int

	// Classification
	Categories []string

	// Poll loops
	PollInterval     time.Duration
	CallbackInterval time.Duration
	MaxPollErrors    int

	// Behavior toggles
	AutoSend bool

	// Persistence
	SnapshotCacheFile string
	DraftCacheFile    string
	RedisURL          string
	HistoryDBPath     string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Mail provider
		GmailCredentialsFile: getEnv("GMAIL_CREDENTIALS_FILE", "credentials.json"),
		GmailTokenFile:       getEnv("GMAIL_TOKEN_FILE", "token.json"),
		MaxEmails:            int64(getEnvInt("MAX_EMAILS", 10)),

		// Calendar provider
		CalendarCredentialsFile: getEnv("CALENDAR_CREDENTIALS_FILE", "calendar_credentials.json"),
		CalendarTokenFile:       getEnv("CALENDAR_TOKEN_FILE", "calendar_token.json"),
		Timezone:                getEnv("TIMEZONE", "America/New_York"),

		// Messenger
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),
		TelegramAPIBase:  getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),

		// Generative model
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		LLMModel:         getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		FallbackAPIKey:   getEnv("LLM_FALLBACK_API_KEY", ""),
		FallbackModel:    getEnv("LLM_FALLBACK_MODEL", "gpt-3.5-turbo"),
		FallbackBaseURL:  getEnv("LLM_FALLBACK_BASE_URL", ""),
		LLMTimeoutSec:    getEnvInt("LLM_TIMEOUT_SEC", 60),
		ClassifyMaxChars: getEnvInt("CLASSIFY_MAX_CHARS", 200),

		// Classification
		Categories: getEnvSlice("EMAIL_CATEGORIES",
			[]string{"Important", "Newsletters", "Promotions", "Meetings", "Personal"}),

		// Poll loops
		PollInterval:     time.Duration(getEnvInt("POLL_INTERVAL_SEC", 30)) * time.Second,
		CallbackInterval: time.Duration(getEnvInt("CALLBACK_INTERVAL_SEC", 1)) * time.Second,
		MaxPollErrors:    getEnvInt("MAX_POLL_ERRORS", 5),

		// Behavior toggles
		AutoSend: getEnvBool("AUTO_SEND", false),

		// Persistence
		SnapshotCacheFile: getEnv("SNAPSHOT_CACHE_FILE", "telegram_email_cache.bin"),
		DraftCacheFile:    getEnv("DRAFT_CACHE_FILE", "telegram_responses_cache.bin"),
		RedisURL:          getEnv("REDIS_URL", ""),
		HistoryDBPath:     getEnv("HISTORY_DB_PATH", "assistant_history.db"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
