package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken string `env:"BOT_TOKEN,required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"mindchat.db"`

	// Provider credentials. Missing keys are reported per request, not at startup.
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	AnthropicKey  string `env:"ANTHROPIC_API_KEY"`
	GoogleKey     string `env:"GOOGLE_API_KEY"`
	OpenRouterKey string `env:"OPENROUTER_API_KEY"`

	// Models
	ModelsFile string `env:"MODELS_FILE"`

	// Requests. Zero disables the timeout; calls then end only on stop.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"0s"`

	// Access
	AllowedChatIDs []int64 `env:"ALLOWED_CHAT_IDS" envSeparator:","`

	// Display
	ShowCost      bool `env:"SHOW_COST" envDefault:"true"`
	ShowReasoning bool `env:"SHOW_REASONING" envDefault:"false"`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Telegram logging
	LogTelegramChatID int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int   `env:"LOG_TOPIC_ERROR"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for storage driver %q", c.StorageDriver)
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	return nil
}

// IsAllowed reports whether chatID may use the bot. An empty allow list admits everyone.
func (c *Config) IsAllowed(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}
	return slices.Contains(c.AllowedChatIDs, chatID)
}

// APIKeys returns the configured provider secrets keyed by provider name.
func (c *Config) APIKeys() map[string]string {
	return map[string]string{
		ProviderOpenAI:     c.OpenAIKey,
		ProviderAnthropic:  c.AnthropicKey,
		ProviderGoogle:     c.GoogleKey,
		ProviderOpenRouter: c.OpenRouterKey,
	}
}

func (c *Config) AllowedChatIDsString() string {
	parts := make([]string, len(c.AllowedChatIDs))
	for i, id := range c.AllowedChatIDs {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
