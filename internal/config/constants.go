package config

import "time"

const (
	// Storage drivers
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"

	// Provider keys
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"

	// Per-call HTTP client ceiling. Cancellation is the normal way a call ends early.
	HTTPClientTimeout = 10 * time.Minute

	// Persistence writes detached from the dispatch context
	PersistTimeout = 15 * time.Second

	// Model cache duration
	ModelCacheDuration = 1 * time.Hour

	// Anthropic response ceiling
	AnthropicMaxTokens = 8192

	// Anthropic web search tool uses per request
	AnthropicMaxSearches = 5

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Rate limits (messages per minute per chat)
	RateLimitPerMinute = 20

	// Sessions per page
	SessionsPerPage = 5

	// Session title length in lists
	SessionTitleLen = 30
)
