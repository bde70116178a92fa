package provider

import (
	"fmt"
	"strings"

	"github.com/set-night/mindchat/internal/config"
	"github.com/set-night/mindchat/internal/domain"
)

// Credentials looks up the secret for a provider key.
type Credentials interface {
	APIKey(provider string) (string, bool)
}

// StaticCredentials serves keys loaded once from the environment.
type StaticCredentials map[string]string

func (c StaticCredentials) APIKey(provider string) (string, bool) {
	key := strings.TrimSpace(c[provider])
	return key, key != ""
}

// Has reports whether a key is configured for provider.
func (c StaticCredentials) Has(provider string) bool {
	_, ok := c.APIKey(provider)
	return ok
}

var displayNames = map[string]string{
	config.ProviderOpenAI:     "OpenAI",
	config.ProviderAnthropic:  "Anthropic",
	config.ProviderGoogle:     "Gemini",
	config.ProviderOpenRouter: "OpenRouter",
}

func requireKey(creds Credentials, provider string) (string, error) {
	if creds != nil {
		if key, ok := creds.APIKey(provider); ok {
			return key, nil
		}
	}
	name := displayNames[provider]
	if name == "" {
		name = provider
	}
	return "", fmt.Errorf("%s %w", name, domain.ErrCredentialMissing)
}
