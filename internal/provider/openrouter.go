package provider

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/set-night/mindchat/internal/config"
	"github.com/set-night/mindchat/internal/domain"
	"github.com/shopspring/decimal"
)

// OpenRouter talks to the OpenAI-compatible chat completions endpoint and
// also lists models with their per-token prices.
type OpenRouter struct {
	creds Credentials
	opts  options
	cache *ModelsCache
}

func NewOpenRouter(creds Credentials, opts ...Option) *OpenRouter {
	return &OpenRouter{
		creds: creds,
		opts:  newOptions("https://openrouter.ai/api/v1", opts),
		cache: NewModelsCache(config.ModelCacheDuration),
	}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReasoning struct {
	Effort  string `json:"effort,omitempty"`
	Exclude bool   `json:"exclude,omitempty"`
}

type ChatRequest struct {
	Model     string         `json:"model"`
	Messages  []ChatMessage  `json:"messages"`
	Reasoning *chatReasoning `json:"reasoning,omitempty"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

var thinkTag = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

func (s *OpenRouter) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	key, err := requireKey(s.creds, config.ProviderOpenRouter)
	if err != nil {
		return nil, err
	}

	model := req.Model.Key
	if req.Search {
		model += ":online"
	}

	chatReq := ChatRequest{Model: model}
	if req.SystemPrompt != "" {
		chatReq.Messages = append(chatReq.Messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Conversation() {
		chatReq.Messages = append(chatReq.Messages, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	if req.Effort != "" {
		chatReq.Reasoning = &chatReasoning{Effort: req.Effort, Exclude: !req.Reasoning}
	}

	var chatResp ChatResponse
	headers := map[string]string{"Authorization": "Bearer " + key}
	if err := doJSON(ctx, s.opts.httpClient, "OpenRouter", http.MethodPost, s.opts.baseURL+"/chat/completions", headers, chatReq, &chatResp); err != nil {
		return nil, err
	}

	if len(chatResp.Choices) == 0 {
		return nil, errors.New("openrouter returned no choices")
	}

	choice := chatResp.Choices[0]
	out := &Response{
		Tokens: tokenCounts(
			chatResp.Usage.PromptTokens,
			chatResp.Usage.CompletionTokens,
			chatResp.Usage.PromptTokensDetails.CachedTokens,
		),
		StopReason: stopReasonOr(choice.FinishReason, fallbackStopReason),
	}
	if req.Search {
		out.Searches = 1
	}
	out.Content, out.Reasoning = splitThinking(choice.Message.Content, choice.Message.Reasoning)
	return out, nil
}

// splitThinking moves inline <think> blocks out of content when the backend
// did not report reasoning separately.
func splitThinking(content, reasoning string) (string, string) {
	matches := thinkTag.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return content, reasoning
	}
	content = strings.TrimSpace(thinkTag.ReplaceAllString(content, ""))
	if reasoning != "" {
		return content, reasoning
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, strings.TrimSpace(m[1]))
	}
	return content, strings.Join(parts, "\n\n")
}

// ListModels returns OpenRouter's model list with prices per 1M tokens.
func (s *OpenRouter) ListModels(ctx context.Context) ([]domain.Model, error) {
	if cached := s.cache.Get(); cached != nil {
		return cached, nil
	}

	key, err := requireKey(s.creds, config.ProviderOpenRouter)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Pricing struct {
				Prompt         string `json:"prompt"`
				Completion     string `json:"completion"`
				InputCacheRead string `json:"input_cache_read"`
				WebSearch      string `json:"web_search"`
			} `json:"pricing"`
		} `json:"data"`
	}
	headers := map[string]string{"Authorization": "Bearer " + key}
	if err := doJSON(ctx, s.opts.httpClient, "OpenRouter", http.MethodGet, s.opts.baseURL+"/models", headers, nil, &result); err != nil {
		return nil, err
	}

	models := make([]domain.Model, 0, len(result.Data))
	for _, m := range result.Data {
		models = append(models, domain.Model{
			ID:               m.Name,
			Provider:         config.ProviderOpenRouter,
			Key:              m.ID,
			InputPrice:       perMillion(m.Pricing.Prompt),
			OutputPrice:      perMillion(m.Pricing.Completion),
			CachedInputPrice: perMillion(m.Pricing.InputCacheRead),
			SearchPrice:      perThousand(m.Pricing.WebSearch),
		})
	}

	s.cache.Set(models)
	return models, nil
}

// Prices from OpenRouter are per token (per request for search).
func perMillion(price string) float64 {
	return scalePrice(price, 1_000_000)
}

func perThousand(price string) float64 {
	return scalePrice(price, 1_000)
}

func scalePrice(price string, factor int64) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil || d.IsNegative() {
		return 0
	}
	return d.Mul(decimal.NewFromInt(factor)).InexactFloat64()
}
