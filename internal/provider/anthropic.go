package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/set-night/mindchat/internal/config"
)

const anthropicVersion = "2023-06-01"

// Anthropic talks to the Messages API. Effort is the thinking budget in tokens.
type Anthropic struct {
	creds Credentials
	opts  options
}

func NewAnthropic(creds Credentials, opts ...Option) *Anthropic {
	return &Anthropic{creds: creds, opts: newOptions("https://api.anthropic.com/v1", opts)}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicTool struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
	Thinking  *anthropicThinking `json:"thinking,omitempty"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicCitation struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type anthropicResponse struct {
	Content []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
		Name     string `json:"name"`
		Input    struct {
			Query string `json:"query"`
		} `json:"input"`
		Citations []anthropicCitation `json:"citations"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens          int `json:"input_tokens"`
		OutputTokens         int `json:"output_tokens"`
		CacheReadInputTokens int `json:"cache_read_input_tokens"`
		ServerToolUse        struct {
			WebSearchRequests int `json:"web_search_requests"`
		} `json:"server_tool_use"`
	} `json:"usage"`
}

func (a *Anthropic) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	key, err := requireKey(a.creds, config.ProviderAnthropic)
	if err != nil {
		return nil, err
	}

	body := anthropicRequest{
		Model:     req.Model.Key,
		System:    req.SystemPrompt,
		MaxTokens: config.AnthropicMaxTokens,
	}
	for _, m := range req.Conversation() {
		body.Messages = append(body.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	if budget, err := strconv.Atoi(req.Effort); err == nil && budget > 0 && budget < config.AnthropicMaxTokens {
		body.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: budget}
	}
	if req.Search {
		body.Tools = []anthropicTool{{
			Type:    "web_search_20250305",
			Name:    "web_search",
			MaxUses: config.AnthropicMaxSearches,
		}}
	}

	var resp anthropicResponse
	headers := map[string]string{
		"x-api-key":         key,
		"anthropic-version": anthropicVersion,
	}
	if err := doJSON(ctx, a.opts.httpClient, "Anthropic", http.MethodPost, a.opts.baseURL+"/messages", headers, body, &resp); err != nil {
		return nil, err
	}

	var content strings.Builder
	var reasoning []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
			if links := citationLinks(block.Citations); links != "" {
				fmt.Fprintf(&content, " (%s)", links)
			}
		case "server_tool_use", "tool_use":
			if block.Name == "web_search" {
				fmt.Fprintf(&content, "🔍 **Search:** %s\n\n", block.Input.Query)
			}
		case "thinking":
			reasoning = append(reasoning, block.Thinking)
		}
	}

	// input_tokens excludes cache reads; fold them back in so hits are a portion of input.
	cached := resp.Usage.CacheReadInputTokens
	return &Response{
		Content:    content.String(),
		Reasoning:  strings.Join(reasoning, "\n\n"),
		Tokens:     tokenCounts(resp.Usage.InputTokens+cached, resp.Usage.OutputTokens, cached),
		StopReason: stopReasonOr(resp.StopReason, fallbackStopReason),
		Searches:   resp.Usage.ServerToolUse.WebSearchRequests,
	}, nil
}

func citationLinks(citations []anthropicCitation) string {
	var links []string
	for _, c := range citations {
		if c.Type != "web_search_result_location" {
			continue
		}
		u, err := url.Parse(c.URL)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.TrimPrefix(u.Hostname(), "www.")
		links = append(links, fmt.Sprintf("[%s](%s)", host, c.URL))
	}
	return strings.Join(links, ", ")
}
