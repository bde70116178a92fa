package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/set-night/mindchat/internal/config"
)

// OpenAI talks to the Responses API.
type OpenAI struct {
	creds Credentials
	opts  options
}

func NewOpenAI(creds Credentials, opts ...Option) *OpenAI {
	return &OpenAI{creds: creds, opts: newOptions("https://api.openai.com/v1", opts)}
}

type openAIInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAITool struct {
	Type string `json:"type"`
}

type openAIReasoning struct {
	Effort  string `json:"effort,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type openAIRequest struct {
	Model        string           `json:"model"`
	Instructions string           `json:"instructions,omitempty"`
	Input        []openAIInput    `json:"input"`
	Tools        []openAITool     `json:"tools,omitempty"`
	Reasoning    *openAIReasoning `json:"reasoning,omitempty"`
}

type openAIResponse struct {
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Summary []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"summary"`
	} `json:"output"`
	Usage struct {
		InputTokens        int `json:"input_tokens"`
		OutputTokens       int `json:"output_tokens"`
		InputTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"input_tokens_details"`
	} `json:"usage"`
}

func (a *OpenAI) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	key, err := requireKey(a.creds, config.ProviderOpenAI)
	if err != nil {
		return nil, err
	}

	body := openAIRequest{
		Model:        req.Model.Key,
		Instructions: req.SystemPrompt,
	}
	for _, m := range req.Conversation() {
		body.Input = append(body.Input, openAIInput{Role: string(m.Role), Content: m.Content})
	}
	if req.Search {
		body.Tools = []openAITool{{Type: "web_search_preview"}}
	}
	if req.Effort != "" {
		body.Reasoning = &openAIReasoning{Effort: req.Effort}
		if req.Reasoning {
			body.Reasoning.Summary = "auto"
		}
	}

	var resp openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + key}
	if err := doJSON(ctx, a.opts.httpClient, "OpenAI", http.MethodPost, a.opts.baseURL+"/responses", headers, body, &resp); err != nil {
		return nil, err
	}

	var content, reasoning []string
	searches := 0
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				if c.Type == "output_text" {
					content = append(content, c.Text)
				}
			}
		case "reasoning":
			for _, s := range item.Summary {
				reasoning = append(reasoning, s.Text)
			}
		case "web_search_call":
			searches++
		}
	}

	return &Response{
		Content:   strings.Join(content, ""),
		Reasoning: strings.Join(reasoning, "\n\n"),
		Tokens: tokenCounts(
			resp.Usage.InputTokens,
			resp.Usage.OutputTokens,
			resp.Usage.InputTokensDetails.CachedTokens,
		),
		StopReason: stopReasonOr(resp.Status, openAIStopReason),
		Searches:   searches,
	}, nil
}
