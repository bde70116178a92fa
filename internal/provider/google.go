package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/set-night/mindchat/internal/config"
	"github.com/set-night/mindchat/internal/domain"
)

// Google talks to the Gemini generateContent endpoint. Effort is the thinking level.
type Google struct {
	creds Credentials
	opts  options
}

func NewGoogle(creds Credentials, opts ...Option) *Google {
	return &Google{creds: creds, opts: newOptions("https://generativelanguage.googleapis.com/v1beta", opts)}
}

type geminiPart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiThinkingConfig struct {
	ThinkingLevel   string `json:"thinkingLevel,omitempty"`
	IncludeThoughts bool   `json:"includeThoughts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	Tools             []map[string]any `json:"tools,omitempty"`
	GenerationConfig  struct {
		ThinkingConfig *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content           geminiContent `json:"content"`
		FinishReason      string        `json:"finishReason"`
		GroundingMetadata *struct {
			WebSearchQueries []string `json:"webSearchQueries"`
			GroundingChunks  []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount        int `json:"promptTokenCount"`
		CandidatesTokenCount    int `json:"candidatesTokenCount"`
		ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
		CachedContentTokenCount int `json:"cachedContentTokenCount"`
	} `json:"usageMetadata"`
}

func (g *Google) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	key, err := requireKey(g.creds, config.ProviderGoogle)
	if err != nil {
		return nil, err
	}

	var body geminiRequest
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	for _, m := range req.Conversation() {
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	body.Tools = []map[string]any{{"urlContext": struct{}{}}}
	if req.Search {
		body.Tools = append(body.Tools, map[string]any{"googleSearch": struct{}{}})
	}
	if req.Effort != "" {
		body.GenerationConfig.ThinkingConfig = &geminiThinkingConfig{
			ThinkingLevel:   req.Effort,
			IncludeThoughts: req.Reasoning,
		}
	}

	var resp geminiResponse
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.opts.baseURL, url.PathEscape(req.Model.Key))
	headers := map[string]string{"x-goog-api-key": key}
	if err := doJSON(ctx, g.opts.httpClient, "Gemini", http.MethodPost, endpoint, headers, body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, errors.New("gemini returned no candidates")
	}
	cand := resp.Candidates[0]

	var content, reasoning []string
	for _, p := range cand.Content.Parts {
		if p.Text == "" {
			continue
		}
		if p.Thought {
			reasoning = append(reasoning, p.Text)
		} else {
			content = append(content, p.Text)
		}
	}

	text := strings.Join(content, "\n\n")
	searches := 0
	if gm := cand.GroundingMetadata; gm != nil {
		var sources []string
		for _, chunk := range gm.GroundingChunks {
			if chunk.Web != nil {
				sources = append(sources, fmt.Sprintf("- [%s](%s)", chunk.Web.Title, chunk.Web.URI))
			}
		}
		if len(sources) > 0 {
			text += "\n\n### Sources\n\n" + strings.Join(sources, "\n")
		}
		if len(gm.WebSearchQueries) > 0 {
			searches = 1
		}
	}

	u := resp.UsageMetadata
	return &Response{
		Content:    text,
		Reasoning:  strings.Join(reasoning, "\n\n"),
		Tokens:     tokenCounts(u.PromptTokenCount, u.CandidatesTokenCount+u.ThoughtsTokenCount, u.CachedContentTokenCount),
		StopReason: stopReasonOr(cand.FinishReason, fallbackStopReason),
		Searches:   searches,
	}, nil
}
