// Package provider adapts remote language-model backends to one request/response
// contract. Each adapter honors context cancellation by passing the context to
// the HTTP transport, so a stopped request aborts the connection itself.
package provider

import (
	"context"
	"slices"

	"github.com/set-night/mindchat/internal/domain"
)

// Adapter produces one assistant reply for a conversation.
type Adapter interface {
	CreateMessage(ctx context.Context, req Request) (*Response, error)
}

type Request struct {
	// History is the conversation before the new user turn.
	History      []domain.Message
	NewUserText  string
	SystemPrompt string
	Model        domain.Model
	Search       bool
	Reasoning    bool
	// Effort is the backend-native reasoning parameter resolved from the
	// catalog. Empty means the backend default.
	Effort string
}

type Response struct {
	Content    string
	Reasoning  string
	Tokens     domain.TokenCounts
	StopReason string
	Searches   int
}

// Conversation returns the history followed by the new user message.
func (r Request) Conversation() []domain.Message {
	msgs := slices.Clone(r.History)
	return append(msgs, domain.NewUserMessage(r.NewUserText))
}

// Stop reasons reported when a backend gives no completion signal.
const (
	fallbackStopReason = "unknown"
	openAIStopReason   = "completed"
)

func stopReasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}

// tokenCounts normalizes usage. Cache hits never exceed the input count.
func tokenCounts(input, output, cacheHit int) domain.TokenCounts {
	cacheHit = max(0, min(cacheHit, input))
	return domain.TokenCounts{Input: input, Output: output, InputCacheHit: cacheHit}
}
