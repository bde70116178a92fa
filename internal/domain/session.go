package domain

import (
	"slices"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Stop reasons written by the coordinator. Any other value is a provider's
// normal completion status.
const (
	StopReasonStopped     = "stopped"
	StopReasonInterrupted = "interrupted"
	StopReasonError       = "error"
)

type TokenCounts struct {
	Input         int `json:"input"`
	Output        int `json:"output"`
	InputCacheHit int `json:"input_cache_hit,omitempty"`
}

// Message is either a user turn or an assistant turn, discriminated by Role.
// Assistant-only fields are zero on user messages.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	Model      string      `json:"model,omitempty"`
	Reasoning  string      `json:"reasoning,omitempty"`
	SearchUsed bool        `json:"search,omitempty"`
	Tokens     TokenCounts `json:"tokens"`
	StopReason string      `json:"stop_reason,omitempty"`
	Cost       float64     `json:"cost"`
	TimeMs     int64       `json:"timeMs"`
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// IsTerminal reports whether the message ended abnormally.
func (m *Message) IsTerminal() bool {
	if m.Role != RoleAssistant {
		return false
	}
	switch m.StopReason {
	case StopReasonStopped, StopReasonInterrupted, StopReasonError:
		return true
	}
	return false
}

type Session struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	CreatedAt    time.Time `json:"createdAt"`
	SystemPrompt string    `json:"systemPrompt"`
	Messages     []Message `json:"messages"`
}

// Blocked reports whether the last turn ended abnormally. A blocked session
// accepts no new user message until it is regenerated or forked.
func (s *Session) Blocked() bool {
	if len(s.Messages) == 0 {
		return false
	}
	return s.Messages[len(s.Messages)-1].IsTerminal()
}

func (s *Session) Dirty() bool {
	return len(s.Messages) > 0
}

// Title returns a short label built from the first user message.
func (s *Session) Title(maxLen int) string {
	for _, m := range s.Messages {
		if m.Role != RoleUser || m.Content == "" {
			continue
		}
		r := []rune(m.Content)
		if len(r) > maxLen {
			return string(r[:maxLen]) + "..."
		}
		return m.Content
	}
	return s.CreatedAt.Format("02.01 15:04")
}

// LastAssistant returns the most recent assistant message, or nil.
func (s *Session) LastAssistant() *Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return &s.Messages[i]
		}
	}
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = slices.Clone(s.Messages)
	return &c
}
