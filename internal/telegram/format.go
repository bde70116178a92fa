package telegram

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/set-night/mindchat/internal/domain"
	"github.com/shopspring/decimal"
)

// ReplyOptions control the footer and reasoning block of a rendered reply.
type ReplyOptions struct {
	ShowCost      bool
	ShowReasoning bool
}

// FormatTime renders a duration as "1.25s" below a minute and "2m5s" above.
func FormatTime(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		s := decimal.NewFromInt(ms).Div(decimal.NewFromInt(1000)).Round(2)
		return s.String() + "s"
	}
	minutes := int64(d / time.Minute)
	seconds := int64((d % time.Minute) / time.Second)
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// FormatMoney renders a USD amount with at most four decimals.
func FormatMoney(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "$0"
	}
	return "$" + decimal.NewFromFloat(amount).Round(4).String()
}

// FormatTokens renders "input (cache hits) → output".
func FormatTokens(t domain.TokenCounts) string {
	if t.InputCacheHit > 0 {
		return fmt.Sprintf("%d (%d) → %d", t.Input, t.InputCacheHit, t.Output)
	}
	return fmt.Sprintf("%d → %d", t.Input, t.Output)
}

// FormatReply renders an assistant message for the chat.
func FormatReply(m domain.Message, opts ReplyOptions) string {
	var sb strings.Builder

	switch m.StopReason {
	case domain.StopReasonStopped:
		sb.WriteString("⏹ ")
	case domain.StopReasonInterrupted:
		sb.WriteString("⚠️ ")
	case domain.StopReasonError:
		sb.WriteString("❌ ")
	}

	if opts.ShowReasoning && m.Reasoning != "" {
		sb.WriteString("💭 _Reasoning_\n```\n")
		sb.WriteString(strings.ReplaceAll(strings.TrimSpace(m.Reasoning), "```", "'''"))
		sb.WriteString("\n```\n\n")
	}

	sb.WriteString(m.Content)

	if footer := replyFooter(m, opts); footer != "" {
		sb.WriteString("\n\n")
		sb.WriteString(footer)
	}
	return sb.String()
}

func replyFooter(m domain.Message, opts ReplyOptions) string {
	if m.IsTerminal() {
		return ""
	}

	parts := []string{"🤖 " + m.Model}
	if m.SearchUsed {
		parts = append(parts, "🔍")
	}
	if opts.ShowCost {
		parts = append(parts, "💰 "+FormatMoney(m.Cost), "📊 "+FormatTokens(m.Tokens))
	}
	if m.TimeMs > 0 {
		parts = append(parts, "⏱ "+FormatTime(m.TimeMs))
	}
	if m.StopReason != "" && !isNormalStop(m.StopReason) {
		parts = append(parts, "stop: "+m.StopReason)
	}
	return "_" + strings.Join(parts, " | ") + "_"
}

// isNormalStop reports whether reason is an ordinary completion status.
func isNormalStop(reason string) bool {
	switch strings.ToLower(reason) {
	case "completed", "end_turn", "stop", "stop_sequence", "unknown":
		return true
	}
	return false
}
