package telegram_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/mindchat/internal/domain"
	"github.com/set-night/mindchat/internal/telegram"
)

type fakeClient struct {
	mu       sync.Mutex
	sent     []*bot.SendMessageParams
	actions  int
	failMD   bool
	failChat error
}

func (f *fakeClient) SendMessage(ctx context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMD && p.ParseMode != "" {
		return nil, errors.New("can't parse entities")
	}
	cp := *p
	f.sent = append(f.sent, &cp)
	return &models.Message{ID: len(f.sent)}, nil
}

func (f *fakeClient) EditMessageText(ctx context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	return &models.Message{ID: p.MessageID}, nil
}

func (f *fakeClient) SendChatAction(ctx context.Context, p *bot.SendChatActionParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failChat != nil {
		return false, f.failChat
	}
	f.actions++
	return true, nil
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{name: "short", text: "hello", maxLen: 10, want: []string{"hello"}},
		{name: "hard cut", text: "abcdefghij", maxLen: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "newline cut", text: "abcd\nefgh", maxLen: 7, want: []string{"abcd\n", "efgh"}},
		{name: "early newline ignored", text: "a\nbcdefgh", maxLen: 6, want: []string{"a\nbcde", "fgh"}},
		{name: "runes", text: "привет мир", maxLen: 6, want: []string{"привет", " мир"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := telegram.SplitMessage(tt.text, tt.maxLen)
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("part %d: got %q, want %q", i, got[i], tt.want[i])
				}
				if utf8.RuneCountInString(got[i]) > tt.maxLen {
					t.Errorf("part %d exceeds %d runes", i, tt.maxLen)
				}
			}
		})
	}
}

func TestFixMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"`code`", "`code`"},
		{"`open", "`open`"},
		{"```go\nx := 1", "```go\nx := 1\n```"},
		{"`a ```b```", "`a ````b```"},
	}
	for _, tt := range tests {
		if got := telegram.FixMarkdown(tt.in); got != tt.want {
			t.Errorf("FixMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCallbackData(t *testing.T) {
	data := telegram.CallbackData("chat_del", 42, 3)
	if data != "chat_del:42:3" {
		t.Fatalf("got %q", data)
	}

	args, ok := telegram.ParseCallback(data, "chat_del")
	if !ok || len(args) != 2 || args[0] != 42 || args[1] != 3 {
		t.Errorf("got %v, %v", args, ok)
	}

	for _, bad := range []string{"chat_sel:1", "chat_delx:1", "chat_del:x"} {
		if _, ok := telegram.ParseCallback(bad, "chat_del"); ok {
			t.Errorf("ParseCallback(%q) accepted", bad)
		}
	}
}

func TestPaginationRow(t *testing.T) {
	if row := telegram.PaginationRow(0, 1, "p"); row != nil {
		t.Errorf("single page produced %d buttons", len(row))
	}

	row := telegram.PaginationRow(1, 3, "p")
	if len(row) != 3 {
		t.Fatalf("got %d buttons, want 3", len(row))
	}
	if row[0].CallbackData != "p:0" || row[1].CallbackData != telegram.NoopData || row[2].CallbackData != "p:2" {
		t.Errorf("got %+v", row)
	}
	if row[1].Text != "2/3" {
		t.Errorf("got label %q", row[1].Text)
	}
}

func TestFormatReply(t *testing.T) {
	ok := domain.Message{
		Role:       domain.RoleAssistant,
		Model:      "GPT-5.1",
		Content:    "Hi",
		Reasoning:  "think",
		SearchUsed: true,
		Tokens:     domain.TokenCounts{Input: 1200, Output: 30, InputCacheHit: 200},
		StopReason: "completed",
		Cost:       0.00123456,
		TimeMs:     1250,
	}

	got := telegram.FormatReply(ok, telegram.ReplyOptions{ShowCost: true, ShowReasoning: true})
	for _, want := range []string{"Hi", "think", "GPT-5.1", "$0.0012", "1200 (200) → 30", "1.25s", "🔍"} {
		if !strings.Contains(got, want) {
			t.Errorf("reply %q lacks %q", got, want)
		}
	}
	if strings.Contains(got, "stop:") {
		t.Errorf("normal completion shown as stop reason: %q", got)
	}

	got = telegram.FormatReply(ok, telegram.ReplyOptions{})
	if strings.Contains(got, "$") || strings.Contains(got, "think") {
		t.Errorf("hidden parts rendered: %q", got)
	}

	stopped := domain.Message{Role: domain.RoleAssistant, Content: "Stopped by user", StopReason: domain.StopReasonStopped}
	got = telegram.FormatReply(stopped, telegram.ReplyOptions{ShowCost: true})
	if got != "⏹ Stopped by user" {
		t.Errorf("got %q", got)
	}

	truncated := ok
	truncated.StopReason = "max_tokens"
	if got := telegram.FormatReply(truncated, telegram.ReplyOptions{}); !strings.Contains(got, "stop: max_tokens") {
		t.Errorf("got %q", got)
	}
}

func TestFormatTime(t *testing.T) {
	tests := map[int64]string{
		500:    "0.5s",
		1250:   "1.25s",
		65_000: "1m5s",
	}
	for ms, want := range tests {
		if got := telegram.FormatTime(ms); got != want {
			t.Errorf("FormatTime(%d) = %q, want %q", ms, got, want)
		}
	}
}

func TestSendLongMessage_PlainTextFallback(t *testing.T) {
	c := &fakeClient{failMD: true}
	kb := telegram.InlineKeyboard(telegram.ButtonRow(telegram.InlineButton("x", "y")))

	text := strings.Repeat("a", 5000)
	if err := telegram.SendLongMessage(context.Background(), c, 7, text, kb); err != nil {
		t.Fatalf("SendLongMessage failed: %v", err)
	}
	if len(c.sent) != 2 {
		t.Fatalf("got %d messages, want 2", len(c.sent))
	}
	if c.sent[0].ReplyMarkup != nil || c.sent[1].ReplyMarkup == nil {
		t.Error("keyboard not attached to the last part only")
	}
	for _, p := range c.sent {
		if p.ParseMode != "" {
			t.Errorf("got parse mode %q, want plain text", p.ParseMode)
		}
	}
}

func TestTyping(t *testing.T) {
	ctx := context.Background()
	c := &fakeClient{}
	typing := telegram.NewTyping(c, 7)

	r1, err := typing.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	r2, err := typing.Acquire(ctx, 2)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	r1()
	r1()
	r2()

	c.mu.Lock()
	actions := c.actions
	c.mu.Unlock()
	if actions != 1 {
		t.Errorf("got %d typing actions, want 1 for overlapping holders", actions)
	}

	c.mu.Lock()
	c.failChat = errors.New("forbidden")
	c.mu.Unlock()
	if _, err := typing.Acquire(ctx, 3); err == nil {
		t.Error("Acquire succeeded while the chat action failed")
	}
}
