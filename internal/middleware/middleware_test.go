package middleware

import (
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
)

func TestLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow(1) || !l.Allow(1) {
		t.Fatal("first two events rejected")
	}
	if l.Allow(1) {
		t.Error("third event within the window admitted")
	}
	if !l.Allow(2) {
		t.Error("limit leaked across chats")
	}

	now = now.Add(61 * time.Second)
	if !l.Allow(1) {
		t.Error("event after the window rejected")
	}
}

func TestLimiter_ForgetsIdleChats(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for id := int64(1); id <= 3; id++ {
		l.Allow(id)
	}
	if len(l.hits) != 3 {
		t.Fatalf("got %d tracked chats, want 3", len(l.hits))
	}

	now = now.Add(2 * time.Minute)
	l.Allow(4)
	if len(l.hits) != 1 {
		t.Errorf("got %d tracked chats after the window, want 1", len(l.hits))
	}
	if _, ok := l.hits[4]; !ok {
		t.Error("active chat dropped")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		update   *models.Update
		wantChat int64
		wantUser int64
		wantType string
	}{
		{
			name:     "message",
			update:   &models.Update{Message: &models.Message{Chat: models.Chat{ID: 5}, From: &models.User{ID: 9}}},
			wantChat: 5,
			wantUser: 9,
			wantType: "message",
		},
		{
			name: "callback",
			update: &models.Update{CallbackQuery: &models.CallbackQuery{
				From:    models.User{ID: 9},
				Message: models.MaybeInaccessibleMessage{Message: &models.Message{Chat: models.Chat{ID: 5}}},
			}},
			wantChat: 5,
			wantUser: 9,
			wantType: "callback_query",
		},
		{
			name:     "other",
			update:   &models.Update{},
			wantType: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatID, userID, typ := describe(tt.update)
			if chatID != tt.wantChat || userID != tt.wantUser || typ != tt.wantType {
				t.Errorf("got (%d, %d, %q), want (%d, %d, %q)", chatID, userID, typ, tt.wantChat, tt.wantUser, tt.wantType)
			}
		})
	}
}
