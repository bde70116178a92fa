package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/set-night/mindchat/internal/domain"
	"github.com/set-night/mindchat/internal/repository"
)

func openTestGateway(t *testing.T) *repository.SQLiteGateway {
	t.Helper()
	g, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestSQLiteGateway_RoundTrip(t *testing.T) {
	ctx := context.Background()
	g := openTestGateway(t)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &domain.Session{
		OwnerID:      7,
		CreatedAt:    created,
		SystemPrompt: "be brief",
		Messages: []domain.Message{
			domain.NewUserMessage("hi"),
			{
				Role:       domain.RoleAssistant,
				Model:      "GPT-5.1",
				Content:    "hello",
				Reasoning:  "greeting",
				SearchUsed: true,
				Tokens:     domain.TokenCounts{Input: 10, Output: 2, InputCacheHit: 4},
				StopReason: "completed",
				Cost:       0.0001,
				TimeMs:     1500,
			},
		},
	}

	id, err := g.CreateSession(ctx, s)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if id == 0 {
		t.Fatal("CreateSession returned id 0")
	}

	list, err := g.ListSessions(ctx, 7)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d sessions, want 1", len(list))
	}

	got := list[0]
	if got.ID != id || got.OwnerID != 7 || got.SystemPrompt != "be brief" {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("got created %v, want %v", got.CreatedAt, created)
	}
	if len(got.Messages) != 2 || got.Messages[1] != s.Messages[1] {
		t.Errorf("got messages %+v", got.Messages)
	}
}

func TestSQLiteGateway_Update(t *testing.T) {
	ctx := context.Background()
	g := openTestGateway(t)

	s := &domain.Session{OwnerID: 1}
	id, err := g.CreateSession(ctx, s)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	s.Messages = append(s.Messages, domain.NewUserMessage("question"))
	if err := g.UpdateSession(ctx, id, s); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	list, err := g.ListSessions(ctx, 1)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list[0].Messages) != 1 || list[0].Messages[0].Content != "question" {
		t.Errorf("got messages %+v", list[0].Messages)
	}
}

func TestSQLiteGateway_MissingRow(t *testing.T) {
	ctx := context.Background()
	g := openTestGateway(t)

	if err := g.UpdateSession(ctx, 42, &domain.Session{}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("update: got %v, want ErrSessionNotFound", err)
	}
	if err := g.DeleteSession(ctx, 42); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("delete: got %v, want ErrSessionNotFound", err)
	}
}

func TestSQLiteGateway_ListOrderAndScope(t *testing.T) {
	ctx := context.Background()
	g := openTestGateway(t)

	base := time.Now()
	var ids []int64
	for i := range 3 {
		id, err := g.CreateSession(ctx, &domain.Session{OwnerID: 1, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		ids = append(ids, id)
	}
	if _, err := g.CreateSession(ctx, &domain.Session{OwnerID: 2}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	list, err := g.ListSessions(ctx, 1)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d sessions, want 3", len(list))
	}
	for i, s := range list {
		if want := ids[len(ids)-1-i]; s.ID != want {
			t.Errorf("position %d: got id %d, want %d", i, s.ID, want)
		}
	}

	if err := g.DeleteSession(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	list, _ = g.ListSessions(ctx, 1)
	if len(list) != 2 {
		t.Errorf("got %d sessions after delete, want 2", len(list))
	}
}
