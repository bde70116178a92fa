package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/set-night/mindchat/internal/domain"
)

// Gateway is the durable session store. Each call applies fully or not at all.
// Update and delete of a missing row return domain.ErrSessionNotFound.
type Gateway interface {
	CreateSession(ctx context.Context, s *domain.Session) (int64, error)
	UpdateSession(ctx context.Context, id int64, s *domain.Session) error
	DeleteSession(ctx context.Context, id int64) error
	// ListSessions returns the owner's sessions, most recently created first.
	ListSessions(ctx context.Context, ownerID int64) ([]*domain.Session, error)
}

func encodeMessages(msgs []domain.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []domain.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	return data, nil
}

func decodeMessages(data []byte) ([]domain.Message, error) {
	var msgs []domain.Message
	if len(data) == 0 {
		return msgs, nil
	}
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return msgs, nil
}
