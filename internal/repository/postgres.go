package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/mindchat/internal/domain"
)

// PostgresGateway stores sessions in chat_sessions with the message log as JSONB.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

func NewPostgresGateway(pool *pgxpool.Pool) *PostgresGateway {
	return &PostgresGateway{pool: pool}
}

func (g *PostgresGateway) CreateSession(ctx context.Context, s *domain.Session) (int64, error) {
	msgs, err := encodeMessages(s.Messages)
	if err != nil {
		return 0, err
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err = g.pool.QueryRow(ctx,
		`INSERT INTO chat_sessions (owner_id, created_at, system_prompt, messages)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		s.OwnerID, createdAt, s.SystemPrompt, msgs,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (g *PostgresGateway) UpdateSession(ctx context.Context, id int64, s *domain.Session) error {
	msgs, err := encodeMessages(s.Messages)
	if err != nil {
		return err
	}
	tag, err := g.pool.Exec(ctx,
		`UPDATE chat_sessions SET system_prompt = $2, messages = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, s.SystemPrompt, msgs)
	if err != nil {
		return fmt.Errorf("update session %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update session %d: %w", id, domain.ErrSessionNotFound)
	}
	return nil
}

func (g *PostgresGateway) DeleteSession(ctx context.Context, id int64) error {
	tag, err := g.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete session %d: %w", id, domain.ErrSessionNotFound)
	}
	return nil
}

func (g *PostgresGateway) ListSessions(ctx context.Context, ownerID int64) ([]*domain.Session, error) {
	rows, err := g.pool.Query(ctx,
		`SELECT id, owner_id, created_at, system_prompt, messages
		 FROM chat_sessions WHERE owner_id = $1
		 ORDER BY created_at DESC, id DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Session
	for rows.Next() {
		var s domain.Session
		var raw []byte
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.CreatedAt, &s.SystemPrompt, &raw); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if s.Messages, err = decodeMessages(raw); err != nil {
			return nil, fmt.Errorf("session %d: %w", s.ID, err)
		}
		result = append(result, &s)
	}
	return result, rows.Err()
}
