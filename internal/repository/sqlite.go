package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/set-night/mindchat/internal/domain"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id      INTEGER NOT NULL,
	created_at    INTEGER NOT NULL,
	system_prompt TEXT    NOT NULL DEFAULT '',
	messages      TEXT    NOT NULL DEFAULT '[]',
	updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_owner_created
	ON chat_sessions (owner_id, created_at DESC, id DESC);
`

// SQLiteGateway is the single-file store for small deployments.
// Timestamps are unix nanoseconds.
type SQLiteGateway struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: writes are serialized and :memory: databases stay shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		sqliteSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &SQLiteGateway{db: db}, nil
}

func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

func (g *SQLiteGateway) CreateSession(ctx context.Context, s *domain.Session) (int64, error) {
	msgs, err := encodeMessages(s.Messages)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	res, err := g.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (owner_id, created_at, system_prompt, messages, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.OwnerID, createdAt.UnixNano(), s.SystemPrompt, string(msgs), now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (g *SQLiteGateway) UpdateSession(ctx context.Context, id int64, s *domain.Session) error {
	msgs, err := encodeMessages(s.Messages)
	if err != nil {
		return err
	}
	res, err := g.db.ExecContext(ctx,
		`UPDATE chat_sessions SET system_prompt = ?, messages = ?, updated_at = ? WHERE id = ?`,
		s.SystemPrompt, string(msgs), time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("update session %d: %w", id, err)
	}
	return requireRow(res, "update", id)
}

func (g *SQLiteGateway) DeleteSession(ctx context.Context, id int64) error {
	res, err := g.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	return requireRow(res, "delete", id)
}

func (g *SQLiteGateway) ListSessions(ctx context.Context, ownerID int64) ([]*domain.Session, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT id, owner_id, created_at, system_prompt, messages
		 FROM chat_sessions WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Session
	for rows.Next() {
		var s domain.Session
		var createdAt int64
		var raw string
		if err := rows.Scan(&s.ID, &s.OwnerID, &createdAt, &s.SystemPrompt, &raw); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.CreatedAt = time.Unix(0, createdAt)
		if s.Messages, err = decodeMessages([]byte(raw)); err != nil {
			return nil, fmt.Errorf("session %d: %w", s.ID, err)
		}
		result = append(result, &s)
	}
	return result, rows.Err()
}

func requireRow(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s session %d: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s session %d: %w", op, id, domain.ErrSessionNotFound)
	}
	return nil
}
