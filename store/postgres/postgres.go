// Package postgres implements scout.SessionStore using PostgreSQL.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool; Close here is a no-op
// so one pool can back several components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/scout"
)

// Store implements scout.SessionStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ scout.SessionStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT NOT NULL PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			session_id   TEXT   NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			role         TEXT   NOT NULL,
			content      TEXT   NOT NULL,
			tool_calls   TEXT,
			tool_call_id TEXT,
			created_at   TEXT   NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_messages_session
			ON messages(session_id, id)`,
	}
	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Close is a no-op: the pool is owned by the caller.
func (s *Store) Close() error { return nil }

func (s *Store) CreateSession(ctx context.Context) (scout.SessionSummary, error) {
	id := scout.NewID()
	now := scout.NowISO()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		id, "", now, now)
	if err != nil {
		return scout.SessionSummary{}, fmt.Errorf("create session: %w", err)
	}
	return scout.SessionSummary{ID: id, Title: "", CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]scout.SessionSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []scout.SessionSummary{}
	for rows.Next() {
		var sum scout.SessionSummary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*scout.SessionDetail, error) {
	var detail scout.SessionDetail
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = $1`, sessionID).
		Scan(&detail.ID, &detail.Title, &detail.CreatedAt, &detail.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	events, err := s.GetMessageEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail.Messages = events
	return &detail, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) UpdateSessionTitle(ctx context.Context, sessionID, title string) (*scout.SessionSummary, error) {
	now := scout.NowISO()
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET title = $1, updated_at = $2 WHERE id = $3`, title, now, sessionID)
	if err != nil {
		return nil, fmt.Errorf("update title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	var sum scout.SessionSummary
	err = s.pool.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = $1`, sessionID).
		Scan(&sum.ID, &sum.Title, &sum.CreatedAt, &sum.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update title: %w", err)
	}
	return &sum, nil
}

func (s *Store) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM sessions WHERE id = $1`, sessionID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session exists: %w", err)
	}
	return true, nil
}

func (s *Store) AutoTitleIfNeeded(ctx context.Context, sessionID, content string) error {
	var title string
	err := s.pool.QueryRow(ctx,
		`SELECT title FROM sessions WHERE id = $1`, sessionID).Scan(&title)
	if err == pgx.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auto title: %w", err)
	}
	if title != "" {
		return nil
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE sessions SET title = $1 WHERE id = $2`, deriveTitle(content), sessionID)
	if err != nil {
		return fmt.Errorf("auto title: %w", err)
	}
	return nil
}

// deriveTitle clips the first user message to 50 runes for use as a title.
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > 50 {
		return string(runes[:50]) + "…"
	}
	return content
}

func (s *Store) AddMessage(ctx context.Context, sessionID, role, content string, toolCalls []scout.ToolCall, toolCallID string) error {
	now := scout.NowISO()

	var tcJSON *string
	if len(toolCalls) > 0 {
		raw, err := json.Marshal(toolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		str := string(raw)
		tcJSON = &str
	}
	var tcID *string
	if toolCallID != "" {
		tcID = &toolCallID
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (session_id, role, content, tool_calls, tool_call_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, role, content, tcJSON, tcID, now)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE sessions SET updated_at = $1 WHERE id = $2`, now, sessionID)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]scout.ChatMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, tool_calls, tool_call_id
		 FROM messages WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var out []scout.ChatMessage
	for rows.Next() {
		var (
			msg    scout.ChatMessage
			tcJSON *string
			tcID   *string
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &tcJSON, &tcID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.ToolCalls = parseToolCalls(tcJSON)
		if tcID != nil {
			msg.ToolCallID = *tcID
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *Store) GetMessageEvents(ctx context.Context, sessionID string) ([]scout.MessageEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, created_at, tool_calls, tool_call_id
		 FROM messages WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get message events: %w", err)
	}
	defer rows.Close()

	out := []scout.MessageEvent{}
	for rows.Next() {
		var (
			ev     scout.MessageEvent
			tcJSON *string
			tcID   *string
		)
		if err := rows.Scan(&ev.Role, &ev.Content, &ev.CreatedAt, &tcJSON, &tcID); err != nil {
			return nil, fmt.Errorf("scan message event: %w", err)
		}
		ev.ToolCalls = parseToolCalls(tcJSON)
		if tcID != nil {
			ev.ToolCallID = *tcID
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// parseToolCalls decodes a JSON tool_calls column. Malformed or empty
// values come back as nil rather than an error.
func parseToolCalls(raw *string) []scout.ToolCall {
	if raw == nil || *raw == "" {
		return nil
	}
	var tcs []scout.ToolCall
	if err := json.Unmarshal([]byte(*raw), &tcs); err != nil {
		return nil
	}
	return tcs
}
