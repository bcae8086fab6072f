// Package sqlite implements scout.SessionStore using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nevindra/scout"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements scout.SessionStore backed by a local SQLite file.
// Tool calls are stored as JSON text in the messages table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ scout.SessionStore = (*Store)(nil)

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init enables WAL and foreign keys, then creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()

	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA foreign_keys=ON`,
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("pragma: %w", err)
		}
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT NOT NULL PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id   TEXT    NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			role         TEXT    NOT NULL,
			content      TEXT    NOT NULL,
			tool_calls   TEXT,
			tool_call_id TEXT,
			created_at   TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ix_messages_session
			ON messages(session_id, id)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	s.logger.Debug("sqlite: init done", "took", time.Since(start))
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSession(ctx context.Context) (scout.SessionSummary, error) {
	id := scout.NewID()
	now := scout.NowISO()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, "", now, now)
	if err != nil {
		return scout.SessionSummary{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.Debug("sqlite: session created", "session_id", id)
	return scout.SessionSummary{ID: id, Title: "", CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]scout.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
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
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?`, sessionID).
		Scan(&detail.ID, &detail.Title, &detail.CreatedAt, &detail.UpdatedAt)
	if err == sql.ErrNoRows {
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	s.logger.Debug("sqlite: session deleted", "session_id", sessionID, "existed", n > 0)
	return n > 0, nil
}

func (s *Store) UpdateSessionTitle(ctx context.Context, sessionID, title string) (*scout.SessionSummary, error) {
	now := scout.NowISO()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`, title, now, sessionID)
	if err != nil {
		return nil, fmt.Errorf("update title: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update title: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	var sum scout.SessionSummary
	err = s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?`, sessionID).
		Scan(&sum.ID, &sum.Title, &sum.CreatedAt, &sum.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update title: %w", err)
	}
	return &sum, nil
}

func (s *Store) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session exists: %w", err)
	}
	return true, nil
}

func (s *Store) AutoTitleIfNeeded(ctx context.Context, sessionID, content string) error {
	var title string
	err := s.db.QueryRowContext(ctx,
		`SELECT title FROM sessions WHERE id = ?`, sessionID).Scan(&title)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auto title: %w", err)
	}
	if title != "" {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ? WHERE id = ?`, deriveTitle(content), sessionID)
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

	var tcJSON sql.NullString
	if len(toolCalls) > 0 {
		raw, err := json.Marshal(toolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		tcJSON = sql.NullString{String: string(raw), Valid: true}
	}
	var tcID sql.NullString
	if toolCallID != "" {
		tcID = sql.NullString{String: toolCallID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, tool_calls, tool_call_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, role, content, tcJSON, tcID, now)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]scout.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id
		 FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var out []scout.ChatMessage
	for rows.Next() {
		var (
			msg    scout.ChatMessage
			tcJSON sql.NullString
			tcID   sql.NullString
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &tcJSON, &tcID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.ToolCalls = parseToolCalls(tcJSON)
		msg.ToolCallID = tcID.String
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *Store) GetMessageEvents(ctx context.Context, sessionID string) ([]scout.MessageEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at, tool_calls, tool_call_id
		 FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get message events: %w", err)
	}
	defer rows.Close()

	out := []scout.MessageEvent{}
	for rows.Next() {
		var (
			ev     scout.MessageEvent
			tcJSON sql.NullString
			tcID   sql.NullString
		)
		if err := rows.Scan(&ev.Role, &ev.Content, &ev.CreatedAt, &tcJSON, &tcID); err != nil {
			return nil, fmt.Errorf("scan message event: %w", err)
		}
		ev.ToolCalls = parseToolCalls(tcJSON)
		ev.ToolCallID = tcID.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

// parseToolCalls decodes a JSON tool_calls column. Malformed or empty
// values come back as nil rather than an error, so one bad row never
// poisons history replay.
func parseToolCalls(raw sql.NullString) []scout.ToolCall {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var tcs []scout.ToolCall
	if err := json.Unmarshal([]byte(raw.String), &tcs); err != nil {
		return nil
	}
	return tcs
}
