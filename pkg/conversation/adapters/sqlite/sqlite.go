// Package sqlite persists the conversation log in a SQLite database. The
// autoincrement rowid preserves ingestion order, which is the only ordering
// signal a turn carries.
package sqlite

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/931405/mem1/pkg/conversation"
	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/session"
)

// Log implements conversation.Log using a SQLite database.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite-backed conversation log at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "open sqlite database %s failed: %v", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS conversation_turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			ai_response TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversation_turns_session ON conversation_turns(session_id);
	`)
	if err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.ErrStorage, "create conversation_turns table failed: %v", err)
	}

	log.Debug("Initialized SQLite conversation log", "path", path)
	return &Log{db: db}, nil
}

// NewLog wraps an existing database connection. The caller owns the schema.
func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Append implements conversation.Log.
func (l *Log) Append(ctx context.Context, turn conversation.MessagePair) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (session_id, user_message, ai_response, timestamp)
		 VALUES (?, ?, ?, ?)`,
		string(turn.SessionID), turn.UserMessage, turn.AIResponse, turn.Timestamp,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "append conversation turn failed: %v", err)
	}
	return nil
}

// LoadRecent implements conversation.Log.
func (l *Log) LoadRecent(ctx context.Context, sessionID session.ID, n int) ([]conversation.MessagePair, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, user_message, ai_response, timestamp
		 FROM conversation_turns
		 WHERE session_id = ?
		 ORDER BY seq DESC
		 LIMIT ?`,
		string(sessionID), n,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "load recent turns failed: %v", err)
	}
	defer rows.Close()

	var turns []conversation.MessagePair
	for rows.Next() {
		var turn conversation.MessagePair
		var sid string
		if err := rows.Scan(&sid, &turn.UserMessage, &turn.AIResponse, &turn.Timestamp); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "scan conversation turn failed: %v", err)
		}
		turn.SessionID = session.ID(sid)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "iterate conversation turns failed: %v", err)
	}

	// The query returns newest-first; callers expect oldest-first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
