// Package summary maintains the global summary log: an append-only history
// of rolling per-session summaries where the newest entry for a session is
// the current one.
package summary

import (
	"context"
	"sync"

	"github.com/931405/mem1/pkg/jsonrepo"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/session"
)

// Entry is one appended summary revision.
type Entry struct {
	SessionID session.ID `json:"sessionId"`
	Text      string     `json:"globalSummary"`
}

// Log appends summary revisions to a JSON file and answers "what is the
// current summary" by scanning backward for the newest entry per session.
// Appends rewrite the whole file, so a single writer lock serializes them.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog creates a file-backed summary log at path.
func NewLog(path string) *Log {
	log.Debug("Initialized global summary log", "path", path)
	return &Log{path: path}
}

// Append records a new summary revision for the session. Older revisions
// are kept; Current always resolves to the newest.
func (l *Log) Append(ctx context.Context, sessionID session.ID, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := jsonrepo.Append(l.path, Entry{SessionID: sessionID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to append summary entry", "path", l.path, "error", err)
		return err
	}
	log.DebugContext(ctx, "Appended summary revision", "session_id", string(sessionID))
	return nil
}

// Current returns the newest summary for the session, or the empty string
// when the session has none.
func (l *Log) Current(ctx context.Context, sessionID session.ID) (string, error) {
	entry, found, err := jsonrepo.LoadLast(l.path, func(e Entry) bool {
		return e.SessionID == sessionID
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return entry.Text, nil
}
