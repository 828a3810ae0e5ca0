// Package jsonfile persists the conversation log as a single JSON array
// file, rewritten in full on every append.
package jsonfile

import (
	"context"
	"sync"

	"github.com/931405/mem1/pkg/conversation"
	"github.com/931405/mem1/pkg/jsonrepo"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/session"
)

// Log implements conversation.Log on top of a flat JSON file. Appends
// rewrite the whole file, so a single writer lock serializes them.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog creates a file-backed conversation log at path. The file is created
// on first append.
func NewLog(path string) *Log {
	log.Debug("Initialized JSON file conversation log", "path", path)
	return &Log{path: path}
}

// Append implements conversation.Log.
func (l *Log) Append(ctx context.Context, turn conversation.MessagePair) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := jsonrepo.Append(l.path, turn); err != nil {
		log.ErrorContext(ctx, "Failed to append conversation turn", "path", l.path, "error", err)
		return err
	}
	return nil
}

// LoadRecent implements conversation.Log.
func (l *Log) LoadRecent(ctx context.Context, sessionID session.ID, n int) ([]conversation.MessagePair, error) {
	return jsonrepo.LoadRecent(l.path, n, func(turn conversation.MessagePair) bool {
		return turn.SessionID == sessionID
	})
}
