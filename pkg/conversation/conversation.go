package conversation

import (
	"context"

	"github.com/931405/mem1/pkg/session"
)

// MessagePair is one conversational turn: a user message and the AI response
// it produced. Pairs are immutable once created and appended in ingestion
// order; the timestamp is informational only and is not guaranteed to be
// monotonic within a session.
type MessagePair struct {
	SessionID   session.ID `json:"sessionId"`
	UserMessage string     `json:"userMessage"`
	AIResponse  string     `json:"aiResponse"`
	Timestamp   int64      `json:"timestamp"`
}

// Log is the durable, append-only record of conversation turns. It is owned
// by the turn recorder; the short-term cache only reads from it when
// hydrating a session.
type Log interface {
	// Append adds a turn to the end of the log.
	Append(ctx context.Context, turn MessagePair) error

	// LoadRecent returns up to n most recent turns for the session,
	// oldest-first.
	LoadRecent(ctx context.Context, sessionID session.ID, n int) ([]MessagePair, error)
}
