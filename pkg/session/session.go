package session

import "context"

// ID identifies a conversation session. Each session has its own isolated
// set of memories and short-term cache entries. A session is a filter key,
// not a security boundary.
type ID string

// contextKey is a private type for context keys to avoid collisions
type contextKey int

const (
	// sessionKey is the key for storing a session.ID in a context.Context
	sessionKey contextKey = iota
)

// WithID adds a session ID to a context.Context.
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// FromContext retrieves the session ID from a context.Context.
// If none is found, it returns the empty ID and false.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(sessionKey).(ID)
	return id, ok
}
