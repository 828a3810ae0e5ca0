// Package stm provides the short-term memory cache: a bounded, per-session
// buffer of recent conversation turns, hydrated lazily from the durable
// conversation log.
package stm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/931405/mem1/pkg/conversation"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/session"
)

// DefaultMaxSize is the per-session turn capacity used when none is
// configured.
const DefaultMaxSize = 10

// contextTruncateLimit bounds each message's contribution to the prompt
// context.
const contextTruncateLimit = 200

// Cache holds bounded per-session buffers of recent turns. All methods are
// safe for concurrent use; each session has its own lock so sessions never
// contend with each other.
type Cache struct {
	maxSize int
	source  conversation.Log

	mu       sync.RWMutex
	sessions map[session.ID]*sessionBuffer
}

type sessionBuffer struct {
	mu      sync.RWMutex
	maxSize int
	turns   []conversation.MessagePair
}

// NewCache creates a cache with the given per-session capacity. source may
// be nil, in which case sessions start empty instead of hydrating from the
// durable log.
func NewCache(maxSize int, source conversation.Log) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		maxSize:  maxSize,
		source:   source,
		sessions: make(map[session.ID]*sessionBuffer),
	}
}

func (b *sessionBuffer) add(turn conversation.MessagePair) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, turn)
	for len(b.turns) > b.maxSize {
		b.turns = b.turns[1:]
	}
}

func (b *sessionBuffer) recent(n int) []conversation.MessagePair {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := len(b.turns) - n
	if start < 0 {
		start = 0
	}
	return append([]conversation.MessagePair(nil), b.turns[start:]...)
}

func (b *sessionBuffer) all() []conversation.MessagePair {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]conversation.MessagePair(nil), b.turns...)
}

func (b *sessionBuffer) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.turns)
}

// Add appends a turn to the session's buffer, creating the buffer if the
// session is new and evicting the oldest turn past capacity.
func (c *Cache) Add(sessionID session.ID, turn conversation.MessagePair) {
	c.mu.Lock()
	buffer, exists := c.sessions[sessionID]
	if !exists {
		buffer = &sessionBuffer{maxSize: c.maxSize}
		c.sessions[sessionID] = buffer
	}
	c.mu.Unlock()

	buffer.add(turn)
	log.Debug("Added turn to short-term memory", "session_id", string(sessionID), "size", buffer.size())
}

// GetRecent returns up to n most recent turns for the session, oldest
// first. An unknown session is hydrated from the durable log first.
func (c *Cache) GetRecent(ctx context.Context, sessionID session.ID, n int) []conversation.MessagePair {
	buffer := c.getOrHydrate(ctx, sessionID)
	if buffer == nil {
		return nil
	}
	return buffer.recent(n)
}

// GetAll returns every cached turn for the session, oldest first.
func (c *Cache) GetAll(ctx context.Context, sessionID session.ID) []conversation.MessagePair {
	buffer := c.getOrHydrate(ctx, sessionID)
	if buffer == nil {
		return nil
	}
	return buffer.all()
}

// BuildContext renders the session's cached turns as a prompt fragment.
// Long messages are truncated so a single verbose turn cannot dominate the
// context. An empty session yields an empty string.
func (c *Cache) BuildContext(ctx context.Context, sessionID session.ID) string {
	turns := c.GetAll(ctx, sessionID)
	if len(turns) == 0 {
		return ""
	}

	var context strings.Builder
	context.WriteString("[Recent conversation history]\n")
	for i, turn := range turns {
		fmt.Fprintf(&context, "Turn %d:\n", i+1)
		context.WriteString("  User: " + truncate(turn.UserMessage, contextTruncateLimit) + "\n")
		context.WriteString("  AI: " + truncate(turn.AIResponse, contextTruncateLimit) + "\n")
	}
	return context.String()
}

// Clear drops the session's buffer entirely. The next access hydrates from
// the durable log again.
func (c *Cache) Clear(sessionID session.ID) {
	c.mu.Lock()
	_, existed := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	if existed {
		log.Info("Cleared short-term memory", "session_id", string(sessionID))
	}
}

// Len reports the number of turns cached for the session without
// triggering hydration.
func (c *Cache) Len(sessionID session.ID) int {
	c.mu.RLock()
	buffer, exists := c.sessions[sessionID]
	c.mu.RUnlock()
	if !exists {
		return 0
	}
	return buffer.size()
}

// getOrHydrate returns the session's buffer, loading recent turns from the
// durable log on first access. A session with no durable history stays
// uncached so a later hydration can pick up turns written by another
// process in the meantime.
func (c *Cache) getOrHydrate(ctx context.Context, sessionID session.ID) *sessionBuffer {
	c.mu.RLock()
	buffer, exists := c.sessions[sessionID]
	c.mu.RUnlock()
	if exists {
		return buffer
	}
	if c.source == nil {
		return nil
	}

	turns, err := c.source.LoadRecent(ctx, sessionID, c.maxSize)
	if err != nil {
		log.WarnContext(ctx, "Failed to hydrate short-term memory", "session_id", string(sessionID), "error", err)
		return nil
	}
	if len(turns) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if buffer, exists := c.sessions[sessionID]; exists {
		return buffer
	}
	buffer = &sessionBuffer{maxSize: c.maxSize}
	for _, turn := range turns {
		buffer.turns = append(buffer.turns, turn)
	}
	for len(buffer.turns) > buffer.maxSize {
		buffer.turns = buffer.turns[1:]
	}
	c.sessions[sessionID] = buffer

	log.Debug("Hydrated short-term memory from durable log",
		"session_id", string(sessionID), "turns", len(buffer.turns))
	return buffer
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
