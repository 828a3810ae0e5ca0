package stm

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/931405/mem1/pkg/conversation"
	"github.com/931405/mem1/pkg/conversation/adapters/jsonfile"
	"github.com/931405/mem1/pkg/session"
)

func turn(sessionID session.ID, user, ai string) conversation.MessagePair {
	return conversation.MessagePair{
		SessionID:   sessionID,
		UserMessage: user,
		AIResponse:  ai,
		Timestamp:   1700000000,
	}
}

func TestAddAndGetRecent(t *testing.T) {
	cache := NewCache(5, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		cache.Add("session-1", turn("session-1", fmt.Sprintf("msg %d", i), "ok"))
	}

	recent := cache.GetRecent(ctx, "session-1", 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "msg 2", recent[0].UserMessage)
	assert.Equal(t, "msg 3", recent[1].UserMessage)

	all := cache.GetAll(ctx, "session-1")
	assert.Len(t, all, 3)
	assert.Equal(t, 3, cache.Len("session-1"))
}

func TestEvictionKeepsNewestTurns(t *testing.T) {
	cache := NewCache(3, nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		cache.Add("session-1", turn("session-1", fmt.Sprintf("msg %d", i), "ok"))
	}

	all := cache.GetAll(ctx, "session-1")
	require.Len(t, all, 3)
	assert.Equal(t, "msg 3", all[0].UserMessage)
	assert.Equal(t, "msg 5", all[2].UserMessage)
}

func TestSessionsDoNotLeak(t *testing.T) {
	cache := NewCache(5, nil)
	ctx := context.Background()

	cache.Add("session-1", turn("session-1", "a", "ok"))
	cache.Add("session-2", turn("session-2", "b", "ok"))

	all := cache.GetAll(ctx, "session-1")
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].UserMessage)
}

func TestLazyHydration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	durable := jsonfile.NewLog(path)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, durable.Append(ctx, turn("session-1", fmt.Sprintf("old %d", i), "ok")))
	}

	cache := NewCache(3, durable)
	all := cache.GetAll(ctx, "session-1")
	require.Len(t, all, 3, "hydration respects the cache capacity")
	assert.Equal(t, "old 2", all[0].UserMessage)
	assert.Equal(t, "old 4", all[2].UserMessage)

	// Hydrated turns and fresh turns share one buffer.
	cache.Add("session-1", turn("session-1", "new", "ok"))
	all = cache.GetAll(ctx, "session-1")
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[2].UserMessage)
}

func TestHydrationSkipsEmptyHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	cache := NewCache(3, jsonfile.NewLog(path))

	assert.Empty(t, cache.GetAll(context.Background(), "session-1"))
	assert.Equal(t, 0, cache.Len("session-1"))
}

func TestBuildContext(t *testing.T) {
	cache := NewCache(5, nil)
	ctx := context.Background()

	assert.Equal(t, "", cache.BuildContext(ctx, "session-1"), "empty session yields empty context")

	cache.Add("session-1", turn("session-1", "I like tea", "Noted!"))
	cache.Add("session-1", turn("session-1", "What do I like?", "You like tea."))

	context := cache.BuildContext(ctx, "session-1")
	assert.Contains(t, context, "[Recent conversation history]")
	assert.Contains(t, context, "Turn 1:")
	assert.Contains(t, context, "  User: I like tea")
	assert.Contains(t, context, "  AI: You like tea.")
}

func TestBuildContextTruncatesLongMessages(t *testing.T) {
	cache := NewCache(5, nil)
	ctx := context.Background()

	long := strings.Repeat("x", 300)
	cache.Add("session-1", turn("session-1", long, "short"))

	context := cache.BuildContext(ctx, "session-1")
	assert.Contains(t, context, strings.Repeat("x", 200)+"...")
	assert.NotContains(t, context, strings.Repeat("x", 201))
}

func TestClearForgetsSession(t *testing.T) {
	cache := NewCache(5, nil)
	ctx := context.Background()

	cache.Add("session-1", turn("session-1", "a", "ok"))
	cache.Clear("session-1")

	assert.Empty(t, cache.GetAll(ctx, "session-1"))
	assert.Equal(t, 0, cache.Len("session-1"))
}
