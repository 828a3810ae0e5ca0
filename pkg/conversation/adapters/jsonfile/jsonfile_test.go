package jsonfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/931405/mem1/pkg/conversation"
	"github.com/931405/mem1/pkg/jsonrepo"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(filepath.Join(t.TempDir(), "conversation.log"))
}

func TestAppendAndLoadRecent(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	for i, msg := range []string{"first", "second", "third"} {
		require.NoError(t, l.Append(ctx, conversation.MessagePair{
			SessionID:   "session-1",
			UserMessage: msg,
			AIResponse:  "reply to " + msg,
			Timestamp:   int64(1000 + i),
		}))
	}

	turns, err := l.LoadRecent(ctx, "session-1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	// The two most recent, oldest-first.
	assert.Equal(t, "second", turns[0].UserMessage)
	assert.Equal(t, "third", turns[1].UserMessage)
	assert.Equal(t, "reply to third", turns[1].AIResponse)
}

func TestLoadRecentEmptySession(t *testing.T) {
	l := newTestLog(t)

	turns, err := l.LoadRecent(context.Background(), "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSessionsAreIsolated(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, conversation.MessagePair{SessionID: "a", UserMessage: "from a", AIResponse: "ok", Timestamp: 1}))
	require.NoError(t, l.Append(ctx, conversation.MessagePair{SessionID: "b", UserMessage: "from b", AIResponse: "ok", Timestamp: 2}))

	turns, err := l.LoadRecent(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "from a", turns[0].UserMessage)
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation.log")
	l := NewLog(path)
	ctx := context.Background()

	const writers = 16

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, conversation.MessagePair{
				SessionID:   "session-1",
				UserMessage: fmt.Sprintf("message %d", w),
				AIResponse:  "ok",
				Timestamp:   int64(w),
			}))
		}(w)
	}
	wg.Wait()

	turns, err := jsonrepo.LoadAll[conversation.MessagePair](path)
	require.NoError(t, err)
	assert.Len(t, turns, writers, "every append survives the rewrite cycle on disk")
}
