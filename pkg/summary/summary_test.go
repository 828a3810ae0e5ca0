package summary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/931405/mem1/pkg/jsonrepo"
	"github.com/931405/mem1/pkg/session"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(filepath.Join(t.TempDir(), "global_summary.json"))
}

func TestCurrentDefaultsToEmpty(t *testing.T) {
	log := newTestLog(t)

	current, err := log.Current(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, "", current)
}

func TestAppendThenCurrent(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "session-1", "user likes tea"))
	require.NoError(t, log.Append(ctx, "session-1", "user likes tea and hiking"))
	require.NoError(t, log.Append(ctx, "session-1", "user likes tea, hiking, and jazz"))

	current, err := log.Current(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "user likes tea, hiking, and jazz", current, "newest revision wins")
}

func TestCurrentIsPerSession(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "session-1", "summary one"))
	require.NoError(t, log.Append(ctx, "session-2", "summary two"))

	current, err := log.Current(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "summary one", current)

	current, err = log.Current(ctx, "session-2")
	require.NoError(t, err)
	assert.Equal(t, "summary two", current)
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global_summary.json")
	log := NewLog(path)
	ctx := context.Background()

	const writers = 16

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := session.ID(fmt.Sprintf("session-%d", w))
			assert.NoError(t, log.Append(ctx, id, fmt.Sprintf("revision %d", w)))
		}(w)
	}
	wg.Wait()

	entries, err := jsonrepo.LoadAll[Entry](path)
	require.NoError(t, err)
	assert.Len(t, entries, writers, "every append survives the rewrite cycle on disk")

	for w := 0; w < writers; w++ {
		current, err := log.Current(ctx, session.ID(fmt.Sprintf("session-%d", w)))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("revision %d", w), current)
	}
}

func TestMalformedFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global_summary.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	log := NewLog(path)
	ctx := context.Background()

	current, err := log.Current(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "", current)

	// A later append starts a fresh log rather than failing forever.
	require.NoError(t, log.Append(ctx, "session-1", "recovered"))
	current, err = log.Current(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "recovered", current)
}
