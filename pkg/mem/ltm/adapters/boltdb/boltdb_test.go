package boltdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/931405/mem1/pkg/conversation"
	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/mem/ltm"
	"github.com/931405/mem1/test/testutil"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	db, _, cleanup := testutil.CreateTempBoltDB(t)
	t.Cleanup(cleanup)

	store, err := NewBoltStore(db)
	require.NoError(t, err)
	return store
}

func turn(user string) conversation.MessagePair {
	return conversation.MessagePair{
		SessionID:   "session-1",
		UserMessage: user,
		AIResponse:  "ok",
		Timestamp:   1700000000,
	}
}

func TestUpsertGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fact := ltm.Fact{Text: "plays guitar", Category: "hobby", Confidence: 0.8}
	id, err := store.Upsert(ctx, "session-1", turn("I play guitar"), []float32{0.1, 0.2}, fact)
	require.NoError(t, err)

	record, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, fact, record.Fact)
	assert.Equal(t, []float32{0.1, 0.2}, record.Embedding)
	assert.Equal(t, "I play guitar", record.Turn.UserMessage)
}

func TestUpsertValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "", turn("a"), []float32{0.1}, ltm.Fact{Text: "a"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = store.Upsert(ctx, "session-1", turn("a"), nil, ltm.Fact{Text: "a"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDimensionFixedByFirstWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "session-1", turn("a"), []float32{0.1, 0.2, 0.3}, ltm.Fact{Text: "a"})
	require.NoError(t, err)

	_, err = store.Upsert(ctx, "session-1", turn("b"), []float32{0.1}, ltm.Fact{Text: "b"})
	assert.ErrorIs(t, err, apperrors.ErrDimensionMismatch)

	id, err := store.Upsert(ctx, "session-1", turn("c"), []float32{0.4, 0.5, 0.6}, ltm.Fact{Text: "c"})
	require.NoError(t, err)

	_, err = store.Update(ctx, id, []float32{0.1, 0.2}, ltm.Fact{Text: "c2"})
	assert.ErrorIs(t, err, apperrors.ErrDimensionMismatch)
}

func TestUpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Upsert(ctx, "session-1", turn("a"), []float32{0.1}, ltm.Fact{Text: "a"})
	require.NoError(t, err)

	found, err := store.Update(ctx, id, []float32{0.9}, ltm.Fact{Text: "a updated"})
	require.NoError(t, err)
	assert.True(t, found)

	record, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a updated", record.Fact.Text)

	found, err = store.Update(ctx, "missing", []float32{0.9}, ltm.Fact{Text: "x"})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = store.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestListBySessionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := store.Upsert(ctx, "session-1", turn(text), []float32{0.1}, ltm.Fact{Text: text})
		require.NoError(t, err)
	}
	_, err := store.Upsert(ctx, "session-2", turn("other"), []float32{0.1}, ltm.Fact{Text: "other"})
	require.NoError(t, err)

	records, err := store.ListBySession(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "one", records[0].Fact.Text)
	assert.Equal(t, "two", records[1].Fact.Text)
	assert.Equal(t, "three", records[2].Fact.Text)
}
