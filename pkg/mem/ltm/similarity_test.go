package ltm

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/931405/mem1/pkg/session"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{name: "identical vectors", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal vectors", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite vectors", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1, 2}, b: []float32{1, 2, 3}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 2}, want: 0},
		{name: "both empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineSimilarityScaleInvariant(t *testing.T) {
	a := []float32{0.3, 0.5, 0.2}
	b := []float32{0.6, 1.0, 0.4} // a scaled by 2
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-6)
}

func rec(id, text string, embedding []float32) MemoryRecord {
	return MemoryRecord{
		ID:        id,
		SessionID: "session-1",
		Embedding: embedding,
		Fact:      Fact{Text: text, Confidence: 0.8},
	}
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	records := []MemoryRecord{
		rec("a", "far", []float32{0, 1}),
		rec("b", "near", []float32{1, 0}),
		rec("c", "middle", []float32{0.7, 0.7}),
	}

	results := Rank(records, []float32{1, 0}, 10)
	require.Len(t, results, 3)
	assert.Equal(t, "b", results[0].MemoryID)
	assert.Equal(t, "c", results[1].MemoryID)
	assert.Equal(t, "a", results[2].MemoryID)
}

func TestRankTruncatesToTopK(t *testing.T) {
	records := []MemoryRecord{
		rec("a", "a", []float32{1, 0}),
		rec("b", "b", []float32{0.9, 0.1}),
		rec("c", "c", []float32{0.8, 0.2}),
	}

	results := Rank(records, []float32{1, 0}, 2)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].MemoryID)
	assert.Equal(t, "b", results[1].MemoryID)
}

func TestRankIsStableForEqualScores(t *testing.T) {
	// All candidates score identically; input order must be preserved.
	records := []MemoryRecord{
		rec("first", "f", []float32{1, 0}),
		rec("second", "s", []float32{2, 0}),
		rec("third", "t", []float32{3, 0}),
	}

	results := Rank(records, []float32{1, 0}, 10)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].MemoryID)
	assert.Equal(t, "second", results[1].MemoryID)
	assert.Equal(t, "third", results[2].MemoryID)
}

func TestRankDegenerateInputs(t *testing.T) {
	records := []MemoryRecord{rec("a", "a", []float32{1, 0})}

	assert.Empty(t, Rank(nil, []float32{1, 0}, 5))
	assert.Empty(t, Rank(records, []float32{1, 0}, 0))
	assert.Empty(t, Rank(records, []float32{1, 0}, -1))

	// A mismatched query still ranks, with score 0 everywhere.
	results := Rank(records, []float32{1, 0, 0}, 5)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
}

func TestRankScoresAreFinite(t *testing.T) {
	records := []MemoryRecord{
		rec("a", "a", []float32{0, 0}),
		rec("b", "b", []float32{1, 1}),
	}
	for _, result := range Rank(records, []float32{1, 1}, 10) {
		assert.False(t, math.IsNaN(result.Score))
		assert.False(t, math.IsInf(result.Score, 0))
	}
}

type nativeSearcher struct {
	Store
	results []SimilarityResult
}

func (n *nativeSearcher) Search(ctx context.Context, sessionID session.ID, query []float32, topK int) ([]SimilarityResult, error) {
	return n.results, nil
}

func TestSearchPrefersNativeSearcher(t *testing.T) {
	canned := []SimilarityResult{{MemoryID: "native", Score: 0.99}}
	store := &nativeSearcher{results: canned}

	results, err := Search(context.Background(), store, "session-1", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, canned, results)
}
