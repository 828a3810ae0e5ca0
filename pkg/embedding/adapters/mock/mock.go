// Package mock provides a deterministic embedding.Embedder for tests and
// offline runs. Equal texts always embed to equal vectors, so similarity
// assertions stay stable across runs.
package mock

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"

	"github.com/931405/mem1/pkg/log"
)

// DefaultDimensions is small on purpose; tests rarely need realistic
// vector widths.
const DefaultDimensions = 16

// MockEmbedder generates unit vectors from a hash of the input text.
// Canned vectors can be registered per text to steer similarity results.
type MockEmbedder struct {
	dimensions int

	mu     sync.RWMutex
	canned map[string][]float32
	err    error
	calls  []string
}

// MockOption configures a MockEmbedder.
type MockOption func(*MockEmbedder)

// WithDimensions sets the vector length.
func WithDimensions(dims int) MockOption {
	return func(m *MockEmbedder) {
		m.dimensions = dims
	}
}

// WithError makes every Embed call fail with err.
func WithError(err error) MockOption {
	return func(m *MockEmbedder) {
		m.err = err
	}
}

// NewMockEmbedder creates a mock embedder with the given options.
func NewMockEmbedder(opts ...MockOption) *MockEmbedder {
	m := &MockEmbedder{
		dimensions: DefaultDimensions,
		canned:     make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(m)
	}

	log.Debug("Created mock embedder", "dimensions", m.dimensions)
	return m
}

// AddEmbedding registers a canned vector for an exact text. The vector must
// have the embedder's dimension; shorter vectors are zero-padded.
func (m *MockEmbedder) AddEmbedding(text string, vector []float32) {
	padded := make([]float32, m.dimensions)
	copy(padded, vector)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.canned[text] = padded
}

// SetError makes every subsequent Embed call fail with err. Passing nil
// clears the failure.
func (m *MockEmbedder) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the texts embedded so far, in order.
func (m *MockEmbedder) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.calls...)
}

// Embed implements embedding.Embedder. Without a canned vector the result
// is derived from an FNV-64a hash of the text fed through a linear
// congruential generator, then normalized to unit length.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	err := m.err
	canned, hasCanned := m.canned[text]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if hasCanned {
		return append([]float32(nil), canned...), nil
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vector := make([]float32, m.dimensions)
	for i := range vector {
		seed = seed*6364136223846793005 + 1442695040888963407
		vector[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vector), nil
}

// Dimensions implements embedding.Embedder.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

func normalize(vector []float32) []float32 {
	var norm float32
	for _, v := range vector {
		norm += v * v
	}
	if norm == 0 {
		return vector
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vector {
		vector[i] = v / norm
	}
	return vector
}

// ErrUnavailable is a convenience error for tests that simulate a broken
// embedding backend.
var ErrUnavailable = errors.New("mock embedder unavailable")
