// Package mock provides a scriptable decision.Decider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/931405/mem1/pkg/decision"
	"github.com/931405/mem1/pkg/mem/ltm"
)

// Call records one Decide invocation.
type Call struct {
	Candidate ltm.Fact
	Neighbors []ltm.SimilarityResult
}

// MockDecider returns scripted actions keyed by candidate fact text, a
// fixed default otherwise. Setting Err makes every call fail, which is how
// tests drive the pipeline onto the fallback heuristic.
type MockDecider struct {
	mu      sync.Mutex
	scripts map[string]decision.Action
	def     decision.Action
	err     error
	calls   []Call
}

// NewMockDecider creates a decider that answers def for every candidate.
func NewMockDecider(def decision.Action) *MockDecider {
	return &MockDecider{
		scripts: make(map[string]decision.Action),
		def:     def,
	}
}

// Script fixes the action for candidates whose fact text equals text.
func (m *MockDecider) Script(text string, action decision.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[text] = action
}

// SetError makes every subsequent Decide call fail with err.
func (m *MockDecider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the recorded invocations in order.
func (m *MockDecider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Decide implements decision.Decider.
func (m *MockDecider) Decide(ctx context.Context, candidate ltm.Fact, neighbors []ltm.SimilarityResult) (decision.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Candidate: candidate, Neighbors: neighbors})
	if m.err != nil {
		return decision.ActionNoop, m.err
	}
	if action, ok := m.scripts[candidate.Text]; ok {
		return action, nil
	}
	return m.def, nil
}
