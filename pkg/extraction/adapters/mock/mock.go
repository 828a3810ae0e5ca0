// Package mock provides a scriptable extraction.Extractor for tests.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/931405/mem1/pkg/extraction"
	"github.com/931405/mem1/pkg/mem/ltm"
)

// MockExtractor returns scripted facts for user messages containing a key
// substring, and nothing otherwise.
type MockExtractor struct {
	mu      sync.Mutex
	scripts map[string][]ltm.Fact
	err     error
	calls   []extraction.Request
}

// NewMockExtractor creates an extractor with no scripts; every turn
// extracts zero facts until Script is called.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{scripts: make(map[string][]ltm.Fact)}
}

// Script registers facts to return when the user message contains key.
func (m *MockExtractor) Script(key string, facts ...ltm.Fact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[key] = facts
}

// SetError makes every subsequent Extract call fail with err.
func (m *MockExtractor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the recorded requests in order.
func (m *MockExtractor) Calls() []extraction.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]extraction.Request(nil), m.calls...)
}

// Extract implements extraction.Extractor.
func (m *MockExtractor) Extract(ctx context.Context, req extraction.Request) ([]ltm.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	for key, facts := range m.scripts {
		if strings.Contains(req.UserMessage, key) {
			return append([]ltm.Fact(nil), facts...), nil
		}
	}
	return nil, nil
}
