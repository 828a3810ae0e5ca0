// Package mock provides an in-memory ltm.Store for tests and for running
// the system without any files on disk.
package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/931405/mem1/pkg/conversation"
	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/mem/ltm"
	"github.com/931405/mem1/pkg/session"
)

// Store implements ltm.Store entirely in memory. The zero value is not
// usable; construct with NewStore.
type Store struct {
	mu      sync.RWMutex
	records map[string]ltm.MemoryRecord
	order   []string

	// Err, when set, is returned by every mutating call. Tests use it to
	// exercise failure paths.
	Err error
}

func NewStore() *Store {
	return &Store{records: make(map[string]ltm.MemoryRecord)}
}

func (s *Store) Upsert(ctx context.Context, sessionID session.ID, turn conversation.MessagePair, embedding []float32, fact ltm.Fact) (string, error) {
	if sessionID == "" {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "session ID must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	record := ltm.MemoryRecord{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Turn:      turn,
		Embedding: append([]float32(nil), embedding...),
		Fact:      fact,
	}
	s.records[record.ID] = record
	s.order = append(s.order, record.ID)
	return record.ID, nil
}

func (s *Store) Update(ctx context.Context, id string, embedding []float32, fact ltm.Fact) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	record, exists := s.records[id]
	if !exists {
		return false, nil
	}
	record.Embedding = append([]float32(nil), embedding...)
	record.Fact = fact
	s.records[id] = record
	return true, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	if _, exists := s.records[id]; !exists {
		return false, nil
	}
	delete(s.records, id)
	for i, recordID := range s.order {
		if recordID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *Store) Get(ctx context.Context, id string) (*ltm.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, exists := s.records[id]
	if !exists {
		return nil, nil
	}
	record.Embedding = append([]float32(nil), record.Embedding...)
	return &record, nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID session.ID) ([]ltm.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []ltm.MemoryRecord
	for _, id := range s.order {
		record := s.records[id]
		if record.SessionID != sessionID {
			continue
		}
		record.Embedding = append([]float32(nil), record.Embedding...)
		result = append(result, record)
	}
	return result, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}
