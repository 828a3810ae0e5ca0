// Package jsonfile implements the memory record store on top of a single
// JSON array file per store instance.
//
// The file is only ever a mirror of the authoritative in-memory map: it is
// loaded once when the store opens and rewritten wholesale, from a snapshot
// taken under the store's writer lock, after every mutation. No call path
// reloads the file and writes it back, which is what makes concurrent
// upserts safe: two writers serialize on the lock instead of each rewriting
// the file from a stale read.
package jsonfile

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/931405/mem1/pkg/conversation"
	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/jsonrepo"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/mem/ltm"
	"github.com/931405/mem1/pkg/session"
)

// Store implements ltm.Store with an in-memory map flushed to a JSON file.
type Store struct {
	path string

	mu      sync.RWMutex
	records map[string]ltm.MemoryRecord
	order   []string // record IDs in insertion order
	dims    int      // embedding dimension, fixed by the first record
}

// Open loads (or creates) the store backed by the JSON file at path.
func Open(path string) (*Store, error) {
	loaded, err := jsonrepo.LoadAll[ltm.MemoryRecord](path)
	if err != nil {
		return nil, apperrors.Wrap(err, "open memory store %s", path)
	}

	s := &Store{
		path:    path,
		records: make(map[string]ltm.MemoryRecord, len(loaded)),
		order:   make([]string, 0, len(loaded)),
	}
	for _, record := range loaded {
		if _, exists := s.records[record.ID]; exists {
			continue
		}
		s.records[record.ID] = record
		s.order = append(s.order, record.ID)
		if s.dims == 0 {
			s.dims = len(record.Embedding)
		}
	}

	log.Debug("Opened JSON file memory store",
		"path", path,
		"records", len(s.order),
		"dimensions", s.dims,
	)
	return s, nil
}

// Upsert implements ltm.Store.
func (s *Store) Upsert(ctx context.Context, sessionID session.ID, turn conversation.MessagePair, embedding []float32, fact ltm.Fact) (string, error) {
	if sessionID == "" {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "session ID must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDimsLocked(embedding); err != nil {
		return "", err
	}

	record := ltm.MemoryRecord{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Turn:      turn,
		Embedding: cloneVector(embedding),
		Fact:      fact,
	}

	prevDims := s.dims
	s.records[record.ID] = record
	s.order = append(s.order, record.ID)
	if s.dims == 0 {
		s.dims = len(embedding)
	}

	if err := s.flushLocked(); err != nil {
		// Roll back so a failed flush never commits the mutation.
		delete(s.records, record.ID)
		s.order = s.order[:len(s.order)-1]
		s.dims = prevDims
		log.ErrorContext(ctx, "Flush failed, upsert rolled back", "error", err)
		return "", err
	}

	log.DebugContext(ctx, "Stored memory record",
		"record_id", record.ID,
		"session_id", string(sessionID),
	)
	return record.ID, nil
}

// Update implements ltm.Store. The record's turn and ID are preserved.
func (s *Store) Update(ctx context.Context, id string, embedding []float32, fact ltm.Fact) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.records[id]
	if !exists {
		return false, nil
	}
	if err := s.checkDimsLocked(embedding); err != nil {
		return false, err
	}

	next := prev
	next.Embedding = cloneVector(embedding)
	next.Fact = fact
	s.records[id] = next

	if err := s.flushLocked(); err != nil {
		s.records[id] = prev
		log.ErrorContext(ctx, "Flush failed, update rolled back", "record_id", id, "error", err)
		return false, err
	}

	log.DebugContext(ctx, "Updated memory record", "record_id", id)
	return true, nil
}

// Delete implements ltm.Store.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.records[id]
	if !exists {
		return false, nil
	}

	pos := -1
	for i, recordID := range s.order {
		if recordID == id {
			pos = i
			break
		}
	}

	delete(s.records, id)
	if pos >= 0 {
		s.order = append(s.order[:pos], s.order[pos+1:]...)
	}

	if err := s.flushLocked(); err != nil {
		s.records[id] = prev
		if pos >= 0 {
			s.order = append(s.order, "")
			copy(s.order[pos+1:], s.order[pos:])
			s.order[pos] = id
		}
		log.ErrorContext(ctx, "Flush failed, delete rolled back", "record_id", id, "error", err)
		return false, err
	}

	log.DebugContext(ctx, "Deleted memory record", "record_id", id)
	return true, nil
}

// Get implements ltm.Store.
func (s *Store) Get(ctx context.Context, id string) (*ltm.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return nil, nil
	}
	record.Embedding = cloneVector(record.Embedding)
	return &record, nil
}

// ListBySession implements ltm.Store.
func (s *Store) ListBySession(ctx context.Context, sessionID session.ID) ([]ltm.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ltm.MemoryRecord
	for _, id := range s.order {
		record := s.records[id]
		if record.SessionID != sessionID {
			continue
		}
		record.Embedding = cloneVector(record.Embedding)
		result = append(result, record)
	}
	return result, nil
}

// Count implements ltm.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

// Dimensions returns the embedding dimension the store is locked to, or 0
// when the store is still empty.
func (s *Store) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// checkDimsLocked rejects embeddings whose length conflicts with the
// dimension the store was fixed to by its first record.
func (s *Store) checkDimsLocked(embedding []float32) error {
	if len(embedding) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "embedding must not be empty")
	}
	if s.dims != 0 && len(embedding) != s.dims {
		return apperrors.Wrap(apperrors.ErrDimensionMismatch,
			"store uses dimension %d, got %d", s.dims, len(embedding))
	}
	return nil
}

// flushLocked rewrites the durable file from the current map. Callers must
// hold the writer lock; the snapshot is marshalled before any byte reaches
// disk, so readers never observe a partially flushed state.
func (s *Store) flushLocked() error {
	snapshot := make([]ltm.MemoryRecord, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, s.records[id])
	}
	return jsonrepo.WriteAll(s.path, snapshot)
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
