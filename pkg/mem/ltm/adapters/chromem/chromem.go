// Package chromem implements the memory record store on chromem-go, a pure
// Go embedded vector database.
//
// chromem-go has no ordered listing and no lookup by ID in v0.7.0, so the
// adapter keeps an authoritative record map of its own and mirrors each
// embedding into a per-session collection. Gets, listings, and counts are
// served from the map; similarity search is delegated to chromem's native
// query path instead of a brute-force scan.
package chromem

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	chromemgo "github.com/philippgille/chromem-go"

	"github.com/931405/mem1/pkg/conversation"
	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/mem/ltm"
	"github.com/931405/mem1/pkg/session"
)

// Store implements ltm.Store and ltm.Searcher on a chromem-go database.
type Store struct {
	db *chromemgo.DB

	mu          sync.RWMutex
	collections map[session.ID]*chromemgo.Collection
	records     map[string]ltm.MemoryRecord
	order       []string
	dims        int
}

// NewStore creates an in-memory chromem-backed store. The backend lives
// for the process; durable deployments use the jsonfile or boltdb stores.
func NewStore() *Store {
	log.Debug("Initialized chromem memory store adapter")
	return &Store{
		db:          chromemgo.NewDB(),
		collections: make(map[session.ID]*chromemgo.Collection),
		records:     make(map[string]ltm.MemoryRecord),
	}
}

func (s *Store) collectionLocked(sessionID session.ID) (*chromemgo.Collection, error) {
	if col, exists := s.collections[sessionID]; exists {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(fmt.Sprintf("session_%s", sessionID), nil, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "create collection for session %s: %v", sessionID, err)
	}
	s.collections[sessionID] = col
	return col, nil
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
	col, err := s.collectionLocked(sessionID)
	if err != nil {
		return "", err
	}

	record := ltm.MemoryRecord{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Turn:      turn,
		Embedding: append([]float32(nil), embedding...),
		Fact:      fact,
	}

	if err := col.AddDocument(ctx, document(record)); err != nil {
		return "", apperrors.Wrap(apperrors.ErrStorage, "add document: %v", err)
	}

	s.records[record.ID] = record
	s.order = append(s.order, record.ID)
	if s.dims == 0 {
		s.dims = len(embedding)
	}
	return record.ID, nil
}

// Update implements ltm.Store.
func (s *Store) Update(ctx context.Context, id string, embedding []float32, fact ltm.Fact) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[id]
	if !exists {
		return false, nil
	}
	if err := s.checkDimsLocked(embedding); err != nil {
		return false, err
	}
	col, err := s.collectionLocked(record.SessionID)
	if err != nil {
		return false, err
	}

	record.Embedding = append([]float32(nil), embedding...)
	record.Fact = fact

	// Re-adding under the same document ID replaces the stored vector.
	if err := col.AddDocument(ctx, document(record)); err != nil {
		return false, apperrors.Wrap(apperrors.ErrStorage, "replace document: %v", err)
	}
	s.records[id] = record
	return true, nil
}

// Delete implements ltm.Store.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[id]
	if !exists {
		return false, nil
	}
	col, err := s.collectionLocked(record.SessionID)
	if err != nil {
		return false, err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return false, apperrors.Wrap(apperrors.ErrStorage, "delete document: %v", err)
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

// Get implements ltm.Store.
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
		record.Embedding = append([]float32(nil), record.Embedding...)
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

// Search implements ltm.Searcher using chromem's native vector query.
// chromem rejects result counts larger than the collection, so the limit
// is clamped before querying.
func (s *Store) Search(ctx context.Context, sessionID session.ID, query []float32, topK int) ([]ltm.SimilarityResult, error) {
	s.mu.RLock()
	col, exists := s.collections[sessionID]
	size := 0
	if exists {
		size = col.Count()
	}
	s.mu.RUnlock()

	if !exists || size == 0 || topK <= 0 {
		return []ltm.SimilarityResult{}, nil
	}
	if topK > size {
		topK = size
	}

	results, err := col.QueryEmbedding(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "query embedding: %v", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ltm.SimilarityResult, 0, len(results))
	for _, result := range results {
		record, exists := s.records[result.ID]
		if !exists {
			continue
		}
		out = append(out, ltm.SimilarityResult{
			MemoryID: record.ID,
			Fact:     record.Fact,
			Turn:     record.Turn,
			Score:    float64(result.Similarity),
		})
	}
	return out, nil
}

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

func document(record ltm.MemoryRecord) chromemgo.Document {
	return chromemgo.Document{
		ID:        record.ID,
		Content:   record.Fact.Text,
		Embedding: record.Embedding,
		Metadata: map[string]string{
			"session_id": string(record.SessionID),
			"category":   record.Fact.Category,
			"confidence": strconv.FormatFloat(record.Fact.Confidence, 'f', -1, 64),
		},
	}
}
