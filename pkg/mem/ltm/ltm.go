package ltm

import (
	"context"

	"github.com/931405/mem1/pkg/conversation"
	"github.com/931405/mem1/pkg/session"
)

// Fact is a single extracted statement about the user. Before resolution it
// is a candidate; after an ADD or UPDATE it lives inside a MemoryRecord.
type Fact struct {
	// Text is the fact content
	Text string `json:"fact"`

	// Category groups facts (e.g. "personal", "work", "habit")
	Category string `json:"category"`

	// Confidence is the extractor's certainty, in [0, 1]
	Confidence float64 `json:"confidence"`
}

// MemoryRecord is a persisted fact together with the turn it was derived
// from and its vector representation. ID and SessionID are immutable; an
// update replaces only Embedding and Fact.
type MemoryRecord struct {
	// ID is a unique identifier for the record, generated on creation
	ID string `json:"id"`

	// SessionID is the session that owns this memory; never empty
	SessionID session.ID `json:"sessionId"`

	// Turn is the message pair the fact was extracted from
	Turn conversation.MessagePair `json:"turn"`

	// Embedding is the vector representation used for semantic search.
	// All embeddings in one store share the same dimension.
	Embedding []float32 `json:"embedding"`

	// Fact is the extracted statement
	Fact Fact `json:"fact"`
}

// SimilarityResult pairs a stored memory with its cosine similarity to a
// query vector. Score is in [-1, 1]; malformed vectors score 0.
type SimilarityResult struct {
	MemoryID string
	Fact     Fact
	Turn     conversation.MessagePair
	Score    float64
}

// Store is the authoritative home of memory records. Reads return snapshot
// copies; mutations of records in one store are serialized so concurrent
// upserts can never overwrite each other's work.
type Store interface {
	// Upsert creates a new record with a fresh unique ID and returns it.
	// The in-memory mutation is rolled back when the durable flush fails.
	Upsert(ctx context.Context, sessionID session.ID, turn conversation.MessagePair, embedding []float32, fact Fact) (string, error)

	// Update replaces the embedding and fact of an existing record, keeping
	// its turn and ID. It reports false, without error, when id is absent.
	Update(ctx context.Context, id string, embedding []float32, fact Fact) (bool, error)

	// Delete removes a record, reporting false when id is absent.
	Delete(ctx context.Context, id string) (bool, error)

	// Get returns a copy of the record with the given id, or nil.
	Get(ctx context.Context, id string) (*MemoryRecord, error)

	// ListBySession returns copies of the session's records in insertion
	// order. The result is a snapshot of the state at call time.
	ListBySession(ctx context.Context, sessionID session.ID) ([]MemoryRecord, error)

	// Count returns the total number of records across all sessions.
	Count(ctx context.Context) (int, error)
}

// Searcher is implemented by stores with native vector search. Stores
// without it are searched by ranking a ListBySession snapshot.
type Searcher interface {
	Search(ctx context.Context, sessionID session.ID, query []float32, topK int) ([]SimilarityResult, error)
}

// Search ranks the session's records by cosine similarity to query and
// returns at most topK results, best first. It operates on the snapshot
// ListBySession returns and is safe to call concurrently with writes.
func Search(ctx context.Context, store Store, sessionID session.ID, query []float32, topK int) ([]SimilarityResult, error) {
	if searcher, ok := store.(Searcher); ok {
		return searcher.Search(ctx, sessionID, query, topK)
	}
	records, err := store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Rank(records, query, topK), nil
}
