// Package boltdb implements the memory record store on embedded BoltDB.
//
// Records live in one bucket keyed by ID; a second bucket maps a
// monotonically increasing sequence number to each ID so per-session
// listings come back in insertion order. Bolt runs writes in serialized
// transactions, so the store needs no lock of its own.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/931405/mem1/pkg/conversation"
	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/mem/ltm"
	"github.com/931405/mem1/pkg/session"
)

var (
	bucketRecords = []byte("records")
	bucketOrder   = []byte("order")
	bucketMeta    = []byte("meta")

	keyDimensions = []byte("dimensions")
)

// BoltStore implements ltm.Store using a BoltDB database.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a BoltStore with the given database connection and
// ensures its buckets exist.
func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketOrder, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "initialize buckets: %v", err)
	}

	log.Debug("Initialized BoltDB memory store adapter", "db_path", db.Path())
	return &BoltStore{db: db}, nil
}

// Upsert implements ltm.Store.
func (b *BoltStore) Upsert(ctx context.Context, sessionID session.ID, turn conversation.MessagePair, embedding []float32, fact ltm.Fact) (string, error) {
	if sessionID == "" {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "session ID must not be empty")
	}
	if len(embedding) == 0 {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "embedding must not be empty")
	}

	record := ltm.MemoryRecord{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Turn:      turn,
		Embedding: embedding,
		Fact:      fact,
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		if err := checkDimensions(tx, len(embedding)); err != nil {
			return err
		}

		data, err := json.Marshal(record)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "marshal record: %v", err)
		}

		records := tx.Bucket(bucketRecords)
		if err := records.Put([]byte(record.ID), data); err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "put record: %v", err)
		}

		order := tx.Bucket(bucketOrder)
		seq, err := order.NextSequence()
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "next sequence: %v", err)
		}
		return order.Put(seqKey(seq), []byte(record.ID))
	})
	if err != nil {
		return "", err
	}

	log.DebugContext(ctx, "Stored memory record", "record_id", record.ID, "session_id", string(sessionID))
	return record.ID, nil
}

// Update implements ltm.Store.
func (b *BoltStore) Update(ctx context.Context, id string, embedding []float32, fact ltm.Fact) (bool, error) {
	var found bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		data := records.Get([]byte(id))
		if data == nil {
			return nil
		}
		if err := checkDimensions(tx, len(embedding)); err != nil {
			return err
		}

		var record ltm.MemoryRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "unmarshal record: %v", err)
		}
		record.Embedding = embedding
		record.Fact = fact

		updated, err := json.Marshal(record)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "marshal record: %v", err)
		}
		if err := records.Put([]byte(id), updated); err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "put record: %v", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Delete implements ltm.Store.
func (b *BoltStore) Delete(ctx context.Context, id string) (bool, error) {
	var found bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		if records.Get([]byte(id)) == nil {
			return nil
		}
		if err := records.Delete([]byte(id)); err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "delete record: %v", err)
		}

		order := tx.Bucket(bucketOrder)
		cursor := order.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if string(v) == id {
				if err := order.Delete(k); err != nil {
					return apperrors.Wrap(apperrors.ErrStorage, "delete order entry: %v", err)
				}
				break
			}
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Get implements ltm.Store.
func (b *BoltStore) Get(ctx context.Context, id string) (*ltm.MemoryRecord, error) {
	var record *ltm.MemoryRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(id))
		if data == nil {
			return nil
		}
		var r ltm.MemoryRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return apperrors.Wrap(apperrors.ErrStorage, "unmarshal record: %v", err)
		}
		record = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListBySession implements ltm.Store. Records come back in insertion order
// by walking the sequence bucket.
func (b *BoltStore) ListBySession(ctx context.Context, sessionID session.ID) ([]ltm.MemoryRecord, error) {
	var result []ltm.MemoryRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		order := tx.Bucket(bucketOrder)

		cursor := order.Cursor()
		for k, id := cursor.First(); k != nil; k, id = cursor.Next() {
			data := records.Get(id)
			if data == nil {
				continue
			}
			var record ltm.MemoryRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return apperrors.Wrap(apperrors.ErrStorage, "unmarshal record: %v", err)
			}
			if record.SessionID == sessionID {
				result = append(result, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Count implements ltm.Store.
func (b *BoltStore) Count(ctx context.Context) (int, error) {
	var count int
	err := b.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "count records: %v", err)
	}
	return count, nil
}

// checkDimensions stores the dimension on first write and rejects any later
// write with a different one.
func checkDimensions(tx *bolt.Tx, dims int) error {
	if dims == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "embedding must not be empty")
	}
	meta := tx.Bucket(bucketMeta)
	stored := meta.Get(keyDimensions)
	if stored == nil {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(dims))
		return meta.Put(keyDimensions, buf)
	}
	if existing := int(binary.BigEndian.Uint64(stored)); existing != dims {
		return apperrors.Wrap(apperrors.ErrDimensionMismatch,
			"store uses dimension %d, got %d", existing, dims)
	}
	return nil
}

func seqKey(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
