package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process transcript store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]TurnRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]TurnRecord)}
}

func (s *InMemoryStore) SaveTurn(_ context.Context, record TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.records[record.UserID] = append(s.records[record.UserID], record)
	return nil
}

func (s *InMemoryStore) Recent(_ context.Context, userID, channel string, limit int) ([]TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var arr []TurnRecord
	for _, r := range s.records[userID] {
		if channel == "" || r.Channel == channel {
			arr = append(arr, r)
		}
	}
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	return arr[len(arr)-limit:], nil
}

func (s *InMemoryStore) DeleteUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records[userID])
	delete(s.records, userID)
	return n, nil
}

func (s *InMemoryStore) Close() error { return nil }
