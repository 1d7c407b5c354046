package history

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process history store for local/dev use.
type InMemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	turns    map[int64][]Turn
	policies map[int64]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		turns:    make(map[int64][]Turn),
		policies: make(map[int64]int),
	}
}

func (s *InMemoryStore) Append(_ context.Context, userID int64, role Role, parts []Part) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.turns[userID] = append(s.turns[userID], Turn{
		Seq:       s.seq,
		UserID:    userID,
		Role:      role,
		Parts:     append([]Part(nil), parts...),
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *InMemoryStore) Window(_ context.Context, userID int64) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.turns[userID]
	limit := s.policyLimitLocked(userID)
	if len(arr) == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > len(arr) {
		limit = len(arr)
	}
	// Turns are stored in insertion order; the window is the tail.
	out := make([]Turn, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) SetPolicy(_ context.Context, userID int64, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[userID] = limit
	return nil
}

func (s *InMemoryStore) PolicyLimit(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policyLimitLocked(userID), nil
}

func (s *InMemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, userID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) policyLimitLocked(userID int64) int {
	if limit, ok := s.policies[userID]; ok {
		return limit
	}
	return DefaultLimit
}
