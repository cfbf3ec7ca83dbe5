package tracking

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory. Records are copied in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Record)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.items[key]
	if !ok {
		return Record{}, nil
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.items[key].Revision
	if current != rec.Revision {
		return current, &ConflictError{Key: key, ExpectedRevision: rec.Revision, CurrentRevision: current}
	}
	stored := rec.Clone()
	stored.Revision = current + 1
	s.items[key] = stored
	return stored.Revision, nil
}

// Keys lists the conversations with a stored record.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys
}
