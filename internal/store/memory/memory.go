package memory

import (
	"bytes"
	"context"
	"sync"

	"fieldsales/backend/internal/store"
)

// Store is a process-local store.KV. It backs development runs and tests.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(value), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = bytes.Clone(value)
	return nil
}

func (s *Store) Append(_ context.Context, key string, item []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := store.AppendJSON(s.values[key], item)
	if err != nil {
		return err
	}
	s.values[key] = next
	return nil
}

func (s *Store) Close() error {
	return nil
}
