package entity

import (
	"context"
	"sync"
)

// MemoryStore keeps entities in process memory. Values are copied in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[int64]*Entity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entities: make(map[int64]*Entity)}
}

func (s *MemoryStore) Get(ctx context.Context, guid int64) (*Entity, error) {
	s.mu.RLock()
	e, ok := s.entities[guid]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(guid)
	}
	if err := checkVisible(ctx, e); err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, e *Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities[e.GUID] = e.Clone()
	return nil
}

func (s *MemoryStore) SetAttributes(ctx context.Context, guid int64, attrs Attributes) error {
	if err := validateAttributes(attrs); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[guid]
	if !ok {
		return notFound(guid)
	}
	e.Attributes.Merge(attrs)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
