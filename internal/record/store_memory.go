package record

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"traceport/pkg/platform/sentinel"
)

// InMemoryStore keeps passports in a map. Used by tests and as the default
// store when no database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID]Record)}
}

func (s *InMemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = *rec
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[id]; ok {
		out := rec
		return &out, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateScalars(_ context.Context, id uuid.UUID, scalars Scalars) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Scalars = scalars
	rec.UpdatedAt = time.Now()
	s.records[id] = rec
	return nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Status = StatusPublished
	rec.UpdatedAt = time.Now()
	s.records[id] = rec
	return nil
}
