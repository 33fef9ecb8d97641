package permission

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"traceport/pkg/platform/sentinel"
)

type bindingKey struct {
	recordID uuid.UUID
	actorID  uuid.UUID
}

// InMemoryBindingStore keeps bindings keyed by (record, actor). A later Save
// for the same pair replaces the earlier binding.
type InMemoryBindingStore struct {
	mu       sync.RWMutex
	bindings map[bindingKey]Binding
}

func NewInMemoryBindingStore() *InMemoryBindingStore {
	return &InMemoryBindingStore{bindings: make(map[bindingKey]Binding)}
}

func (s *InMemoryBindingStore) Save(_ context.Context, binding Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[bindingKey{binding.RecordID, binding.ActorID}] = binding
	return nil
}

func (s *InMemoryBindingStore) Find(_ context.Context, recordID, actorID uuid.UUID) (Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.bindings[bindingKey{recordID, actorID}]; ok {
		return b, nil
	}
	return Binding{}, sentinel.ErrNotFound
}

func (s *InMemoryBindingStore) ListByRecord(_ context.Context, recordID uuid.UUID) ([]Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Binding
	for key, b := range s.bindings {
		if key.recordID == recordID {
			out = append(out, b)
		}
	}
	return out, nil
}
