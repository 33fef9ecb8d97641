package version

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"traceport/pkg/platform/sentinel"
)

type versionKey struct {
	recordID uuid.UUID
	number   int
}

// InMemoryStore keeps versions keyed by (record, number), which makes the
// uniqueness constraint structural.
type InMemoryStore struct {
	mu       sync.RWMutex
	versions map[versionKey]Version
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{versions: make(map[versionKey]Version)}
}

func (s *InMemoryStore) Save(_ context.Context, v Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := versionKey{v.RecordID, v.Number}
	if _, exists := s.versions[key]; exists {
		return sentinel.ErrVersionConflict
	}
	s.versions[key] = v
	return nil
}

func (s *InMemoryStore) MaxNumber(_ context.Context, recordID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for key := range s.versions {
		if key.recordID == recordID && key.number > max {
			max = key.number
		}
	}
	return max, nil
}

func (s *InMemoryStore) FindByNumber(_ context.Context, recordID uuid.UUID, number int) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.versions[versionKey{recordID, number}]; ok {
		return v, nil
	}
	return Version{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByRecord(_ context.Context, recordID uuid.UUID) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Version
	for key, v := range s.versions {
		if key.recordID == recordID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}
