package media

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"traceport/pkg/platform/sentinel"
)

// InMemoryStore keeps draft and version media in maps. Used by tests and as
// the default store when no database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	drafts   map[uuid.UUID]Media
	versions map[uuid.UUID][]VersionMedia
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		drafts:   make(map[uuid.UUID]Media),
		versions: make(map[uuid.UUID][]VersionMedia),
	}
}

func (s *InMemoryStore) Save(_ context.Context, m Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[m.ID] = m
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.drafts[id]; ok {
		return m, nil
	}
	return Media{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByRecord(_ context.Context, recordID uuid.UUID) ([]Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Media
	for _, m := range s.drafts {
		if m.RecordID == recordID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.drafts, id)
	return nil
}

func (s *InMemoryStore) SaveVersionMedia(_ context.Context, items []VersionMedia) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, vm := range items {
		s.versions[vm.VersionID] = append(s.versions[vm.VersionID], vm)
	}
	return nil
}

func (s *InMemoryStore) ListByVersion(_ context.Context, versionID uuid.UUID) ([]VersionMedia, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]VersionMedia, len(s.versions[versionID]))
	copy(out, s.versions[versionID])
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *InMemoryStore) StorageRefInUse(_ context.Context, storageRef string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, items := range s.versions {
		for _, vm := range items {
			if vm.StorageRef == storageRef {
				return true, nil
			}
		}
	}
	return false, nil
}
