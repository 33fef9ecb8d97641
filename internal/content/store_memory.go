package content

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"traceport/pkg/platform/sentinel"
)

// InMemoryStore keeps one live draft per record and frozen published rows per
// version. The one-draft invariant is structural here: the map key is the
// record id.
type InMemoryStore struct {
	mu        sync.RWMutex
	drafts    map[uuid.UUID]Draft
	published map[uuid.UUID]Draft
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		drafts:    make(map[uuid.UUID]Draft),
		published: make(map[uuid.UUID]Draft),
	}
}

func (s *InMemoryStore) FindDraftByRecord(_ context.Context, recordID uuid.UUID) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.drafts[recordID]; ok {
		return d.Clone(), nil
	}
	return Draft{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) SaveDraft(_ context.Context, draft Draft) error {
	if draft.IsPublished {
		return sentinel.ErrConflict
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draft.RecordID] = draft.Clone()
	return nil
}

func (s *InMemoryStore) SavePublished(_ context.Context, published Draft) error {
	if !published.IsPublished || published.VersionID == nil {
		return sentinel.ErrConflict
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.published[*published.VersionID]; exists {
		return sentinel.ErrConflict
	}
	s.published[*published.VersionID] = published.Clone()
	return nil
}

func (s *InMemoryStore) FindPublishedByVersion(_ context.Context, versionID uuid.UUID) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.published[versionID]; ok {
		return d.Clone(), nil
	}
	return Draft{}, sentinel.ErrNotFound
}
