package delegation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"traceport/pkg/platform/sentinel"
)

// InMemoryStore keeps grants keyed by token.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[string]Grant
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{grants: make(map[string]Grant)}
}

func (s *InMemoryStore) Save(_ context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grant.Token] = grant
	return nil
}

func (s *InMemoryStore) FindByToken(_ context.Context, token string) (Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.grants[token]; ok {
		return g, nil
	}
	return Grant{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) MarkSubmitted(_ context.Context, token string, payload json.RawMessage, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[token]
	if !ok {
		return sentinel.ErrNotFound
	}
	if g.Status == StatusSubmitted {
		return sentinel.ErrAlreadySubmitted
	}
	g.Status = StatusSubmitted
	g.Submission = append(json.RawMessage{}, payload...)
	g.SubmittedAt = &at
	s.grants[token] = g
	return nil
}
