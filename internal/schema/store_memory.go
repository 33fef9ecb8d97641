package schema

import (
	"context"
	"sync"

	"traceport/pkg/platform/sentinel"
)

// InMemoryStore keeps templates keyed by canonical category. Intended for
// tests and single-node deployments where the catalog is seeded at boot.
type InMemoryStore struct {
	mu        sync.RWMutex
	templates map[string][]Template
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{templates: make(map[string][]Template)}
}

// Save registers a template version. Callers are expected to pass canonical
// category keys; the service normalizes before lookup either way.
func (s *InMemoryStore) Save(_ context.Context, tpl Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := NormalizeCategory(tpl.Category)
	s.templates[key] = append(s.templates[key], tpl)
	return nil
}

func (s *InMemoryStore) LatestActive(_ context.Context, category string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best Template
	found := false
	for _, tpl := range s.templates[category] {
		if !tpl.Active {
			continue
		}
		if !found || tpl.Version > best.Version {
			best = tpl
			found = true
		}
	}
	if !found {
		return Template{}, sentinel.ErrNotFound
	}
	return best, nil
}
