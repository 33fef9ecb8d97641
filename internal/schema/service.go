package schema

import (
	"context"
	"errors"
	"strings"

	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/sentinel"
)

// Store resolves the latest active template per canonical category key.
type Store interface {
	LatestActive(ctx context.Context, category string) (Template, error)
}

// categoryAliases maps localized and legacy category labels to canonical keys.
// Lookup is case-insensitive; the canonical key always maps to itself.
var categoryAliases = map[string]string{
	"furniture":   "furniture",
	"moebel":      "furniture",
	"möbel":       "furniture",
	"meubles":     "furniture",
	"textile":     "textile",
	"textiles":    "textile",
	"apparel":     "textile",
	"bekleidung":  "textile",
	"electronics": "electronics",
	"electronic":  "electronics",
	"elektronik":  "electronics",
	"battery":     "battery",
	"batteries":   "battery",
	"batterie":    "battery",
}

// NormalizeCategory maps a raw category label to its canonical key. Unknown
// labels pass through lowercased and trimmed so new categories work without a
// code change.
func NormalizeCategory(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if canonical, ok := categoryAliases[key]; ok {
		return canonical
	}
	return key
}

// Service is the read-only template catalog consumed by the content and
// publish paths.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// LatestActive returns the newest active template for the category, after
// alias normalization.
func (s *Service) LatestActive(ctx context.Context, category string) (Template, error) {
	canonical := NormalizeCategory(category)
	if canonical == "" {
		return Template{}, dErrors.New(dErrors.CodeBadRequest, "category is required")
	}
	tpl, err := s.store.LatestActive(ctx, canonical)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Template{}, dErrors.New(dErrors.CodeNotFound, "no active template for category "+canonical)
		}
		return Template{}, dErrors.Wrap(err, dErrors.CodeInternal, "template lookup failed")
	}
	return tpl, nil
}
