package content

import (
	"context"

	"github.com/google/uuid"
)

// Store persists draft and published content rows. Implementations enforce at
// most one live draft per record; FindDraftByRecord returns
// sentinel.ErrNotFound when none exists yet.
type Store interface {
	FindDraftByRecord(ctx context.Context, recordID uuid.UUID) (Draft, error)
	SaveDraft(ctx context.Context, draft Draft) error
	SavePublished(ctx context.Context, published Draft) error
	FindPublishedByVersion(ctx context.Context, versionID uuid.UUID) (Draft, error)
}
