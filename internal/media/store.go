package media

import (
	"context"

	"github.com/google/uuid"
)

// Store persists draft media and frozen version media. StorageRefInUse backs
// the deletion guard: a storage reference held by any version media row makes
// the draft row undeletable.
type Store interface {
	Save(ctx context.Context, m Media) error
	FindByID(ctx context.Context, id uuid.UUID) (Media, error)
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]Media, error)
	Delete(ctx context.Context, id uuid.UUID) error

	SaveVersionMedia(ctx context.Context, items []VersionMedia) error
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]VersionMedia, error)
	StorageRefInUse(ctx context.Context, storageRef string) (bool, error)
}
