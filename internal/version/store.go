package version

import (
	"context"

	"github.com/google/uuid"
)

// Store persists version rows. Save must refuse a duplicate (record, number)
// pair with sentinel.ErrVersionConflict; that uniqueness is what makes the
// max+1 computation safe to retry.
type Store interface {
	Save(ctx context.Context, v Version) error
	MaxNumber(ctx context.Context, recordID uuid.UUID) (int, error)
	FindByNumber(ctx context.Context, recordID uuid.UUID, number int) (Version, error)
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]Version, error)
}
