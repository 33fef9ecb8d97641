package record

import (
	"context"

	"github.com/google/uuid"
)

// Store persists passports. Implementations return sentinel errors; services
// translate them into domain errors at the boundary.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)
	UpdateScalars(ctx context.Context, id uuid.UUID, scalars Scalars) error
	MarkPublished(ctx context.Context, id uuid.UUID) error
}
