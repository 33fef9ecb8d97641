package delegation

import (
	"context"
	"encoding/json"
	"time"
)

// Store persists contributor grants. MarkSubmitted is the one-shot edge: it
// must atomically flip pending → submitted and fail with
// sentinel.ErrAlreadySubmitted on a second attempt.
type Store interface {
	Save(ctx context.Context, grant Grant) error
	FindByToken(ctx context.Context, token string) (Grant, error)
	MarkSubmitted(ctx context.Context, token string, payload json.RawMessage, at time.Time) error
}
