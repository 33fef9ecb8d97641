package delegation

import (
	"context"
	"time"

	"traceport/internal/permission"
	"traceport/pkg/platform/sentinel"
)

// GrantSource adapts the grant store to the permission resolver's read-only
// view. Expired and consumed grants read as absent here; the delegation
// service reports the precise state on its own endpoints.
type GrantSource struct {
	store Store
}

func NewGrantSource(store Store) *GrantSource {
	return &GrantSource{store: store}
}

func (g *GrantSource) FindActiveByToken(ctx context.Context, token string) (permission.GrantView, error) {
	grant, err := g.store.FindByToken(ctx, token)
	if err != nil {
		return permission.GrantView{}, err
	}
	if grant.Status != StatusPending || grant.Expired(time.Now()) {
		return permission.GrantView{}, sentinel.ErrNotFound
	}
	return permission.GrantView{
		RecordID: grant.RecordID,
		Sections: grant.Scope.LegacySections,
		BlockIDs: grant.Scope.BlockIDs,
	}, nil
}
