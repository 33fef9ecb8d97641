package permission

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"traceport/internal/record"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/sentinel"
)

// RecordSource is the slice of the record store the resolver needs.
type RecordSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*record.Record, error)
}

// BindingStore persists external permission bindings per record.
type BindingStore interface {
	Save(ctx context.Context, binding Binding) error
	Find(ctx context.Context, recordID, actorID uuid.UUID) (Binding, error)
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]Binding, error)
}

// GrantView is the resolver's read-only view of a contributor grant. The
// delegation package adapts its own grant model to this to keep the resolver
// free of delegation internals.
type GrantView struct {
	RecordID uuid.UUID
	Sections []string
	BlockIDs []uuid.UUID
}

// GrantSource looks up a live (pending, unexpired) grant by token. Expired or
// consumed grants are reported as sentinel.ErrNotFound; the delegation
// service surfaces the precise state on its own endpoints.
type GrantSource interface {
	FindActiveByToken(ctx context.Context, token string) (GrantView, error)
}

// Resolver computes effective capability sets. Resolution is a pure function
// over current binding/membership/grant state: callers re-resolve per
// operation instead of caching across requests.
type Resolver struct {
	records  RecordSource
	bindings BindingStore
	grants   GrantSource
}

func NewResolver(records RecordSource, bindings BindingStore, grants GrantSource) *Resolver {
	return &Resolver{records: records, bindings: bindings, grants: grants}
}

// Resolve evaluates the ordered rule list against the actor and record. "No
// access" is a denied CapabilitySet with a nil error; an error is returned
// only for malformed input or infrastructure failure. An unknown record is
// CodeNotFound, distinct from forbidden, so transport can collapse the two
// for non-privileged callers without the core losing the distinction.
func (r *Resolver) Resolve(ctx context.Context, actor Actor, recordID uuid.UUID, scope *Scope) (CapabilitySet, error) {
	rec, err := r.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return CapabilitySet{}, dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
		return CapabilitySet{}, dErrors.Wrap(err, dErrors.CodeInternal, "passport lookup failed")
	}

	// First matching rule wins; no fallthrough once an actor kind matches.
	switch actor.Kind {
	case ActorPlatform:
		return CapabilitySet{Read: true, WriteAll: true}, nil

	case ActorOrgMember:
		if actor.OrgID != rec.OrgID {
			return CapabilitySet{}, nil
		}
		if actor.Role == RoleViewer {
			return CapabilitySet{Read: true}, nil
		}
		return CapabilitySet{Read: true, WriteAll: true}, nil

	case ActorExternal:
		binding, err := r.bindings.Find(ctx, recordID, actor.ID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return CapabilitySet{}, nil
			}
			return CapabilitySet{}, dErrors.Wrap(err, dErrors.CodeInternal, "binding lookup failed")
		}
		sections := binding.Sections
		if sections == nil {
			sections = DefaultSections(binding.Role)
		}
		caps := CapabilitySet{Read: true, WritableSections: sections}
		return narrowToScope(caps, scope), nil

	case ActorContributor:
		if r.grants == nil || actor.Token == "" {
			return CapabilitySet{}, nil
		}
		grant, err := r.grants.FindActiveByToken(ctx, actor.Token)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return CapabilitySet{}, nil
			}
			return CapabilitySet{}, dErrors.Wrap(err, dErrors.CodeInternal, "grant lookup failed")
		}
		if grant.RecordID != recordID {
			return CapabilitySet{}, nil
		}
		caps := CapabilitySet{Read: true, WritableSections: grant.Sections, WritableBlocks: grant.BlockIDs}
		return narrowToScope(caps, scope), nil
	}

	return CapabilitySet{}, nil
}

// narrowToScope drops write capability when a section scope is requested and
// the capability set does not cover it. Field-level scoping happens in the
// content layer where field→block mapping lives.
func narrowToScope(caps CapabilitySet, scope *Scope) CapabilitySet {
	if scope == nil || scope.Section == "" || caps.WriteAll {
		return caps
	}
	if caps.CanWriteSection(scope.Section) {
		return CapabilitySet{Read: caps.Read, WritableSections: []string{scope.Section}}
	}
	return CapabilitySet{Read: caps.Read}
}
