package permission

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"traceport/internal/audit"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/sentinel"
	platformstrings "traceport/pkg/platform/strings"
)

// AuditPublisher receives one event per binding mutation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// BindingService manages external permission bindings. Unknown roles are
// accepted and stored; they simply resolve to no writable sections.
type BindingService struct {
	bindings BindingStore
	records  RecordSource

	logger    *slog.Logger
	publisher AuditPublisher
}

type BindingOption func(s *BindingService)

func WithLogger(logger *slog.Logger) BindingOption {
	return func(s *BindingService) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) BindingOption {
	return func(s *BindingService) {
		s.publisher = publisher
	}
}

// NewBindingService constructs a BindingService.
func NewBindingService(bindings BindingStore, records RecordSource, opts ...BindingOption) *BindingService {
	s := &BindingService{bindings: bindings, records: records}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create attaches an external role to a record. Only the owning org's writing
// members and the platform operator may manage bindings.
func (s *BindingService) Create(ctx context.Context, actor Actor, binding Binding) (Binding, error) {
	if binding.ActorID == uuid.Nil {
		return Binding{}, dErrors.New(dErrors.CodeBadRequest, "binding actor id is required")
	}
	if binding.Role == "" {
		return Binding{}, dErrors.New(dErrors.CodeBadRequest, "binding role is required")
	}
	if err := s.ensureManager(ctx, actor, binding.RecordID); err != nil {
		return Binding{}, err
	}

	// Nil sections mean role defaults apply, so dedupe must not turn an
	// explicit empty list into nil or vice versa. DedupeAndTrim keeps both.
	binding.Sections = platformstrings.DedupeAndTrim(binding.Sections)

	if err := s.bindings.Save(ctx, binding); err != nil {
		return Binding{}, dErrors.Wrap(err, dErrors.CodeInternal, "binding save failed")
	}

	s.emitAudit(ctx, audit.Event{
		ActorID:  actor.ID.String(),
		Action:   audit.ActionBindingCreated,
		EntityID: binding.RecordID.String(),
		After: map[string]any{
			"external_actor_id": binding.ActorID.String(),
			"role":              string(binding.Role),
		},
	})
	return binding, nil
}

// List returns the record's bindings.
func (s *BindingService) List(ctx context.Context, actor Actor, recordID uuid.UUID) ([]Binding, error) {
	if err := s.ensureManager(ctx, actor, recordID); err != nil {
		return nil, err
	}
	bindings, err := s.bindings.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "binding list failed")
	}
	return bindings, nil
}

func (s *BindingService) ensureManager(ctx context.Context, actor Actor, recordID uuid.UUID) error {
	rec, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "passport lookup failed")
	}
	if actor.Kind == ActorPlatform {
		return nil
	}
	if actor.Kind == ActorOrgMember && actor.OrgID == rec.OrgID && actor.Role != RoleViewer {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "actor cannot manage bindings on this passport")
}

func (s *BindingService) emitAudit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emission failed",
			"action", event.Action,
			"entity_id", event.EntityID,
			"error", err,
		)
	}
}
