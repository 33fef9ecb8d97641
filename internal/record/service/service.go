package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"traceport/internal/audit"
	"traceport/internal/permission"
	"traceport/internal/record"
	"traceport/internal/schema"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/sentinel"
)

// Resolver gates reads on the actor's capability.
type Resolver interface {
	Resolve(ctx context.Context, actor permission.Actor, recordID uuid.UUID, scope *permission.Scope) (permission.CapabilitySet, error)
}

// AuditPublisher receives one event per passport creation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns passport lifecycle outside of content and publishing: creation
// and capability-gated reads.
type Service struct {
	store    record.Store
	resolver Resolver

	logger    *slog.Logger
	publisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// New constructs a Service.
func New(store record.Store, resolver Resolver, opts ...Option) *Service {
	s := &Service{store: store, resolver: resolver}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a passport under the actor's organization. Only org
// members with a writing role may create.
func (s *Service) Create(ctx context.Context, actor permission.Actor, category string, scalars record.Scalars) (*record.Record, error) {
	if actor.Kind != permission.ActorOrgMember || actor.Role == permission.RoleViewer {
		return nil, dErrors.New(dErrors.CodeForbidden, "only organization members can create passports")
	}
	canonical := schema.NormalizeCategory(category)
	if canonical == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "category is required")
	}
	if strings.TrimSpace(scalars.Name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "passport name is required")
	}

	now := time.Now()
	rec := &record.Record{
		ID:        uuid.New(),
		OrgID:     actor.OrgID,
		Category:  canonical,
		Scalars:   scalars,
		Status:    record.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "passport save failed")
	}

	s.emitAudit(ctx, audit.Event{
		ActorID:  actor.ID.String(),
		Action:   audit.ActionPassportCreated,
		EntityID: rec.ID.String(),
		After:    map[string]any{"category": canonical, "name": scalars.Name},
	})
	return rec, nil
}

// Get returns the passport if the actor may read it.
func (s *Service) Get(ctx context.Context, actor permission.Actor, id uuid.UUID) (*record.Record, error) {
	caps, err := s.resolver.Resolve(ctx, actor, id, nil)
	if err != nil {
		return nil, err
	}
	if !caps.Read {
		return nil, dErrors.New(dErrors.CodeForbidden, "actor cannot read this passport")
	}
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "passport lookup failed")
	}
	return rec, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
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
