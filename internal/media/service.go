package media

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"traceport/internal/audit"
	"traceport/internal/permission"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/sentinel"
)

// Resolver gates media mutations on the actor's write capability.
type Resolver interface {
	Resolve(ctx context.Context, actor permission.Actor, recordID uuid.UUID, scope *permission.Scope) (permission.CapabilitySet, error)
}

// AuditPublisher receives one event per media mutation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AttachInput describes a new draft attachment. The storage provider has
// already saved the bytes; StorageRef is its opaque handle.
type AttachInput struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageRef  string
	Role        string
	FieldKey    string
	Position    int
}

// Service records and lists draft media references, and guards deletion
// against storage references frozen into published versions.
type Service struct {
	store    Store
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

// NewService constructs a Service.
func NewService(store Store, resolver Resolver, opts ...Option) *Service {
	s := &Service{store: store, resolver: resolver}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach records a draft attachment reference.
func (s *Service) Attach(ctx context.Context, actor permission.Actor, recordID uuid.UUID, input AttachInput) (Media, error) {
	if strings.TrimSpace(input.StorageRef) == "" {
		return Media{}, dErrors.New(dErrors.CodeBadRequest, "storage reference is required")
	}
	if strings.TrimSpace(input.FileName) == "" {
		return Media{}, dErrors.New(dErrors.CodeBadRequest, "file name is required")
	}
	if err := s.ensureWrite(ctx, actor, recordID); err != nil {
		return Media{}, err
	}

	m := Media{
		ID:          uuid.New(),
		RecordID:    recordID,
		FileName:    input.FileName,
		ContentType: input.ContentType,
		SizeBytes:   input.SizeBytes,
		StorageRef:  input.StorageRef,
		Role:        input.Role,
		FieldKey:    input.FieldKey,
		Position:    input.Position,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Save(ctx, m); err != nil {
		return Media{}, dErrors.Wrap(err, dErrors.CodeInternal, "media save failed")
	}

	s.emitAudit(ctx, audit.Event{
		ActorID:  actor.ID.String(),
		Action:   audit.ActionMediaAttached,
		EntityID: recordID.String(),
		After:    map[string]any{"media_id": m.ID.String(), "file_name": m.FileName},
	})
	return m, nil
}

// List returns the record's draft attachments in position order.
func (s *Service) List(ctx context.Context, actor permission.Actor, recordID uuid.UUID) ([]Media, error) {
	caps, err := s.resolver.Resolve(ctx, actor, recordID, nil)
	if err != nil {
		return nil, err
	}
	if !caps.Read {
		return nil, dErrors.New(dErrors.CodeForbidden, "actor cannot read this passport")
	}
	items, err := s.store.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "media list failed")
	}
	return items, nil
}

// Delete hard-deletes a draft attachment. A storage reference frozen into any
// published version blocks deletion; version immutability wins.
func (s *Service) Delete(ctx context.Context, actor permission.Actor, mediaID uuid.UUID) error {
	m, err := s.store.FindByID(ctx, mediaID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "media not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "media lookup failed")
	}
	if err := s.ensureWrite(ctx, actor, m.RecordID); err != nil {
		return err
	}

	inUse, err := s.store.StorageRefInUse(ctx, m.StorageRef)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "storage ref check failed")
	}
	if inUse {
		return dErrors.Wrap(sentinel.ErrMediaInUse, dErrors.CodeConflict, "storage reference is frozen into a published version")
	}

	if err := s.store.Delete(ctx, mediaID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "media not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "media delete failed")
	}

	s.emitAudit(ctx, audit.Event{
		ActorID:  actor.ID.String(),
		Action:   audit.ActionMediaDeleted,
		EntityID: m.RecordID.String(),
		Before:   map[string]any{"media_id": m.ID.String(), "file_name": m.FileName},
	})
	return nil
}

// ensureWrite hides the record from actors without read visibility and
// refuses readers without write capability.
func (s *Service) ensureWrite(ctx context.Context, actor permission.Actor, recordID uuid.UUID) error {
	caps, err := s.resolver.Resolve(ctx, actor, recordID, nil)
	if err != nil {
		return err
	}
	if !caps.Read {
		return dErrors.New(dErrors.CodeNotFound, "passport not found")
	}
	if !caps.CanWrite() {
		return dErrors.New(dErrors.CodeForbidden, "actor cannot write this passport")
	}
	return nil
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
