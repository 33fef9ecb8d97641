package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"traceport/internal/audit"
	"traceport/internal/content"
	"traceport/internal/media"
	"traceport/internal/notify"
	"traceport/internal/permission"
	"traceport/internal/platform/metrics"
	"traceport/internal/record"
	"traceport/internal/schema"
	"traceport/internal/version"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/sentinel"
)

// RecordStore is the slice of the passport store the publisher needs.
type RecordStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*record.Record, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
}

// ContentStore reads the live draft and freezes published rows.
type ContentStore interface {
	FindDraftByRecord(ctx context.Context, recordID uuid.UUID) (content.Draft, error)
	SavePublished(ctx context.Context, published content.Draft) error
	FindPublishedByVersion(ctx context.Context, versionID uuid.UUID) (content.Draft, error)
}

// MediaStore reads draft media and freezes version media.
type MediaStore interface {
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]media.Media, error)
	SaveVersionMedia(ctx context.Context, items []media.VersionMedia) error
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]media.VersionMedia, error)
}

// Resolver gates publish on full-record write capability.
type Resolver interface {
	Resolve(ctx context.Context, actor permission.Actor, recordID uuid.UUID, scope *permission.Scope) (permission.CapabilitySet, error)
}

// AuditPublisher receives one event per publish.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Notifier fans the publish notification out to org admins.
type Notifier interface {
	NotifyOrgAdmins(ctx context.Context, orgID uuid.UUID, eventKey string, payload map[string]any)
}

// TxRunner wraps the snapshot steps in one unit of work. The SQL runner opens
// a transaction and carries it in the context for the stores; PassthroughRunner
// serves the in-memory stores, where the per-record lock alone gives the
// required serialization.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PassthroughRunner executes the unit of work directly.
type PassthroughRunner struct{}

func (PassthroughRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Snapshot is one published version with its frozen content and media.
type Snapshot struct {
	Version version.Version
	Blocks  []content.Block
	Media   []media.VersionMedia
}

// Service creates immutable publish snapshots.
type Service struct {
	versions version.Store
	records  RecordStore
	contents ContentStore
	medias   MediaStore
	schemas  *schema.Service
	resolver Resolver
	runner   TxRunner

	logger    *slog.Logger
	publisher AuditPublisher
	notifier  Notifier
	metrics   *metrics.Metrics

	// Per-record locks serialize concurrent publishes on one record so the
	// max+1 computation stays consistent. Cross-record publishes run freely.
	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
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

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(
	versions version.Store,
	records RecordStore,
	contents ContentStore,
	medias MediaStore,
	schemas *schema.Service,
	resolver Resolver,
	runner TxRunner,
	opts ...Option,
) *Service {
	s := &Service{
		versions: versions,
		records:  records,
		contents: contents,
		medias:   medias,
		schemas:  schemas,
		resolver: resolver,
		runner:   runner,
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) recordLock(recordID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if mu, ok := s.locks[recordID]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	s.locks[recordID] = mu
	return mu
}

// Publish creates the next version of a passport as one atomic unit of work:
// version row, frozen media copies, frozen content row, and the one-way
// DRAFT to PUBLISHED flip. The draft itself stays untouched and editable.
func (s *Service) Publish(ctx context.Context, actor permission.Actor, recordID uuid.UUID) (version.Version, error) {
	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObservePublish(start)
	}

	caps, err := s.resolver.Resolve(ctx, actor, recordID, nil)
	if err != nil {
		return version.Version{}, err
	}
	if !caps.WriteAll {
		return version.Version{}, dErrors.New(dErrors.CodeForbidden, "publish requires full-record write capability")
	}

	rec, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		return version.Version{}, dErrors.Wrap(err, dErrors.CodeInternal, "passport lookup failed")
	}
	if strings.TrimSpace(rec.Scalars.Name) == "" {
		return version.Version{}, dErrors.New(dErrors.CodeValidation, "passport name is required before publishing")
	}
	if _, err := s.schemas.LatestActive(ctx, rec.Category); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return version.Version{}, dErrors.New(dErrors.CodeValidation, "no active template for category "+rec.Category)
		}
		return version.Version{}, err
	}

	mu := s.recordLock(recordID)
	mu.Lock()
	defer mu.Unlock()

	var created version.Version
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		max, err := s.versions.MaxNumber(ctx, recordID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "version lookup failed")
		}
		next := max + 1
		now := time.Now()

		// Both reads ride the transaction's single connection, so they must
		// run one after the other.
		var draft content.Draft
		switch d, err := s.contents.FindDraftByRecord(ctx, recordID); {
		case err == nil:
			draft = d
		case !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "draft lookup failed")
		}
		items, err := s.medias.ListByRecord(ctx, recordID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "media lookup failed")
		}

		v := version.Version{
			ID:         uuid.New(),
			RecordID:   recordID,
			Number:     next,
			Scalars:    rec.Scalars,
			PublicPath: version.PublicPath(recordID, next),
			CreatedBy:  actor.ID,
			CreatedAt:  now,
		}
		if err := s.versions.Save(ctx, v); err != nil {
			if errors.Is(err, sentinel.ErrVersionConflict) {
				if s.metrics != nil {
					s.metrics.PublishConflicts.Inc()
				}
				return dErrors.New(dErrors.CodeVersionConflict, "a concurrent publish won this version number")
			}
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "version save failed")
		}

		if len(items) > 0 {
			if err := s.medias.SaveVersionMedia(ctx, media.CopyForVersion(items, v.ID, now)); err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "version media save failed")
			}
		}

		frozen := content.Draft{
			ID:          uuid.New(),
			RecordID:    recordID,
			Blocks:      draft.Clone().Blocks,
			IsPublished: true,
			VersionID:   &v.ID,
			UpdatedAt:   now,
		}
		if err := s.contents.SavePublished(ctx, frozen); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "published content save failed")
		}

		if err := s.records.MarkPublished(ctx, recordID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "status flip failed")
		}

		created = v
		return nil
	})
	if err != nil {
		return version.Version{}, err
	}

	if s.metrics != nil {
		s.metrics.VersionsCreated.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		ActorID:  actor.ID.String(),
		Action:   audit.ActionPublished,
		EntityID: recordID.String(),
		After: map[string]any{
			"version":     created.Number,
			"public_path": created.PublicPath,
		},
		ComplianceRelevant: true,
	})
	if s.notifier != nil {
		s.notifier.NotifyOrgAdmins(ctx, rec.OrgID, notify.EventVersionPublished, map[string]any{
			"record_id":   recordID.String(),
			"version":     created.Number,
			"public_path": created.PublicPath,
		})
	}
	return created, nil
}

// GetVersion returns a published snapshot by its public number. This is the
// public read path; it requires no actor.
func (s *Service) GetVersion(ctx context.Context, recordID uuid.UUID, number int) (Snapshot, error) {
	if number < 1 {
		return Snapshot{}, dErrors.New(dErrors.CodeBadRequest, "version numbers start at 1")
	}
	v, err := s.versions.FindByNumber(ctx, recordID, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Snapshot{}, dErrors.New(dErrors.CodeNotFound, "version not found")
		}
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "version lookup failed")
	}

	snap := Snapshot{Version: v}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		row, err := s.contents.FindPublishedByVersion(gctx, v.ID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "published content lookup failed")
		}
		snap.Blocks = row.Blocks
		return nil
	})
	g.Go(func() error {
		items, err := s.medias.ListByVersion(gctx, v.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "version media lookup failed")
		}
		snap.Media = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// ListVersions returns the record's versions in ascending number order.
func (s *Service) ListVersions(ctx context.Context, recordID uuid.UUID) ([]version.Version, error) {
	if _, err := s.records.FindByID(ctx, recordID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "passport lookup failed")
	}
	versions, err := s.versions.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "version list failed")
	}
	return versions, nil
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
