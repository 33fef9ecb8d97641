package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"traceport/internal/audit"
	"traceport/internal/content"
	"traceport/internal/platform/metrics"
	"traceport/internal/record"
	"traceport/internal/schema"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/sentinel"
)

// RecordStore is the slice of the passport store the content service needs.
type RecordStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*record.Record, error)
	UpdateScalars(ctx context.Context, id uuid.UUID, scalars record.Scalars) error
}

// AuditPublisher receives one event per applied mutation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner wraps the draft save and the scalar sync in one unit of work. The
// SQL runner opens a transaction and carries it in the context for the
// stores; PassthroughRunner serves the in-memory stores, where the per-record
// lock alone gives the required serialization.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PassthroughRunner executes the unit of work directly.
type PassthroughRunner struct{}

func (PassthroughRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service owns the single mutable draft per passport and the merge algorithm
// reconciling free-form and template-bound blocks. Permission gating happens
// in callers; this service enforces writer scope, which is a narrower notion.
type Service struct {
	store   content.Store
	records RecordStore
	schemas *schema.Service
	runner  TxRunner

	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *metrics.Metrics

	// Per-record locks linearize draft writes so concurrent calls never tear
	// individual field updates. Cross-record writes stay concurrent.
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner TxRunner) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

// New constructs a Service.
func New(store content.Store, records RecordStore, schemas *schema.Service, opts ...Option) *Service {
	s := &Service{
		store:   store,
		records: records,
		schemas: schemas,
		runner:  PassthroughRunner{},
		locks:   make(map[uuid.UUID]*sync.Mutex),
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

// GetDraft returns the live draft, or an empty unsaved draft when the record
// has no content yet.
func (s *Service) GetDraft(ctx context.Context, recordID uuid.UUID) (content.Draft, error) {
	if _, err := s.records.FindByID(ctx, recordID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return content.Draft{}, dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
		return content.Draft{}, dErrors.Wrap(err, dErrors.CodeInternal, "passport lookup failed")
	}
	draft, err := s.store.FindDraftByRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return content.Draft{ID: uuid.New(), RecordID: recordID}, nil
		}
		return content.Draft{}, dErrors.Wrap(err, dErrors.CodeInternal, "draft lookup failed")
	}
	return draft, nil
}

// ApplyFieldWrites merges a field write set into the record's draft.
//
// Free-form blocks pass through untouched. For every template block
// definition, a candidate is built from the writes restricted to fields
// defined on that block and covered by the writer scope; it is field-merged
// into an existing template-bound block or inserted. Deprecated fields are
// excluded from the merged output. Out-of-scope keys are dropped and logged,
// never applied and never fatal. The canonical column alias table is
// consulted once, after the merge.
//
// fieldInstances, when non-empty, restricts the write set to those keys
// before anything else is considered.
func (s *Service) ApplyFieldWrites(
	ctx context.Context,
	actorID string,
	recordID uuid.UUID,
	writes map[string]any,
	fieldInstances []string,
	scope *content.WriterScope,
) (content.Draft, error) {
	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveWrite(start)
	}

	mu := s.recordLock(recordID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return content.Draft{}, dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
		return content.Draft{}, dErrors.Wrap(err, dErrors.CodeInternal, "passport lookup failed")
	}

	tpl, err := s.schemas.LatestActive(ctx, rec.Category)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return content.Draft{}, dErrors.New(dErrors.CodeTemplateNotFound, "no active template for category "+rec.Category)
		}
		return content.Draft{}, err
	}

	draft, err := s.store.FindDraftByRecord(ctx, recordID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return content.Draft{}, dErrors.Wrap(err, dErrors.CodeInternal, "draft lookup failed")
		}
		draft = content.Draft{ID: uuid.New(), RecordID: recordID}
	}

	effective := writes
	if len(fieldInstances) > 0 {
		effective = make(map[string]any, len(fieldInstances))
		for _, key := range fieldInstances {
			if v, ok := writes[key]; ok {
				effective[key] = v
			}
		}
	}

	freeform, existing := partitionBlocks(draft.Blocks)
	allowedBlocks := expandScope(tpl, scope)

	applied := make(map[string]any)
	var merged []content.Block
	for _, def := range tpl.Blocks {
		blockAllowed := allowedBlocks == nil || allowedBlocks[def.ID]

		candidate := make(map[string]any)
		for _, field := range tpl.ActiveFields(def) {
			value, ok := effective[field.Key]
			if !ok {
				continue
			}
			if !blockAllowed || (scope != nil && !scope.AllowsField(field.Key)) {
				s.logRejectedWrite(ctx, actorID, recordID, def.Key, field.Key)
				continue
			}
			candidate[field.Key] = value
			applied[field.Key] = value
		}

		prev, exists := existing[def.ID]
		if !exists {
			if len(candidate) == 0 {
				continue
			}
			merged = append(merged, content.Block{
				ID:              uuid.New(),
				Order:           def.Order,
				TemplateBlockID: def.ID,
				Data:            pruneDeprecated(tpl, def, candidate),
			})
			continue
		}
		delete(existing, def.ID)

		// Field-level merge: incoming values overwrite only their own keys so
		// a narrow contributor never clobbers a full editor's other fields.
		data := make(map[string]any, len(prev.Data)+len(candidate))
		for k, v := range prev.Data {
			data[k] = v
		}
		for k, v := range candidate {
			data[k] = v
		}
		prev.Order = def.Order
		prev.Data = pruneDeprecated(tpl, def, data)
		merged = append(merged, prev)
	}

	// Template-bound blocks whose definition vanished from the active
	// template are carried unchanged; historical shape is not ours to drop.
	for _, orphan := range existing {
		merged = append(merged, orphan)
	}

	draft.Blocks = append(freeform, merged...)
	draft.UpdatedAt = time.Now()

	syncSource := effective
	if scope != nil {
		syncSource = applied
	}
	scalars, scalarsChanged := content.SyncCanonicalColumns(rec.Scalars, syncSource)

	// Draft save and scalar sync succeed or fail together.
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.SaveDraft(ctx, draft); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "draft save failed")
		}
		if !scalarsChanged {
			return nil
		}
		if err := s.records.UpdateScalars(ctx, recordID, scalars); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "scalar sync failed")
		}
		return nil
	})
	if err != nil {
		return content.Draft{}, err
	}

	if s.metrics != nil {
		s.metrics.DraftWrites.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		ActorID:  actorID,
		Action:   audit.ActionFieldsWritten,
		EntityID: recordID.String(),
		After:    applied,
	})

	return draft, nil
}

// GetPublished returns the frozen content row for a version.
func (s *Service) GetPublished(ctx context.Context, versionID uuid.UUID) (content.Draft, error) {
	row, err := s.store.FindPublishedByVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return content.Draft{}, dErrors.New(dErrors.CodeNotFound, "published content not found")
		}
		return content.Draft{}, dErrors.Wrap(err, dErrors.CodeInternal, "published content lookup failed")
	}
	return row, nil
}

func partitionBlocks(blocks []content.Block) ([]content.Block, map[uuid.UUID]content.Block) {
	var freeform []content.Block
	templateBound := make(map[uuid.UUID]content.Block)
	for _, b := range blocks {
		if b.TemplateBound() {
			templateBound[b.TemplateBlockID] = b
		} else {
			freeform = append(freeform, b)
		}
	}
	return freeform, templateBound
}

// expandScope maps a writer scope to the set of writable block ids. A nil
// return means unrestricted.
func expandScope(tpl schema.Template, scope *content.WriterScope) map[uuid.UUID]bool {
	if scope == nil {
		return nil
	}
	allowed := make(map[uuid.UUID]bool, len(scope.BlockIDs))
	for _, id := range scope.BlockIDs {
		allowed[id] = true
	}
	for _, def := range tpl.BlocksInSections(scope.Sections) {
		allowed[def.ID] = true
	}
	return allowed
}

func pruneDeprecated(tpl schema.Template, def schema.BlockDefinition, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		if field, ok := def.Field(key); ok && field.DeprecatedAsOf(tpl.Version) {
			continue
		}
		out[key] = value
	}
	return out
}

func (s *Service) logRejectedWrite(ctx context.Context, actorID string, recordID uuid.UUID, blockKey, fieldKey string) {
	if s.metrics != nil {
		s.metrics.RejectedWrites.Inc()
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "rejected out-of-scope field write",
			"actor_id", actorID,
			"record_id", recordID.String(),
			"block", blockKey,
			"field", fieldKey,
		)
	}
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
