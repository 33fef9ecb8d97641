package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"traceport/internal/audit"
	"traceport/internal/content"
	contentservice "traceport/internal/content/service"
	"traceport/internal/delegation"
	"traceport/internal/notify"
	"traceport/internal/permission"
	"traceport/internal/platform/metrics"
	"traceport/internal/record"
	"traceport/internal/schema"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/sentinel"
	platformstrings "traceport/pkg/platform/strings"
)

// Rejection comments need enough substance to be actionable.
const minRejectionCommentLen = 10

// RecordSource is the slice of the passport store this service needs.
type RecordSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*record.Record, error)
}

// Resolver gates grant issuance on the issuer's capability.
type Resolver interface {
	Resolve(ctx context.Context, actor permission.Actor, recordID uuid.UUID, scope *permission.Scope) (permission.CapabilitySet, error)
}

// AuditPublisher receives one event per grant lifecycle step.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Notifier fans submission notifications out to org admins. Fire-and-forget.
type Notifier interface {
	NotifyOrgAdmins(ctx context.Context, orgID uuid.UUID, eventKey string, payload map[string]any)
}

// Service issues and redeems scoped, time-boxed, single-use write grants for
// external contributors.
type Service struct {
	store    delegation.Store
	records  RecordSource
	resolver Resolver
	schemas  *schema.Service
	contents *contentservice.Service

	logger    *slog.Logger
	publisher AuditPublisher
	notifier  Notifier
	metrics   *metrics.Metrics
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
	store delegation.Store,
	records RecordSource,
	resolver Resolver,
	schemas *schema.Service,
	contents *contentservice.Service,
	opts ...Option,
) *Service {
	s := &Service{
		store:    store,
		records:  records,
		resolver: resolver,
		schemas:  schemas,
		contents: contents,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a pending grant. The issuer needs write capability on every
// section the scope touches; a partial editor cannot delegate beyond their
// own reach.
func (s *Service) Issue(
	ctx context.Context,
	actor permission.Actor,
	recordID uuid.UUID,
	scope delegation.Scope,
	mode delegation.Mode,
	fieldAllowlist []string,
	ttl time.Duration,
) (delegation.Grant, error) {
	if mode != delegation.ModeInput && mode != delegation.ModeDeclaration {
		return delegation.Grant{}, dErrors.New(dErrors.CodeBadRequest, "mode must be input or declaration")
	}
	if len(scope.BlockIDs) == 0 && len(scope.LegacySections) == 0 {
		return delegation.Grant{}, dErrors.New(dErrors.CodeBadRequest, "grant scope must not be empty")
	}
	if ttl <= 0 {
		return delegation.Grant{}, dErrors.New(dErrors.CodeBadRequest, "grant ttl must be positive")
	}

	caps, err := s.resolver.Resolve(ctx, actor, recordID, nil)
	if err != nil {
		return delegation.Grant{}, err
	}
	if err := s.ensureScopeWritable(ctx, caps, recordID, scope); err != nil {
		return delegation.Grant{}, err
	}

	now := time.Now()
	grant := delegation.Grant{
		Token:          uuid.NewString(),
		RecordID:       recordID,
		IssuedBy:       actor.ID,
		Scope:          scope,
		FieldAllowlist: platformstrings.DedupeAndTrim(fieldAllowlist),
		Mode:           mode,
		ExpiresAt:      now.Add(ttl),
		Status:         delegation.StatusPending,
		CreatedAt:      now,
	}
	if err := s.store.Save(ctx, grant); err != nil {
		return delegation.Grant{}, dErrors.Wrap(err, dErrors.CodeInternal, "grant save failed")
	}

	if s.metrics != nil {
		s.metrics.GrantsIssued.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		ActorID:  actor.ID.String(),
		Action:   audit.ActionGrantIssued,
		EntityID: recordID.String(),
		After: map[string]any{
			"mode":       string(mode),
			"expires_at": grant.ExpiresAt.Format(time.RFC3339),
		},
	})
	return grant, nil
}

// ensureScopeWritable checks the issuer's capability against every section
// the scope expands to.
func (s *Service) ensureScopeWritable(ctx context.Context, caps permission.CapabilitySet, recordID uuid.UUID, scope delegation.Scope) error {
	if caps.WriteAll {
		return nil
	}
	for _, section := range scope.LegacySections {
		if !caps.CanWriteSection(section) {
			return dErrors.New(dErrors.CodeForbidden, "issuer lacks write capability on section "+section)
		}
	}
	if len(scope.BlockIDs) == 0 {
		return nil
	}
	rec, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "passport lookup failed")
	}
	tpl, err := s.schemas.LatestActive(ctx, rec.Category)
	if err != nil {
		return err
	}
	for _, blockID := range scope.BlockIDs {
		def, ok := tpl.Block(blockID)
		if !ok {
			return dErrors.New(dErrors.CodeBadRequest, "scope references unknown template block")
		}
		if !caps.CanWriteSection(def.Section) && !caps.CanWriteBlock(blockID) {
			return dErrors.New(dErrors.CodeForbidden, "issuer lacks write capability on block "+def.Key)
		}
	}
	return nil
}

// Redeem validates the token and returns the contributor's scoped view of
// the template with current draft values.
func (s *Service) Redeem(ctx context.Context, token string) (delegation.ContributorView, error) {
	grant, err := s.loadLiveGrant(ctx, token)
	if err != nil {
		return delegation.ContributorView{}, err
	}

	view, err := s.buildView(ctx, grant)
	if err != nil {
		return delegation.ContributorView{}, err
	}

	s.emitAudit(ctx, audit.Event{
		ActorID:            "contributor:" + shortToken(token),
		Action:             audit.ActionGrantRedeemed,
		EntityID:           grant.RecordID.String(),
		ComplianceRelevant: true,
	})
	return view, nil
}

// Submit consumes the grant and then applies the contributor's values under
// the grant's scope. Submissions are one-shot: a second submit fails with
// AlreadySubmitted rather than being silently ignored.
func (s *Service) Submit(ctx context.Context, token string, values map[string]any, conf delegation.Confirmation) error {
	grant, err := s.loadLiveGrant(ctx, token)
	if err != nil {
		return err
	}

	if err := validateConfirmation(grant.Mode, conf); err != nil {
		return err
	}

	// MarkSubmitted is the atomic consume step. It runs before any draft
	// write, so a concurrent submit that loses the race never touches the
	// draft. The submitted values survive in the grant's payload either way.
	payload, err := json.Marshal(submissionPayload(values, conf, grant.FieldAllowlist))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "submission encode failed")
	}
	if err := s.store.MarkSubmitted(ctx, token, payload, time.Now()); err != nil {
		if errors.Is(err, sentinel.ErrAlreadySubmitted) {
			return dErrors.New(dErrors.CodeAlreadySubmitted, "grant already submitted")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "grant not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "grant update failed")
	}

	rejected := grant.Mode == delegation.ModeDeclaration && conf.Rejected
	if !rejected {
		scope := &content.WriterScope{
			BlockIDs:       grant.Scope.BlockIDs,
			Sections:       grant.Scope.LegacySections,
			FieldAllowlist: grant.FieldAllowlist,
		}
		if _, err := s.contents.ApplyFieldWrites(ctx, "contributor:"+shortToken(token), grant.RecordID, values, nil, scope); err != nil {
			return err
		}
	}

	if s.metrics != nil {
		s.metrics.GrantsSubmitted.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		ActorID:            "contributor:" + shortToken(token),
		Action:             audit.ActionGrantSubmitted,
		EntityID:           grant.RecordID.String(),
		After:              map[string]any{"rejected": rejected},
		ComplianceRelevant: true,
	})

	if s.notifier != nil {
		if rec, err := s.records.FindByID(ctx, grant.RecordID); err == nil {
			s.notifier.NotifyOrgAdmins(ctx, rec.OrgID, notify.EventGrantSubmitted, map[string]any{
				"record_id": grant.RecordID.String(),
				"mode":      string(grant.Mode),
				"rejected":  rejected,
			})
		}
	}
	return nil
}

func (s *Service) loadLiveGrant(ctx context.Context, token string) (delegation.Grant, error) {
	grant, err := s.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return delegation.Grant{}, dErrors.New(dErrors.CodeNotFound, "grant not found")
		}
		return delegation.Grant{}, dErrors.Wrap(err, dErrors.CodeInternal, "grant lookup failed")
	}
	if grant.Status == delegation.StatusSubmitted {
		return delegation.Grant{}, dErrors.New(dErrors.CodeAlreadySubmitted, "grant already submitted")
	}
	if grant.Expired(time.Now()) {
		return delegation.Grant{}, dErrors.New(dErrors.CodeExpired, "grant expired")
	}
	return grant, nil
}

func (s *Service) buildView(ctx context.Context, grant delegation.Grant) (delegation.ContributorView, error) {
	rec, err := s.records.FindByID(ctx, grant.RecordID)
	if err != nil {
		return delegation.ContributorView{}, dErrors.Wrap(err, dErrors.CodeInternal, "passport lookup failed")
	}
	tpl, err := s.schemas.LatestActive(ctx, rec.Category)
	if err != nil {
		return delegation.ContributorView{}, err
	}
	draft, err := s.contents.GetDraft(ctx, grant.RecordID)
	if err != nil {
		return delegation.ContributorView{}, err
	}

	values := make(map[uuid.UUID]map[string]any)
	for _, b := range draft.Blocks {
		if b.TemplateBound() {
			values[b.TemplateBlockID] = b.Data
		}
	}

	visible := make(map[uuid.UUID]bool, len(grant.Scope.BlockIDs))
	for _, id := range grant.Scope.BlockIDs {
		visible[id] = true
	}
	for _, def := range tpl.BlocksInSections(grant.Scope.LegacySections) {
		visible[def.ID] = true
	}

	allowlisted := func(key string) bool {
		if len(grant.FieldAllowlist) == 0 {
			return true
		}
		for _, k := range grant.FieldAllowlist {
			if k == key {
				return true
			}
		}
		return false
	}

	view := delegation.ContributorView{RecordID: grant.RecordID, Mode: grant.Mode}
	for _, def := range tpl.Blocks {
		if !visible[def.ID] {
			continue
		}
		vb := delegation.ViewBlock{ID: def.ID, Key: def.Key, Section: def.Section}
		for _, field := range tpl.ActiveFields(def) {
			if !allowlisted(field.Key) {
				continue
			}
			vf := delegation.ViewField{
				Key:      field.Key,
				Label:    field.Label,
				Type:     field.Type,
				Required: field.Required,
			}
			if data, ok := values[def.ID]; ok {
				vf.Value = data[field.Key]
			}
			vb.Fields = append(vb.Fields, vf)
		}
		view.Blocks = append(view.Blocks, vb)
	}
	return view, nil
}

func validateConfirmation(mode delegation.Mode, conf delegation.Confirmation) error {
	switch mode {
	case delegation.ModeInput:
		if !conf.Confirmed {
			return dErrors.New(dErrors.CodeValidation, "input submissions require an explicit correctness confirmation")
		}
	case delegation.ModeDeclaration:
		if conf.Confirmed {
			return nil
		}
		if !conf.Rejected {
			return dErrors.New(dErrors.CodeValidation, "declaration submissions require confirmation or a rejection")
		}
		if len(strings.TrimSpace(conf.Comment)) < minRejectionCommentLen {
			return dErrors.Newf(dErrors.CodeValidation, "rejection comments need at least %d characters", minRejectionCommentLen)
		}
	}
	return nil
}

func submissionPayload(values map[string]any, conf delegation.Confirmation, allowlist []string) map[string]any {
	payload := map[string]any{
		"values":    values,
		"confirmed": conf.Confirmed,
	}
	if conf.Rejected {
		payload["rejected"] = true
		payload["comment"] = conf.Comment
	}
	if len(allowlist) > 0 {
		payload["field_allowlist"] = allowlist
	}
	return payload
}

// shortToken trims tokens for logs and audit trails; full tokens are secrets.
func shortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
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
