package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"traceport/internal/audit"
	"traceport/internal/content"
	contentservice "traceport/internal/content/service"
	"traceport/internal/delegation"
	"traceport/internal/notify"
	"traceport/internal/permission"
	"traceport/internal/record"
	"traceport/internal/schema"
	dErrors "traceport/pkg/domain-errors"
)

type DelegationServiceSuite struct {
	suite.Suite
	ctx context.Context

	grants     *delegation.InMemoryStore
	records    *record.InMemoryStore
	contents   *content.InMemoryStore
	bindings   *permission.InMemoryBindingStore
	auditStore *audit.InMemoryStore
	sink       *notify.MemorySink

	contentSvc *contentservice.Service
	svc        *Service

	owner   permission.Actor
	viewer  permission.Actor
	adminID uuid.UUID
	rec     *record.Record

	materialsBlock uuid.UUID
	generalBlock   uuid.UUID
}

func TestDelegationServiceSuite(t *testing.T) {
	suite.Run(t, new(DelegationServiceSuite))
}

func (s *DelegationServiceSuite) SetupTest() {
	s.ctx = context.Background()

	s.grants = delegation.NewInMemoryStore()
	s.records = record.NewInMemoryStore()
	s.contents = content.NewInMemoryStore()
	s.bindings = permission.NewInMemoryBindingStore()
	s.auditStore = audit.NewInMemoryStore()
	s.sink = notify.NewMemorySink()

	s.materialsBlock = uuid.New()
	s.generalBlock = uuid.New()

	schemaStore := schema.NewInMemoryStore()
	s.Require().NoError(schemaStore.Save(s.ctx, schema.Template{
		ID:       uuid.New(),
		Category: "furniture",
		Version:  1,
		Active:   true,
		Blocks: []schema.BlockDefinition{
			{
				ID:      s.generalBlock,
				Key:     "general",
				Section: "general",
				Order:   1,
				Fields: []schema.FieldDefinition{
					{Key: "name", Label: "Name", Type: schema.FieldTypeText, Required: true},
					{Key: "care", Label: "Care", Type: schema.FieldTypeText},
				},
			},
			{
				ID:      s.materialsBlock,
				Key:     "materials",
				Section: "materials",
				Order:   2,
				Fields: []schema.FieldDefinition{
					{Key: "material", Label: "Material", Type: schema.FieldTypeText, Required: true},
					{Key: "certification", Label: "Certification", Type: schema.FieldTypeText},
				},
			},
		},
	}))
	schemas := schema.NewService(schemaStore)

	orgID := uuid.New()
	s.adminID = uuid.New()
	s.owner = permission.Actor{Kind: permission.ActorOrgMember, ID: uuid.New(), OrgID: orgID, Role: permission.RoleOwner}
	s.viewer = permission.Actor{Kind: permission.ActorOrgMember, ID: uuid.New(), OrgID: orgID, Role: permission.RoleViewer}

	s.rec = &record.Record{
		ID:       uuid.New(),
		OrgID:    orgID,
		Category: "furniture",
		Scalars:  record.Scalars{Name: "Chair"},
		Status:   record.StatusDraft,
	}
	s.Require().NoError(s.records.Save(s.ctx, s.rec))

	publisher := audit.NewPublisher(s.auditStore)
	resolver := permission.NewResolver(s.records, s.bindings, delegation.NewGrantSource(s.grants))
	notifier := notify.NewNotifier(s.sink, &notify.StaticDirectory{
		Admins: map[uuid.UUID][]uuid.UUID{orgID: {s.adminID}},
	}, nil)

	s.contentSvc = contentservice.New(s.contents, s.records, schemas,
		contentservice.WithAuditPublisher(publisher),
	)
	s.svc = New(s.grants, s.records, resolver, schemas, s.contentSvc,
		WithAuditPublisher(publisher),
		WithNotifier(notifier),
	)
}

func (s *DelegationServiceSuite) issueMaterialsGrant(mode delegation.Mode, allowlist []string) delegation.Grant {
	grant, err := s.svc.Issue(s.ctx, s.owner, s.rec.ID,
		delegation.Scope{BlockIDs: []uuid.UUID{s.materialsBlock}},
		mode, allowlist, 14*24*time.Hour,
	)
	s.Require().NoError(err)
	return grant
}

func (s *DelegationServiceSuite) TestIssue() {
	s.Run("owner issues a pending grant", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)

		s.NotEmpty(grant.Token)
		s.Equal(delegation.StatusPending, grant.Status)
		s.Equal(s.rec.ID, grant.RecordID)
		s.Equal(s.owner.ID, grant.IssuedBy)
		s.WithinDuration(time.Now().Add(14*24*time.Hour), grant.ExpiresAt, time.Minute)

		events := s.eventsFor(audit.ActionGrantIssued)
		s.Require().Len(events, 1)
		s.False(events[0].ComplianceRelevant)
	})

	s.Run("viewer cannot issue", func() {
		_, err := s.svc.Issue(s.ctx, s.viewer, s.rec.ID,
			delegation.Scope{LegacySections: []string{"materials"}},
			delegation.ModeInput, nil, time.Hour,
		)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown record is not found", func() {
		_, err := s.svc.Issue(s.ctx, s.owner, uuid.New(),
			delegation.Scope{LegacySections: []string{"materials"}},
			delegation.ModeInput, nil, time.Hour,
		)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty scope is rejected", func() {
		_, err := s.svc.Issue(s.ctx, s.owner, s.rec.ID, delegation.Scope{}, delegation.ModeInput, nil, time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown mode is rejected", func() {
		_, err := s.svc.Issue(s.ctx, s.owner, s.rec.ID,
			delegation.Scope{LegacySections: []string{"materials"}},
			delegation.Mode("review"), nil, time.Hour,
		)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("scope referencing an unknown block is rejected", func() {
		_, err := s.svc.Issue(s.ctx, s.owner, s.rec.ID,
			delegation.Scope{BlockIDs: []uuid.UUID{uuid.New()}},
			delegation.ModeInput, nil, time.Hour,
		)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *DelegationServiceSuite) TestRedeem() {
	s.Run("view is limited to the granted block with draft values", func() {
		_, err := s.contentSvc.ApplyFieldWrites(s.ctx, s.owner.ID.String(), s.rec.ID,
			map[string]any{"material": "Oak", "name": "Chair"}, nil, nil)
		s.Require().NoError(err)

		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		view, err := s.svc.Redeem(s.ctx, grant.Token)
		s.Require().NoError(err)

		s.Equal(s.rec.ID, view.RecordID)
		s.Equal(delegation.ModeInput, view.Mode)
		s.Require().Len(view.Blocks, 1)
		s.Equal("materials", view.Blocks[0].Key)
		s.Require().Len(view.Blocks[0].Fields, 2)
		s.Equal("material", view.Blocks[0].Fields[0].Key)
		s.Equal("Oak", view.Blocks[0].Fields[0].Value)
		s.Nil(view.Blocks[0].Fields[1].Value)

		events := s.eventsFor(audit.ActionGrantRedeemed)
		s.Require().Len(events, 1)
		s.True(events[0].ComplianceRelevant)
	})

	s.Run("field allowlist narrows the view", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, []string{"material"})
		view, err := s.svc.Redeem(s.ctx, grant.Token)
		s.Require().NoError(err)

		s.Require().Len(view.Blocks, 1)
		s.Require().Len(view.Blocks[0].Fields, 1)
		s.Equal("material", view.Blocks[0].Fields[0].Key)
	})

	s.Run("legacy section scope expands to blocks", func() {
		grant, err := s.svc.Issue(s.ctx, s.owner, s.rec.ID,
			delegation.Scope{LegacySections: []string{"general"}},
			delegation.ModeInput, nil, time.Hour,
		)
		s.Require().NoError(err)

		view, err := s.svc.Redeem(s.ctx, grant.Token)
		s.Require().NoError(err)
		s.Require().Len(view.Blocks, 1)
		s.Equal("general", view.Blocks[0].Key)
	})

	s.Run("unknown token is not found", func() {
		_, err := s.svc.Redeem(s.ctx, uuid.NewString())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("expired grant reads as expired, not missing", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		grant.ExpiresAt = time.Now().Add(-time.Minute)
		s.Require().NoError(s.grants.Save(s.ctx, grant))

		_, err := s.svc.Redeem(s.ctx, grant.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})
}

func (s *DelegationServiceSuite) TestSubmit() {
	s.Run("input submission applies values and consumes the grant", func() {
		_, err := s.contentSvc.ApplyFieldWrites(s.ctx, s.owner.ID.String(), s.rec.ID,
			map[string]any{"material": "Oak"}, nil, nil)
		s.Require().NoError(err)

		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		err = s.svc.Submit(s.ctx, grant.Token,
			map[string]any{"material": "Recycled Oak"},
			delegation.Confirmation{Confirmed: true},
		)
		s.Require().NoError(err)

		stored, err := s.grants.FindByToken(s.ctx, grant.Token)
		s.Require().NoError(err)
		s.Equal(delegation.StatusSubmitted, stored.Status)
		s.NotNil(stored.SubmittedAt)
		s.NotEmpty(stored.Submission)

		draft, err := s.contentSvc.GetDraft(s.ctx, s.rec.ID)
		s.Require().NoError(err)
		s.Equal("Recycled Oak", s.blockData(draft, s.materialsBlock)["material"])

		events := s.eventsFor(audit.ActionGrantSubmitted)
		s.Require().Len(events, 1)
		s.True(events[0].ComplianceRelevant)

		s.Require().Len(s.sink.Events, 1)
		s.Equal(s.adminID, s.sink.Events[0].UserID)
		s.Equal(notify.EventGrantSubmitted, s.sink.Events[0].EventKey)
	})

	s.Run("second submit fails already submitted", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		conf := delegation.Confirmation{Confirmed: true}
		s.Require().NoError(s.svc.Submit(s.ctx, grant.Token, map[string]any{"material": "Pine"}, conf))

		err := s.svc.Submit(s.ctx, grant.Token, map[string]any{"material": "Birch"}, conf)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadySubmitted))
	})

	s.Run("concurrent submits apply exactly one write set", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		conf := delegation.Confirmation{Confirmed: true}

		values := []map[string]any{
			{"material": "Oak"},
			{"material": "Plastic"},
		}
		errs := make([]error, len(values))
		var wg sync.WaitGroup
		for i := range values {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.svc.Submit(s.ctx, grant.Token, values[i], conf)
			}()
		}
		wg.Wait()

		winner := -1
		for i, err := range errs {
			if err == nil {
				s.Require().Equal(-1, winner, "only one submit may succeed")
				winner = i
				continue
			}
			s.True(dErrors.HasCode(err, dErrors.CodeAlreadySubmitted))
		}
		s.Require().NotEqual(-1, winner)

		draft, err := s.contentSvc.GetDraft(s.ctx, s.rec.ID)
		s.Require().NoError(err)
		s.Equal(values[winner]["material"], s.blockData(draft, s.materialsBlock)["material"],
			"the losing submit must not leave values in the draft")
	})

	s.Run("input submission requires confirmation", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		err := s.svc.Submit(s.ctx, grant.Token, map[string]any{"material": "Pine"}, delegation.Confirmation{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		stored, ferr := s.grants.FindByToken(s.ctx, grant.Token)
		s.Require().NoError(ferr)
		s.Equal(delegation.StatusPending, stored.Status)
	})

	s.Run("out-of-scope values are dropped, not applied", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		err := s.svc.Submit(s.ctx, grant.Token,
			map[string]any{"material": "Pine", "care": "Dry clean"},
			delegation.Confirmation{Confirmed: true},
		)
		s.Require().NoError(err)

		draft, err := s.contentSvc.GetDraft(s.ctx, s.rec.ID)
		s.Require().NoError(err)
		s.Equal("Pine", s.blockData(draft, s.materialsBlock)["material"])
		s.Nil(s.blockData(draft, s.generalBlock))
	})

	s.Run("declaration rejection needs a substantive comment", func() {
		grant := s.issueMaterialsGrant(delegation.ModeDeclaration, nil)
		err := s.svc.Submit(s.ctx, grant.Token, nil, delegation.Confirmation{Rejected: true, Comment: "no"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("declaration rejection consumes the grant without writing", func() {
		grant := s.issueMaterialsGrant(delegation.ModeDeclaration, nil)
		err := s.svc.Submit(s.ctx, grant.Token,
			map[string]any{"material": "Should not land"},
			delegation.Confirmation{Rejected: true, Comment: "certificate does not match the batch"},
		)
		s.Require().NoError(err)

		stored, ferr := s.grants.FindByToken(s.ctx, grant.Token)
		s.Require().NoError(ferr)
		s.Equal(delegation.StatusSubmitted, stored.Status)

		draft, derr := s.contentSvc.GetDraft(s.ctx, s.rec.ID)
		s.Require().NoError(derr)
		s.Nil(s.blockData(draft, s.materialsBlock))
	})

	s.Run("expired grant cannot be submitted", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		grant.ExpiresAt = time.Now().Add(-time.Minute)
		s.Require().NoError(s.grants.Save(s.ctx, grant))

		err := s.svc.Submit(s.ctx, grant.Token, map[string]any{"material": "Pine"}, delegation.Confirmation{Confirmed: true})
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})
}

func (s *DelegationServiceSuite) TestGrantSource() {
	source := delegation.NewGrantSource(s.grants)

	s.Run("pending unexpired grant is active", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		view, err := source.FindActiveByToken(s.ctx, grant.Token)
		s.Require().NoError(err)
		s.Equal(s.rec.ID, view.RecordID)
		s.Equal([]uuid.UUID{s.materialsBlock}, view.BlockIDs)
	})

	s.Run("submitted grant reads as absent", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		s.Require().NoError(s.svc.Submit(s.ctx, grant.Token, map[string]any{"material": "Pine"}, delegation.Confirmation{Confirmed: true}))

		_, err := source.FindActiveByToken(s.ctx, grant.Token)
		s.Error(err)
	})

	s.Run("resolver grants scoped write to the token holder", func() {
		grant := s.issueMaterialsGrant(delegation.ModeInput, nil)
		resolver := permission.NewResolver(s.records, s.bindings, source)

		caps, err := resolver.Resolve(s.ctx,
			permission.Actor{Kind: permission.ActorContributor, Token: grant.Token},
			s.rec.ID, nil,
		)
		s.Require().NoError(err)
		s.True(caps.Read)
		s.False(caps.WriteAll)
		s.True(caps.CanWriteBlock(s.materialsBlock))
	})
}

func (s *DelegationServiceSuite) eventsFor(action string) []audit.Event {
	var out []audit.Event
	for _, e := range s.auditStore.All() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func (s *DelegationServiceSuite) blockData(draft content.Draft, templateBlockID uuid.UUID) map[string]any {
	for _, b := range draft.Blocks {
		if b.TemplateBlockID == templateBlockID {
			return b.Data
		}
	}
	return nil
}
