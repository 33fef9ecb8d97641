package permission

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"traceport/internal/record"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/sentinel"
)

type fakeGrantSource struct {
	grants map[string]GrantView
}

func (f *fakeGrantSource) FindActiveByToken(_ context.Context, token string) (GrantView, error) {
	if g, ok := f.grants[token]; ok {
		return g, nil
	}
	return GrantView{}, sentinel.ErrNotFound
}

type ResolverSuite struct {
	suite.Suite
	records  *record.InMemoryStore
	bindings *InMemoryBindingStore
	grants   *fakeGrantSource
	resolver *Resolver

	orgID    uuid.UUID
	recordID uuid.UUID
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.records = record.NewInMemoryStore()
	s.bindings = NewInMemoryBindingStore()
	s.grants = &fakeGrantSource{grants: make(map[string]GrantView)}
	s.resolver = NewResolver(s.records, s.bindings, s.grants)

	s.orgID = uuid.New()
	s.recordID = uuid.New()
	err := s.records.Save(context.Background(), &record.Record{
		ID:        s.recordID,
		OrgID:     s.orgID,
		Category:  "furniture",
		Scalars:   record.Scalars{Name: "Chair"},
		Status:    record.StatusDraft,
		CreatedAt: time.Now(),
	})
	s.Require().NoError(err)
}

func (s *ResolverSuite) TestUnknownRecordIsNotFoundNotForbidden() {
	_, err := s.resolver.Resolve(context.Background(), Actor{Kind: ActorPlatform}, uuid.New(), nil)
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.False(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ResolverSuite) TestPlatformActor() {
	caps, err := s.resolver.Resolve(context.Background(), Actor{Kind: ActorPlatform, ID: uuid.New()}, s.recordID, nil)
	s.NoError(err)
	s.True(caps.Read)
	s.True(caps.WriteAll)
	s.True(caps.CanWriteSection("anything"))
}

func (s *ResolverSuite) TestOrgMembers() {
	ctx := context.Background()

	s.Run("viewer is read-only regardless of scope", func() {
		actor := Actor{Kind: ActorOrgMember, ID: uuid.New(), OrgID: s.orgID, Role: RoleViewer}
		for _, scope := range []*Scope{nil, {Section: "materials"}, {Section: "disposal"}} {
			caps, err := s.resolver.Resolve(ctx, actor, s.recordID, scope)
			s.NoError(err)
			s.True(caps.Read)
			s.False(caps.CanWrite())
		}
	})

	s.Run("owner, admin and member get full write", func() {
		for _, role := range []Role{RoleOwner, RoleAdmin, RoleMember} {
			actor := Actor{Kind: ActorOrgMember, ID: uuid.New(), OrgID: s.orgID, Role: role}
			caps, err := s.resolver.Resolve(ctx, actor, s.recordID, nil)
			s.NoError(err)
			s.True(caps.WriteAll, string(role))
		}
	})

	s.Run("member of a different org is denied", func() {
		actor := Actor{Kind: ActorOrgMember, ID: uuid.New(), OrgID: uuid.New(), Role: RoleOwner}
		caps, err := s.resolver.Resolve(ctx, actor, s.recordID, nil)
		s.NoError(err)
		s.True(caps.Denied())
	})
}

func (s *ResolverSuite) TestExternalBindings() {
	ctx := context.Background()
	actorID := uuid.New()
	actor := Actor{Kind: ActorExternal, ID: actorID}

	s.Run("no binding denies without an error", func() {
		caps, err := s.resolver.Resolve(ctx, actor, s.recordID, nil)
		s.NoError(err)
		s.True(caps.Denied())
	})

	s.Run("explicit sections win over role defaults", func() {
		err := s.bindings.Save(ctx, Binding{
			RecordID: s.recordID,
			ActorID:  actorID,
			Role:     ExternalRoleMaterials,
			Sections: []string{"care"},
		})
		s.Require().NoError(err)

		caps, err := s.resolver.Resolve(ctx, actor, s.recordID, nil)
		s.NoError(err)
		s.True(caps.Read)
		s.True(caps.CanWriteSection("care"))
		s.False(caps.CanWriteSection("materials"))
	})

	s.Run("nil sections fall back to the role default table", func() {
		err := s.bindings.Save(ctx, Binding{RecordID: s.recordID, ActorID: actorID, Role: ExternalRoleDisposal})
		s.Require().NoError(err)

		caps, err := s.resolver.Resolve(ctx, actor, s.recordID, nil)
		s.NoError(err)
		s.True(caps.CanWriteSection("disposal"))
		s.True(caps.CanWriteSection("second_life"))
		s.False(caps.CanWriteSection("materials"))
	})

	s.Run("unspecified and unknown roles grant reads only", func() {
		for _, role := range []ExternalRole{ExternalRoleUnspecified, ExternalRole("repair_shop")} {
			err := s.bindings.Save(ctx, Binding{RecordID: s.recordID, ActorID: actorID, Role: role})
			s.Require().NoError(err)

			caps, err := s.resolver.Resolve(ctx, actor, s.recordID, nil)
			s.NoError(err)
			s.True(caps.Read)
			s.False(caps.CanWrite(), string(role))
		}
	})

	s.Run("scope narrowing strips uncovered sections", func() {
		err := s.bindings.Save(ctx, Binding{RecordID: s.recordID, ActorID: actorID, Role: ExternalRoleMaterials})
		s.Require().NoError(err)

		caps, err := s.resolver.Resolve(ctx, actor, s.recordID, &Scope{Section: "disposal"})
		s.NoError(err)
		s.True(caps.Read)
		s.False(caps.CanWrite())
	})
}

func (s *ResolverSuite) TestContributorGrants() {
	ctx := context.Background()
	blockID := uuid.New()
	s.grants.grants["tok-1"] = GrantView{RecordID: s.recordID, BlockIDs: []uuid.UUID{blockID}}

	s.Run("live grant scopes writes to its blocks", func() {
		caps, err := s.resolver.Resolve(ctx, Actor{Kind: ActorContributor, Token: "tok-1"}, s.recordID, nil)
		s.NoError(err)
		s.True(caps.Read)
		s.True(caps.CanWriteBlock(blockID))
		s.False(caps.CanWriteBlock(uuid.New()))
		s.False(caps.WriteAll)
	})

	s.Run("grant for another record does not carry over", func() {
		otherRecord := uuid.New()
		err := s.records.Save(ctx, &record.Record{ID: otherRecord, OrgID: s.orgID})
		s.Require().NoError(err)

		caps, err := s.resolver.Resolve(ctx, Actor{Kind: ActorContributor, Token: "tok-1"}, otherRecord, nil)
		s.NoError(err)
		s.True(caps.Denied())
	})

	s.Run("unknown token is denied without an error", func() {
		caps, err := s.resolver.Resolve(ctx, Actor{Kind: ActorContributor, Token: "nope"}, s.recordID, nil)
		s.NoError(err)
		s.True(caps.Denied())
	})
}
