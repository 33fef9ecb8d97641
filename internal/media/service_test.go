package media

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"traceport/internal/audit"
	"traceport/internal/permission"
	"traceport/internal/record"
	dErrors "traceport/pkg/domain-errors"
)

type MediaServiceSuite struct {
	suite.Suite
	ctx context.Context

	store      *InMemoryStore
	records    *record.InMemoryStore
	auditStore *audit.InMemoryStore
	svc        *Service

	owner  permission.Actor
	viewer permission.Actor
	rec    *record.Record
}

func TestMediaServiceSuite(t *testing.T) {
	suite.Run(t, new(MediaServiceSuite))
}

func (s *MediaServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.records = record.NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()

	orgID := uuid.New()
	s.owner = permission.Actor{Kind: permission.ActorOrgMember, ID: uuid.New(), OrgID: orgID, Role: permission.RoleOwner}
	s.viewer = permission.Actor{Kind: permission.ActorOrgMember, ID: uuid.New(), OrgID: orgID, Role: permission.RoleViewer}

	s.rec = &record.Record{ID: uuid.New(), OrgID: orgID, Category: "furniture", Status: record.StatusDraft}
	s.Require().NoError(s.records.Save(s.ctx, s.rec))

	resolver := permission.NewResolver(s.records, permission.NewInMemoryBindingStore(), nil)
	s.svc = NewService(s.store, resolver, WithAuditPublisher(audit.NewPublisher(s.auditStore)))
}

func (s *MediaServiceSuite) attach(ref string) Media {
	m, err := s.svc.Attach(s.ctx, s.owner, s.rec.ID, AttachInput{
		FileName:    "photo.jpg",
		ContentType: "image/jpeg",
		SizeBytes:   1024,
		StorageRef:  ref,
		Role:        "gallery",
	})
	s.Require().NoError(err)
	return m
}

func (s *MediaServiceSuite) TestAttach() {
	s.Run("records the reference and audits", func() {
		m := s.attach("s3://bucket/photo.jpg")

		s.Equal(s.rec.ID, m.RecordID)
		s.NotEqual(uuid.Nil, m.ID)

		items, err := s.svc.List(s.ctx, s.owner, s.rec.ID)
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal("s3://bucket/photo.jpg", items[0].StorageRef)

		events, err := s.auditStore.ListByEntity(s.ctx, s.rec.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionMediaAttached, events[0].Action)
		s.False(events[0].ComplianceRelevant)
	})

	s.Run("viewer cannot attach", func() {
		_, err := s.svc.Attach(s.ctx, s.viewer, s.rec.ID, AttachInput{FileName: "a.pdf", StorageRef: "ref"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing storage ref is rejected", func() {
		_, err := s.svc.Attach(s.ctx, s.owner, s.rec.ID, AttachInput{FileName: "a.pdf"})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown record is not found", func() {
		_, err := s.svc.Attach(s.ctx, s.owner, uuid.New(), AttachInput{FileName: "a.pdf", StorageRef: "ref"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *MediaServiceSuite) TestDelete() {
	s.Run("deletes an unreferenced attachment", func() {
		m := s.attach("s3://bucket/free.jpg")
		s.Require().NoError(s.svc.Delete(s.ctx, s.owner, m.ID))

		items, err := s.svc.List(s.ctx, s.owner, s.rec.ID)
		s.Require().NoError(err)
		s.Empty(items)
	})

	s.Run("refuses when a version holds the storage ref", func() {
		m := s.attach("s3://bucket/frozen.jpg")
		frozen := CopyForVersion([]Media{m}, uuid.New(), time.Now())
		s.Require().NoError(s.store.SaveVersionMedia(s.ctx, frozen))

		err := s.svc.Delete(s.ctx, s.owner, m.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		_, ferr := s.store.FindByID(s.ctx, m.ID)
		s.NoError(ferr)
	})

	s.Run("viewer cannot delete", func() {
		m := s.attach("s3://bucket/guarded.jpg")
		err := s.svc.Delete(s.ctx, s.viewer, m.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("another org's member sees nothing to delete", func() {
		m := s.attach("s3://bucket/hidden.jpg")
		outsider := permission.Actor{Kind: permission.ActorOrgMember, ID: uuid.New(), OrgID: uuid.New(), Role: permission.RoleOwner}
		err := s.svc.Delete(s.ctx, outsider, m.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown media is not found", func() {
		err := s.svc.Delete(s.ctx, s.owner, uuid.New())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *MediaServiceSuite) TestCopyForVersion() {
	m := s.attach("s3://bucket/a.jpg")
	versionID := uuid.New()
	now := time.Now()

	copies := CopyForVersion([]Media{m}, versionID, now)
	s.Require().Len(copies, 1)
	s.Equal(versionID, copies[0].VersionID)
	s.Equal(m.StorageRef, copies[0].StorageRef)
	s.Equal(m.FileName, copies[0].FileName)
	s.NotEqual(m.ID, copies[0].ID)
}
