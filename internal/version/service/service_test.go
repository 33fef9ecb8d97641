package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"traceport/internal/audit"
	"traceport/internal/content"
	contentservice "traceport/internal/content/service"
	"traceport/internal/media"
	"traceport/internal/notify"
	"traceport/internal/permission"
	"traceport/internal/record"
	"traceport/internal/schema"
	"traceport/internal/version"
	dErrors "traceport/pkg/domain-errors"
)

type PublisherSuite struct {
	suite.Suite
	ctx context.Context

	versions   *version.InMemoryStore
	records    *record.InMemoryStore
	contents   *content.InMemoryStore
	medias     *media.InMemoryStore
	auditStore *audit.InMemoryStore
	sink       *notify.MemorySink
	schemas    *schema.Service

	contentSvc *contentservice.Service
	svc        *Service

	owner   permission.Actor
	viewer  permission.Actor
	adminID uuid.UUID
	rec     *record.Record

	materialsBlock uuid.UUID
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.ctx = context.Background()

	s.versions = version.NewInMemoryStore()
	s.records = record.NewInMemoryStore()
	s.contents = content.NewInMemoryStore()
	s.medias = media.NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	s.sink = notify.NewMemorySink()

	s.materialsBlock = uuid.New()
	schemaStore := schema.NewInMemoryStore()
	s.Require().NoError(schemaStore.Save(s.ctx, schema.Template{
		ID:       uuid.New(),
		Category: "furniture",
		Version:  1,
		Active:   true,
		Blocks: []schema.BlockDefinition{
			{
				ID:      s.materialsBlock,
				Key:     "materials",
				Section: "materials",
				Order:   1,
				Fields: []schema.FieldDefinition{
					{Key: "material", Label: "Material", Type: schema.FieldTypeText},
				},
			},
		},
	}))
	s.schemas = schema.NewService(schemaStore)

	orgID := uuid.New()
	s.adminID = uuid.New()
	s.owner = permission.Actor{Kind: permission.ActorOrgMember, ID: uuid.New(), OrgID: orgID, Role: permission.RoleOwner}
	s.viewer = permission.Actor{Kind: permission.ActorOrgMember, ID: uuid.New(), OrgID: orgID, Role: permission.RoleViewer}

	s.rec = &record.Record{
		ID:       uuid.New(),
		OrgID:    orgID,
		Category: "furniture",
		Scalars:  record.Scalars{Name: "Chair", Material: "Oak"},
		Status:   record.StatusDraft,
	}
	s.Require().NoError(s.records.Save(s.ctx, s.rec))

	publisher := audit.NewPublisher(s.auditStore)
	resolver := permission.NewResolver(s.records, permission.NewInMemoryBindingStore(), nil)
	notifier := notify.NewNotifier(s.sink, &notify.StaticDirectory{
		Admins: map[uuid.UUID][]uuid.UUID{orgID: {s.adminID}},
	}, nil)

	s.contentSvc = contentservice.New(s.contents, s.records, s.schemas)
	s.svc = New(s.versions, s.records, s.contents, s.medias, s.schemas, resolver, PassthroughRunner{},
		WithAuditPublisher(publisher),
		WithNotifier(notifier),
	)
}

func (s *PublisherSuite) writeDraft(values map[string]any) {
	_, err := s.contentSvc.ApplyFieldWrites(s.ctx, s.owner.ID.String(), s.rec.ID, values, nil, nil)
	s.Require().NoError(err)
}

func (s *PublisherSuite) TestPublish() {
	s.Run("creates version 1 with frozen content and media", func() {
		s.writeDraft(map[string]any{"material": "Oak"})
		s.Require().NoError(s.medias.Save(s.ctx, media.Media{
			ID:         uuid.New(),
			RecordID:   s.rec.ID,
			FileName:   "photo.jpg",
			StorageRef: "s3://bucket/photo.jpg",
		}))

		v, err := s.svc.Publish(s.ctx, s.owner, s.rec.ID)
		s.Require().NoError(err)

		s.Equal(1, v.Number)
		s.Equal("Chair", v.Scalars.Name)
		s.Equal(version.PublicPath(s.rec.ID, 1), v.PublicPath)
		s.Equal(s.owner.ID, v.CreatedBy)

		rec, err := s.records.FindByID(s.ctx, s.rec.ID)
		s.Require().NoError(err)
		s.Equal(record.StatusPublished, rec.Status)

		snap, err := s.svc.GetVersion(s.ctx, s.rec.ID, 1)
		s.Require().NoError(err)
		s.Require().Len(snap.Blocks, 1)
		s.Equal("Oak", snap.Blocks[0].Data["material"])
		s.Require().Len(snap.Media, 1)
		s.Equal("s3://bucket/photo.jpg", snap.Media[0].StorageRef)

		var published []audit.Event
		for _, e := range s.auditStore.All() {
			if e.Action == audit.ActionPublished {
				published = append(published, e)
			}
		}
		s.Require().Len(published, 1)
		s.True(published[0].ComplianceRelevant)

		s.Require().Len(s.sink.Events, 1)
		s.Equal(notify.EventVersionPublished, s.sink.Events[0].EventKey)
		s.Equal(s.adminID, s.sink.Events[0].UserID)
	})

	s.Run("publishing leaves the draft editable and untouched", func() {
		s.writeDraft(map[string]any{"material": "Oak"})
		before, err := s.contentSvc.GetDraft(s.ctx, s.rec.ID)
		s.Require().NoError(err)

		_, err = s.svc.Publish(s.ctx, s.owner, s.rec.ID)
		s.Require().NoError(err)

		after, err := s.contentSvc.GetDraft(s.ctx, s.rec.ID)
		s.Require().NoError(err)
		s.Equal(before.ID, after.ID)
		s.False(after.IsPublished)
		s.Equal(before.Blocks, after.Blocks)
	})

	s.Run("snapshots are immune to later draft edits", func() {
		s.writeDraft(map[string]any{"material": "Oak"})
		_, err := s.svc.Publish(s.ctx, s.owner, s.rec.ID)
		s.Require().NoError(err)

		s.writeDraft(map[string]any{"material": "Pine"})

		snap, err := s.svc.GetVersion(s.ctx, s.rec.ID, 1)
		s.Require().NoError(err)
		s.Equal("Oak", snap.Blocks[0].Data["material"])
	})

	s.Run("numbers are strictly increasing", func() {
		rec := &record.Record{
			ID: uuid.New(), OrgID: s.owner.OrgID, Category: "furniture",
			Scalars: record.Scalars{Name: "Table"}, Status: record.StatusDraft,
		}
		s.Require().NoError(s.records.Save(s.ctx, rec))

		for want := 1; want <= 3; want++ {
			v, err := s.svc.Publish(s.ctx, s.owner, rec.ID)
			s.Require().NoError(err)
			s.Equal(want, v.Number)
		}
	})

	s.Run("viewer cannot publish", func() {
		_, err := s.svc.Publish(s.ctx, s.viewer, s.rec.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown record is not found", func() {
		_, err := s.svc.Publish(s.ctx, s.owner, uuid.New())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty name fails validation", func() {
		rec := &record.Record{ID: uuid.New(), OrgID: s.owner.OrgID, Category: "furniture", Status: record.StatusDraft}
		s.Require().NoError(s.records.Save(s.ctx, rec))

		_, err := s.svc.Publish(s.ctx, s.owner, rec.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing template fails validation", func() {
		rec := &record.Record{
			ID: uuid.New(), OrgID: s.owner.OrgID, Category: "electronics",
			Scalars: record.Scalars{Name: "Lamp"}, Status: record.StatusDraft,
		}
		s.Require().NoError(s.records.Save(s.ctx, rec))

		_, err := s.svc.Publish(s.ctx, s.owner, rec.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *PublisherSuite) TestConcurrentPublishesStayGapless() {
	s.writeDraft(map[string]any{"material": "Oak"})

	const publishers = 5
	g, ctx := errgroup.WithContext(s.ctx)
	for i := 0; i < publishers; i++ {
		g.Go(func() error {
			_, err := s.svc.Publish(ctx, s.owner, s.rec.ID)
			if dErrors.HasCode(err, dErrors.CodeVersionConflict) {
				return nil
			}
			return err
		})
	}
	s.Require().NoError(g.Wait())

	versions, err := s.svc.ListVersions(s.ctx, s.rec.ID)
	s.Require().NoError(err)
	s.Require().NotEmpty(versions)
	for i, v := range versions {
		s.Equal(i+1, v.Number)
	}
}

func (s *PublisherSuite) TestPublishReadsAreSequential() {
	s.writeDraft(map[string]any{"material": "Oak"})
	s.Require().NoError(s.medias.Save(s.ctx, media.Media{
		ID:         uuid.New(),
		RecordID:   s.rec.ID,
		FileName:   "photo.jpg",
		StorageRef: "s3://bucket/photo.jpg",
	}))

	tracker := &overlapTracker{}
	resolver := permission.NewResolver(s.records, permission.NewInMemoryBindingStore(), nil)
	svc := New(s.versions, s.records,
		trackedContentStore{ContentStore: s.contents, tracker: tracker},
		trackedMediaStore{MediaStore: s.medias, tracker: tracker},
		s.schemas, resolver, PassthroughRunner{},
	)

	v, err := svc.Publish(s.ctx, s.owner, s.rec.ID)
	s.Require().NoError(err)
	s.Equal(1, v.Number)
	s.False(tracker.overlapped, "draft and media reads share one connection inside the unit of work")
}

func (s *PublisherSuite) TestReads() {
	s.Run("version zero is rejected", func() {
		_, err := s.svc.GetVersion(s.ctx, s.rec.ID, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown version is not found", func() {
		_, err := s.svc.GetVersion(s.ctx, s.rec.ID, 7)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("listing an unknown record is not found", func() {
		_, err := s.svc.ListVersions(s.ctx, uuid.New())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// overlapTracker flags store calls whose execution windows intersect. The
// sleep widens each window far past the cost of an in-memory lookup.
type overlapTracker struct {
	mu         sync.Mutex
	inFlight   int
	overlapped bool
}

func (t *overlapTracker) enter() {
	t.mu.Lock()
	t.inFlight++
	if t.inFlight > 1 {
		t.overlapped = true
	}
	t.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
}

func (t *overlapTracker) exit() {
	t.mu.Lock()
	t.inFlight--
	t.mu.Unlock()
}

type trackedContentStore struct {
	ContentStore
	tracker *overlapTracker
}

func (s trackedContentStore) FindDraftByRecord(ctx context.Context, recordID uuid.UUID) (content.Draft, error) {
	s.tracker.enter()
	defer s.tracker.exit()
	return s.ContentStore.FindDraftByRecord(ctx, recordID)
}

type trackedMediaStore struct {
	MediaStore
	tracker *overlapTracker
}

func (s trackedMediaStore) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]media.Media, error) {
	s.tracker.enter()
	defer s.tracker.exit()
	return s.MediaStore.ListByRecord(ctx, recordID)
}
