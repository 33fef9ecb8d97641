// Package notify is the outbound notification boundary. Delivery (email, push)
// is an external collaborator; the core only emits events and treats loss as
// non-fatal.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Event keys emitted by the core.
const (
	EventGrantSubmitted   = "contributor_grant_submitted"
	EventVersionPublished = "passport_version_published"
)

// Sink delivers a notification to a single user. Fire-and-forget from the
// core's perspective.
type Sink interface {
	Notify(ctx context.Context, userID uuid.UUID, eventKey string, payload map[string]any) error
}

// AdminDirectory resolves the admin users of an organization. Backed by the
// identity provider at the boundary.
type AdminDirectory interface {
	ListAdmins(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error)
}

// Notifier fans a single event out to every admin of an organization. Errors
// are logged and swallowed: losing a notification is acceptable, losing the
// triggering write is not.
type Notifier struct {
	sink   Sink
	admins AdminDirectory
	logger *slog.Logger
}

func NewNotifier(sink Sink, admins AdminDirectory, logger *slog.Logger) *Notifier {
	return &Notifier{sink: sink, admins: admins, logger: logger}
}

func (n *Notifier) NotifyOrgAdmins(ctx context.Context, orgID uuid.UUID, eventKey string, payload map[string]any) {
	if n == nil || n.sink == nil || n.admins == nil {
		return
	}
	adminIDs, err := n.admins.ListAdmins(ctx, orgID)
	if err != nil {
		n.logWarn(ctx, "admin lookup failed", "org_id", orgID.String(), "error", err)
		return
	}
	for _, adminID := range adminIDs {
		if err := n.sink.Notify(ctx, adminID, eventKey, payload); err != nil {
			n.logWarn(ctx, "notification delivery failed",
				"user_id", adminID.String(),
				"event_key", eventKey,
				"error", err,
			)
		}
	}
}

func (n *Notifier) logWarn(ctx context.Context, msg string, args ...any) {
	if n.logger != nil {
		n.logger.WarnContext(ctx, msg, args...)
	}
}

// LogSink writes notifications to the logger. Default sink when no delivery
// integration is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, userID uuid.UUID, eventKey string, payload map[string]any) error {
	s.logger.InfoContext(ctx, "notification",
		"user_id", userID.String(),
		"event_key", eventKey,
		"payload", payload,
	)
	return nil
}

// MemorySink records notifications for assertions in tests.
type MemorySink struct {
	mu     sync.Mutex
	Events []RecordedNotification
}

type RecordedNotification struct {
	UserID   uuid.UUID
	EventKey string
	Payload  map[string]any
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Notify(_ context.Context, userID uuid.UUID, eventKey string, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, RecordedNotification{UserID: userID, EventKey: eventKey, Payload: payload})
	return nil
}

// StaticDirectory is a fixed org→admins mapping for tests and single-tenant
// deployments.
type StaticDirectory struct {
	Admins map[uuid.UUID][]uuid.UUID
}

func (d *StaticDirectory) ListAdmins(_ context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	return d.Admins[orgID], nil
}
