package audit

import "time"

// Actions emitted by the core. Publish and grant redemption/submission are
// compliance relevant; everything else is operational.
const (
	ActionPassportCreated = "passport.created"
	ActionFieldsWritten   = "passport.fields_written"
	ActionPublished       = "passport.published"
	ActionMediaAttached   = "passport.media_attached"
	ActionMediaDeleted    = "passport.media_deleted"
	ActionBindingCreated  = "binding.created"
	ActionGrantIssued     = "grant.issued"
	ActionGrantRedeemed   = "grant.redeemed"
	ActionGrantSubmitted  = "grant.submitted"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp          time.Time
	ActorID            string
	Action             string
	EntityID           string
	Before             map[string]any
	After              map[string]any
	ComplianceRelevant bool
}
