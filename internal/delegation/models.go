package delegation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"traceport/internal/schema"
)

// Mode controls the confirmation semantics of a grant submission.
type Mode string

const (
	// ModeInput asks the contributor to provide values and confirm them.
	ModeInput Mode = "input"
	// ModeDeclaration asks the contributor to confirm a statement or reject
	// it with a comment.
	ModeDeclaration Mode = "declaration"
)

// Status is the stored grant state. "Expired" is derived from ExpiresAt, not
// stored.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
)

// Scope bounds what a grant may write: concrete template block ids, or legacy
// section names carried over from older templates.
type Scope struct {
	BlockIDs       []uuid.UUID `json:"block_ids,omitempty"`
	LegacySections []string    `json:"legacy_sections,omitempty"`
}

// Grant is a scoped, time-boxed, single-use external write token.
type Grant struct {
	Token          string
	RecordID       uuid.UUID
	IssuedBy       uuid.UUID
	Scope          Scope
	FieldAllowlist []string
	Mode           Mode
	ExpiresAt      time.Time
	Status         Status
	Submission     json.RawMessage
	SubmittedAt    *time.Time
	CreatedAt      time.Time
}

// Expired reports whether the grant is past its expiry.
func (g Grant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}

// Confirmation carries the contributor's sign-off on a submission.
type Confirmation struct {
	Confirmed bool
	Rejected  bool
	Comment   string
}

/// ContributorView is what a redeeming contributor sees: the template blocks
// and fields visible under the grant's scope, with current draft values.
type ContributorView struct {
	RecordID uuid.UUID
	Mode     Mode
	Blocks   []ViewBlock
}

// ViewBlock is one visible template block.
type ViewBlock struct {
	ID      uuid.UUID
	Key     string
	Section string
	Fields  []ViewField
}

// ViewField is one visible field with its current draft value, if any.
type ViewField struct {
	Key      string
	Label    string
	Type     schema.FieldType
	Required bool
	Value    any
}
