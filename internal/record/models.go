package record

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the publish lifecycle of a passport. The DRAFT → PUBLISHED
// transition is one-way; later publishes only add versions.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
)

// Scalars are the canonical top-level columns of a passport. Versions copy
// them by value at publish time, so keep this a plain value type.
type Scalars struct {
	Name            string
	SKU             string
	Brand           string
	CountryOfOrigin string
	Material        string
	Care            string
}

// Record is the passport entity owned by an organization. Records are never
// deleted by this core.
type Record struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Category  string
	Scalars   Scalars
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}
