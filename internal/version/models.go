package version

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"traceport/internal/record"
)

// Version is an immutable publish snapshot. Numbers start at 1 and are
// gapless and strictly increasing per record. Rows are never mutated or
// deleted by this core.
type Version struct {
	ID         uuid.UUID
	RecordID   uuid.UUID
	Number     int
	Scalars    record.Scalars
	PublicPath string
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
}

// PublicPath derives the deterministic public reference path for a version.
// It is relative; the boundary resolves it to an absolute URL.
func PublicPath(recordID uuid.UUID, number int) string {
	return fmt.Sprintf("/passports/%s/versions/%d", recordID, number)
}
