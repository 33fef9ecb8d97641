package media

import (
	"time"

	"github.com/google/uuid"
)

// Media is a draft-scoped attachment reference. Bytes live with the storage
// provider; this core only records and copies references.
type Media struct {
	ID          uuid.UUID
	RecordID    uuid.UUID
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageRef  string
	Role        string // rendering hint, e.g. "gallery" or "document"
	FieldKey    string // optional binding to a template field
	Position    int
	CreatedAt   time.Time
}

// VersionMedia is the frozen copy of a draft attachment taken at publish
// time. It shares the storage reference with the draft row, which is why
// draft media deletion is guarded by a reference check.
type VersionMedia struct {
	ID          uuid.UUID
	VersionID   uuid.UUID
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageRef  string
	Role        string
	FieldKey    string
	Position    int
	CreatedAt   time.Time
}

// CopyForVersion snapshots draft media into version media rows by value.
func CopyForVersion(items []Media, versionID uuid.UUID, now time.Time) []VersionMedia {
	out := make([]VersionMedia, 0, len(items))
	for _, m := range items {
		out = append(out, VersionMedia{
			ID:          uuid.New(),
			VersionID:   versionID,
			FileName:    m.FileName,
			ContentType: m.ContentType,
			SizeBytes:   m.SizeBytes,
			StorageRef:  m.StorageRef,
			Role:        m.Role,
			FieldKey:    m.FieldKey,
			Position:    m.Position,
			CreatedAt:   now,
		})
	}
	return out
}
