package content

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Block is one entry in a passport's content. A free-form block carries
// opaque Content; a template-bound block carries Data shaped by a
// schema.BlockDefinition.
type Block struct {
	ID              uuid.UUID
	Order           int
	Content         json.RawMessage
	TemplateBlockID uuid.UUID
	Data            map[string]any
}

// TemplateBound reports whether the block follows a template definition.
func (b Block) TemplateBound() bool {
	return b.TemplateBlockID != uuid.Nil || b.Data != nil
}

// Draft is a content row. Exactly one row per record has IsPublished=false;
// published rows are frozen copies bound to a version.
type Draft struct {
	ID          uuid.UUID
	RecordID    uuid.UUID
	Blocks      []Block
	IsPublished bool
	VersionID   *uuid.UUID
	UpdatedAt   time.Time
}

// Clone deep-copies the draft so snapshots never alias the editable row.
func (d Draft) Clone() Draft {
	out := d
	out.Blocks = make([]Block, len(d.Blocks))
	for i, b := range d.Blocks {
		nb := b
		if b.Content != nil {
			nb.Content = append(json.RawMessage{}, b.Content...)
		}
		if b.Data != nil {
			nb.Data = make(map[string]any, len(b.Data))
			for k, v := range b.Data {
				nb.Data[k] = v
			}
		}
		out.Blocks[i] = nb
	}
	if d.VersionID != nil {
		v := *d.VersionID
		out.VersionID = &v
	}
	return out
}

// WriterScope restricts what a delegated writer may touch. Either concrete
// block ids or legacy section names, optionally narrowed to specific field
// keys.
type WriterScope struct {
	BlockIDs       []uuid.UUID
	Sections       []string
	FieldAllowlist []string
}

// AllowsField reports whether the optional field allowlist permits the key.
// An empty allowlist permits every field inside the scoped blocks.
func (s WriterScope) AllowsField(key string) bool {
	if len(s.FieldAllowlist) == 0 {
		return true
	}
	for _, k := range s.FieldAllowlist {
		if k == key {
			return true
		}
	}
	return false
}
