package schema

import (
	"github.com/google/uuid"
)

// FieldType constrains what a template field can hold. Values are stored
// opaquely; the type is advisory for form rendering and import tooling.
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeSelect  FieldType = "select"
	FieldTypeDate    FieldType = "date"
)

// FieldDefinition describes a single field on a template block. Keys are
// stable across template versions; deprecation is recorded, never deleted, so
// historical published content stays interpretable.
type FieldDefinition struct {
	Key                 string
	Label               string
	Type                FieldType
	Required            bool
	DeprecatedInVersion int // 0 means never deprecated
}

// DeprecatedAsOf reports whether the field is deprecated in the given
// template version.
func (f FieldDefinition) DeprecatedAsOf(version int) bool {
	return f.DeprecatedInVersion > 0 && f.DeprecatedInVersion <= version
}

// BlockDefinition groups fields under a section of the passport.
type BlockDefinition struct {
	ID      uuid.UUID
	Key     string
	Section string
	Order   int
	Fields  []FieldDefinition
}

// Field returns the definition for key, if present.
func (b BlockDefinition) Field(key string) (FieldDefinition, bool) {
	for _, f := range b.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Template is a versioned catalog of block definitions for one category.
type Template struct {
	ID       uuid.UUID
	Category string
	Version  int
	Active   bool
	Blocks   []BlockDefinition
}

// Block returns the block definition with the given id.
func (t Template) Block(id uuid.UUID) (BlockDefinition, bool) {
	for _, b := range t.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return BlockDefinition{}, false
}

// BlocksInSections returns block definitions whose section is in the given
// set. Used to expand legacy section scopes into concrete blocks.
func (t Template) BlocksInSections(sections []string) []BlockDefinition {
	want := make(map[string]bool, len(sections))
	for _, s := range sections {
		want[s] = true
	}
	var out []BlockDefinition
	for _, b := range t.Blocks {
		if want[b.Section] {
			out = append(out, b)
		}
	}
	return out
}

// ActiveFields returns the block's fields that are not deprecated as of the
// template's own version.
func (t Template) ActiveFields(b BlockDefinition) []FieldDefinition {
	var out []FieldDefinition
	for _, f := range b.Fields {
		if !f.DeprecatedAsOf(t.Version) {
			out = append(out, f)
		}
	}
	return out
}
