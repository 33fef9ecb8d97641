package permission

import (
	"github.com/google/uuid"
)

// ActorKind is a closed enumeration of the four caller classes. Resolution
// rules dispatch on the kind, never on raw role strings at call sites.
type ActorKind int

const (
	// ActorPlatform is the platform operator; bypasses org boundaries.
	ActorPlatform ActorKind = iota
	// ActorOrgMember belongs to an organization with a membership role.
	ActorOrgMember
	// ActorExternal is a known external party with per-record bindings.
	ActorExternal
	// ActorContributor is an anonymous holder of a contributor grant token.
	ActorContributor
)

// Role is an organization membership role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// ExternalRole labels a permission binding for an external party. The default
// section table in defaults.go is keyed by these.
type ExternalRole string

const (
	ExternalRoleMaterials   ExternalRole = "materials_partner"
	ExternalRoleDisposal    ExternalRole = "disposal_partner"
	ExternalRoleUnspecified ExternalRole = "unspecified"
)

// Actor carries exactly the identity data each kind needs. It comes from the
// identity provider at the boundary; the core trusts it.
type Actor struct {
	Kind  ActorKind
	ID    uuid.UUID
	OrgID uuid.UUID // org members only
	Role  Role      // org members only
	Token string    // contributors only
}

// Scope narrows a resolution to a section or a single field. A nil scope
// means the whole record.
type Scope struct {
	Section  string
	FieldKey string
}

// CapabilitySet is the resolved outcome. The zero value denies everything;
// resolution returns it (with a nil error) for "no access" so callers can
// distinguish denial from lookup failure.
type CapabilitySet struct {
	Read             bool
	WriteAll         bool
	WritableSections []string
	WritableBlocks   []uuid.UUID
}

// CanWrite reports whether any write is allowed at all.
func (c CapabilitySet) CanWrite() bool {
	return c.WriteAll || len(c.WritableSections) > 0 || len(c.WritableBlocks) > 0
}

// CanWriteSection reports whether the given section is writable.
func (c CapabilitySet) CanWriteSection(section string) bool {
	if c.WriteAll {
		return true
	}
	for _, s := range c.WritableSections {
		if s == section {
			return true
		}
	}
	return false
}

// CanWriteBlock reports whether the given template block is directly writable.
// Section-level capability is checked separately by the content layer, which
// owns the block→section mapping.
func (c CapabilitySet) CanWriteBlock(blockID uuid.UUID) bool {
	if c.WriteAll {
		return true
	}
	for _, id := range c.WritableBlocks {
		if id == blockID {
			return true
		}
	}
	return false
}

// Denied reports a fully empty capability set.
func (c CapabilitySet) Denied() bool {
	return !c.Read && !c.CanWrite()
}

// Binding attaches an external role to one record for one external actor.
// Sections == nil means "apply the role's default section set".
type Binding struct {
	RecordID uuid.UUID
	ActorID  uuid.UUID
	Role     ExternalRole
	Sections []string
}
