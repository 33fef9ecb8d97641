package permission

// roleDefaultSections is the total default-section table applied when a
// binding carries no explicit sections. Every known external role has an
// entry; anything else resolves to no writable sections. Read access for a
// bound actor does not depend on this table.
var roleDefaultSections = map[ExternalRole][]string{
	ExternalRoleMaterials:   {"materials", "material_compliance"},
	ExternalRoleDisposal:    {"disposal", "second_life"},
	ExternalRoleUnspecified: {},
}

// DefaultSections returns the writable sections a role grants when the
// binding does not pin its own. Unmapped roles get nothing: an unrecognized
// role is treated as granting no write access rather than as a configuration
// error at binding creation.
func DefaultSections(role ExternalRole) []string {
	sections, ok := roleDefaultSections[role]
	if !ok {
		return nil
	}
	out := make([]string, len(sections))
	copy(out, sections)
	return out
}
