package content

import "traceport/internal/record"

// canonicalColumn links a passport scalar column to the legacy and localized
// field keys that may carry its value in a write set. The first matching key
// present in the incoming write wins. Empty strings unset optional columns;
// mandatory columns ignore them.
type canonicalColumn struct {
	name      string
	keys      []string
	mandatory bool
	get       func(*record.Scalars) *string
}

var canonicalColumns = []canonicalColumn{
	{
		name:      "name",
		keys:      []string{"name", "product_name", "produktname"},
		mandatory: true,
		get:       func(s *record.Scalars) *string { return &s.Name },
	},
	{
		name: "sku",
		keys: []string{"sku", "article_number", "artikelnummer"},
		get:  func(s *record.Scalars) *string { return &s.SKU },
	},
	{
		name: "brand",
		keys: []string{"brand", "brand_name", "marke"},
		get:  func(s *record.Scalars) *string { return &s.Brand },
	},
	{
		name: "country_of_origin",
		keys: []string{"country_of_origin", "origin_country", "made_in"},
		get:  func(s *record.Scalars) *string { return &s.CountryOfOrigin },
	},
	{
		name: "material",
		keys: []string{"material", "materials", "material_composition"},
		get:  func(s *record.Scalars) *string { return &s.Material },
	},
	{
		name: "care",
		keys: []string{"care", "care_instructions", "pflegehinweise"},
		get:  func(s *record.Scalars) *string { return &s.Care },
	},
}

// SyncCanonicalColumns folds an incoming write set into the scalar columns.
// Returns the updated scalars and whether anything changed. Consulted once
// per write, after the block merge.
func SyncCanonicalColumns(scalars record.Scalars, writes map[string]any) (record.Scalars, bool) {
	changed := false
	for _, col := range canonicalColumns {
		for _, key := range col.keys {
			raw, ok := writes[key]
			if !ok {
				continue
			}
			value, ok := raw.(string)
			if !ok {
				break
			}
			target := col.get(&scalars)
			if value == "" {
				// Unset is only legal for optional columns.
				if !col.mandatory && *target != "" {
					*target = ""
					changed = true
				}
				break
			}
			if *target != value {
				*target = value
				changed = true
			}
			break
		}
	}
	return scalars, changed
}
