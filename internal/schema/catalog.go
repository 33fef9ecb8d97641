package schema

import (
	"context"

	"github.com/google/uuid"
)

// Seeder is the write side of a template store. The catalog is read-only at
// runtime; seeding happens once at boot.
type Seeder interface {
	Save(ctx context.Context, tpl Template) error
}

// SeedDefaults loads the built-in template catalog. Deployments with their
// own catalog skip this and seed the store themselves.
func SeedDefaults(ctx context.Context, store Seeder) error {
	for _, tpl := range DefaultTemplates() {
		if err := store.Save(ctx, tpl); err != nil {
			return err
		}
	}
	return nil
}

// DefaultTemplates returns version 1 of every built-in category template.
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:       uuid.New(),
			Category: "furniture",
			Version:  1,
			Active:   true,
			Blocks: []BlockDefinition{
				{
					ID: uuid.New(), Key: "general", Section: "general", Order: 1,
					Fields: []FieldDefinition{
						{Key: "name", Label: "Product name", Type: FieldTypeText, Required: true},
						{Key: "description", Label: "Description", Type: FieldTypeText},
						{Key: "care", Label: "Care instructions", Type: FieldTypeText},
					},
				},
				{
					ID: uuid.New(), Key: "materials", Section: "materials", Order: 2,
					Fields: []FieldDefinition{
						{Key: "material", Label: "Primary material", Type: FieldTypeText, Required: true},
						{Key: "certification", Label: "Material certification", Type: FieldTypeText},
						{Key: "recycled_share", Label: "Recycled content share", Type: FieldTypeNumber},
					},
				},
				{
					ID: uuid.New(), Key: "second_life", Section: "second_life", Order: 3,
					Fields: []FieldDefinition{
						{Key: "repairable", Label: "Repairable", Type: FieldTypeBoolean},
						{Key: "disposal_notes", Label: "Disposal notes", Type: FieldTypeText},
					},
				},
			},
		},
		{
			ID:       uuid.New(),
			Category: "textile",
			Version:  1,
			Active:   true,
			Blocks: []BlockDefinition{
				{
					ID: uuid.New(), Key: "general", Section: "general", Order: 1,
					Fields: []FieldDefinition{
						{Key: "name", Label: "Product name", Type: FieldTypeText, Required: true},
						{Key: "care", Label: "Care instructions", Type: FieldTypeText},
					},
				},
				{
					ID: uuid.New(), Key: "fibers", Section: "materials", Order: 2,
					Fields: []FieldDefinition{
						{Key: "composition", Label: "Fiber composition", Type: FieldTypeText, Required: true},
						{Key: "dye_process", Label: "Dye process", Type: FieldTypeText},
					},
				},
			},
		},
		{
			ID:       uuid.New(),
			Category: "electronics",
			Version:  1,
			Active:   true,
			Blocks: []BlockDefinition{
				{
					ID: uuid.New(), Key: "general", Section: "general", Order: 1,
					Fields: []FieldDefinition{
						{Key: "name", Label: "Product name", Type: FieldTypeText, Required: true},
						{Key: "model", Label: "Model number", Type: FieldTypeText},
					},
				},
				{
					ID: uuid.New(), Key: "compliance", Section: "material_compliance", Order: 2,
					Fields: []FieldDefinition{
						{Key: "rohs", Label: "RoHS compliant", Type: FieldTypeBoolean, Required: true},
						{Key: "weee_category", Label: "WEEE category", Type: FieldTypeText},
					},
				},
				{
					ID: uuid.New(), Key: "disposal", Section: "disposal", Order: 3,
					Fields: []FieldDefinition{
						{Key: "battery_removable", Label: "Battery removable", Type: FieldTypeBoolean},
						{Key: "takeback_program", Label: "Take-back program", Type: FieldTypeText},
					},
				},
			},
		},
		{
			ID:       uuid.New(),
			Category: "battery",
			Version:  1,
			Active:   true,
			Blocks: []BlockDefinition{
				{
					ID: uuid.New(), Key: "general", Section: "general", Order: 1,
					Fields: []FieldDefinition{
						{Key: "name", Label: "Product name", Type: FieldTypeText, Required: true},
						{Key: "chemistry", Label: "Cell chemistry", Type: FieldTypeText, Required: true},
					},
				},
				{
					ID: uuid.New(), Key: "capacity", Section: "materials", Order: 2,
					Fields: []FieldDefinition{
						{Key: "capacity_wh", Label: "Capacity (Wh)", Type: FieldTypeNumber, Required: true},
						{Key: "cobalt_share", Label: "Cobalt share", Type: FieldTypeNumber},
					},
				},
			},
		},
	}
}
