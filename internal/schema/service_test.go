package schema

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "traceport/pkg/domain-errors"
)

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "furniture", NormalizeCategory("Möbel"))
	assert.Equal(t, "furniture", NormalizeCategory("  furniture "))
	assert.Equal(t, "textile", NormalizeCategory("Apparel"))
	assert.Equal(t, "toys", NormalizeCategory("Toys"), "unknown labels pass through lowercased")
}

func TestLatestActive(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := NewService(store)

	require.NoError(t, store.Save(ctx, Template{ID: uuid.New(), Category: "furniture", Version: 1, Active: true}))
	require.NoError(t, store.Save(ctx, Template{ID: uuid.New(), Category: "furniture", Version: 3, Active: false}))
	require.NoError(t, store.Save(ctx, Template{ID: uuid.New(), Category: "furniture", Version: 2, Active: true}))

	tpl, err := svc.LatestActive(ctx, "Möbel")
	require.NoError(t, err)
	assert.Equal(t, 2, tpl.Version, "inactive newer version must not win")

	_, err = svc.LatestActive(ctx, "textile")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.LatestActive(ctx, "  ")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestDeprecatedFieldFiltering(t *testing.T) {
	block := BlockDefinition{
		ID:  uuid.New(),
		Key: "materials",
		Fields: []FieldDefinition{
			{Key: "material", Type: FieldTypeText},
			{Key: "material_origin", Type: FieldTypeText, DeprecatedInVersion: 2},
		},
	}
	tplV1 := Template{Version: 1, Blocks: []BlockDefinition{block}}
	tplV2 := Template{Version: 2, Blocks: []BlockDefinition{block}}

	assert.Len(t, tplV1.ActiveFields(block), 2)

	active := tplV2.ActiveFields(block)
	require.Len(t, active, 1)
	assert.Equal(t, "material", active[0].Key)
}
