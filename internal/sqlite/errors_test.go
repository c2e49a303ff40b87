package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

func TestTranslateUniqueViolations(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Migrate(context.Background(), db))

	t.Run("schema name", func(t *testing.T) {
		_, err := CreateEntitySchema(db, types.CreateEntitySchema{Name: "Person"})
		require.NoError(t, err)
		_, err = CreateEntitySchema(db, types.CreateEntitySchema{Name: "Person"})
		assert.ErrorIs(t, err, types.ErrDuplicateName)
	})

	t.Run("attribute name", func(t *testing.T) {
		schema, err := CreateEntitySchema(db, types.CreateEntitySchema{Name: "Note"})
		require.NoError(t, err)
		in := types.CreateAttributeSchema{
			EntitySchema: schema.ID,
			Name:         "title",
			Quantity:     types.Required,
			Type:         types.SimpleAttribute(types.Text),
		}
		_, err = CreateAttributeSchema(db, in)
		require.NoError(t, err)
		_, err = CreateAttributeSchema(db, in)
		assert.ErrorIs(t, err, types.ErrDuplicateName)
	})

	t.Run("shared block successor", func(t *testing.T) {
		tail, err := createBlock(db, "tail")
		require.NoError(t, err)
		a, err := createBlock(db, "a")
		require.NoError(t, err)
		b, err := createBlock(db, "b")
		require.NoError(t, err)

		next := types.NullID{ID: tail, Valid: true}
		require.NoError(t, setNext(db, a, next))
		err = setNext(db, b, next)
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrDuplicateName)
	})
}

func TestDuplicateName(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"constraint failed: UNIQUE constraint failed: entity_schema.name (2067)", true},
		{"constraint failed: UNIQUE constraint failed: attribute_schema.entity_schema, attribute_schema.name (2067)", true},
		{"constraint failed: UNIQUE constraint failed: textblock.next (2067)", false},
		{"constraint failed: UNIQUE constraint failed: text_attribute.id (1555)", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.want, " ", tt.msg), func(t *testing.T) {
			assert.Equal(t, tt.want, duplicateName(tt.msg))
		})
	}
}
