package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

func TestResponseMap(t *testing.T) {
	e1, e2 := types.NewID(), types.NewID()
	a, b := types.NewID(), types.NewID()

	rm := newResponseMap()
	rm.push(e1, a, "x")
	rm.push(e1, a, "y")
	rm.push(e1, b, "z")
	rm.push(e2, a, "w")
	out := rm.finalize()

	assert.Equal(t, []any{"x", "y"}, out.get(e1, a))
	assert.Equal(t, []any{"z"}, out.get(e1, b))
	assert.Equal(t, []any{"w"}, out.get(e2, a))
	assert.Nil(t, out.get(e2, b))
}

func TestResponseMapEmpty(t *testing.T) {
	out := newResponseMap().finalize()
	assert.Empty(t, out)
	assert.Nil(t, out.get(types.NewID(), types.NewID()))
}

func TestRequestPlan(t *testing.T) {
	text := types.AttributeSchema{ID: types.NewID(), Quantity: types.Required, Type: types.SimpleAttribute(types.Text)}
	num := types.AttributeSchema{ID: types.NewID(), Quantity: types.List, Type: types.SimpleAttribute(types.Number)}
	ref := types.AttributeSchema{ID: types.NewID(), Quantity: types.Optional, Type: types.ReferenceAttribute(types.NewID())}
	refs := types.AttributeSchema{ID: types.NewID(), Quantity: types.List, Type: types.ReferenceAttribute(types.NewID())}
	schema := types.SchemaMap{text.ID: text, num.ID: num, ref.ID: ref, refs.ID: refs}

	t.Run("groups leaves by table", func(t *testing.T) {
		p, err := newRequestPlan(schema, types.Fields(types.Attr(text.ID), types.Attr(num.ID), types.Attr(text.ID), types.Ref(ref.ID)))
		assert.NoError(t, err)
		assert.Len(t, p.leaves["text_attribute"], 1)
		assert.Len(t, p.leaves["number_attribute"], 1)
		assert.Len(t, p.walks, 1)
		assert.Len(t, p.referenced(), 1)
		assert.Len(t, p.fields, 3)
	})

	t.Run("reference leaf and walk share one lookup", func(t *testing.T) {
		p, err := newRequestPlan(schema, types.Fields(types.Attr(ref.ID), types.Ref(ref.ID)))
		assert.NoError(t, err)
		assert.Len(t, p.referenced(), 1)
		require.Len(t, p.fields, 1)
		assert.True(t, p.fields[0].reference)
	})

	t.Run("walks of one attribute merge", func(t *testing.T) {
		a, b := types.NewID(), types.NewID()
		p, err := newRequestPlan(schema, types.Fields(types.Ref(ref.ID, types.Attr(a)), types.Ref(ref.ID, types.Attr(b))))
		assert.NoError(t, err)
		require.Len(t, p.walks, 1)
		assert.Equal(t, types.Fields(types.Attr(a), types.Attr(b)), p.walks[0].sub)
		assert.Len(t, p.fields, 1)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := newRequestPlan(schema, types.Fields(types.Attr(types.NewID())))
		assert.ErrorIs(t, err, types.ErrUnknownAttribute)
	})

	t.Run("walk on non-reference", func(t *testing.T) {
		_, err := newRequestPlan(schema, types.Fields(types.Ref(text.ID)))
		assert.ErrorIs(t, err, types.ErrTypeMismatch)
	})

	t.Run("walk on reference list", func(t *testing.T) {
		_, err := newRequestPlan(schema, types.Fields(types.Ref(refs.ID)))
		assert.ErrorIs(t, err, types.ErrUnsupported)
	})
}
