package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

func mustAttr(t *testing.T, tx types.Tx, owner types.ID, q types.Quantity, typ types.AttributeType) types.ID {
	t.Helper()
	a, err := CreateAttributeSchema(tx, types.CreateAttributeSchema{
		EntitySchema: owner, Name: types.NewID().String(), Quantity: q, Type: typ,
	})
	require.NoError(t, err)
	return a.ID
}

func queryCounts() map[string]float64 {
	counts := map[string]float64{}
	for _, v := range valueTables {
		counts[v.name] = testutil.ToFloat64(queriesTotal.WithLabelValues(v.name))
	}
	return counts
}

func TestGetManyBatchesOneQueryPerTablePerLevel(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Migrate(context.Background(), db))
	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	parent, err := CreateEntitySchema(tx, types.CreateEntitySchema{Name: "Parent"})
	require.NoError(t, err)
	child, err := CreateEntitySchema(tx, types.CreateEntitySchema{Name: "Child"})
	require.NoError(t, err)

	title := mustAttr(t, tx, parent.ID, types.Required, types.SimpleAttribute(types.Text))
	tags := mustAttr(t, tx, parent.ID, types.List, types.SimpleAttribute(types.Text))
	size := mustAttr(t, tx, parent.ID, types.Optional, types.SimpleAttribute(types.Integer))
	ref := mustAttr(t, tx, parent.ID, types.Required, types.ReferenceAttribute(child.ID))
	name := mustAttr(t, tx, child.ID, types.Required, types.SimpleAttribute(types.Text))
	body := mustAttr(t, tx, child.ID, types.Optional, types.SimpleAttribute(types.Longform))

	const parents = 20
	for i := 0; i < parents; i++ {
		_, err := AddEntity(tx, parent.ID, map[string]any{
			title.String(): "title",
			tags.String():  []any{"a", "b"},
			size.String():  i,
			ref.String():   map[string]any{name.String(): "child", body.String(): "text"},
		})
		require.NoError(t, err)
	}

	before := queryCounts()
	all, err := GetEntities(tx, parent.ID, types.Fields(
		types.Attr(title), types.Attr(tags), types.Attr(size),
		types.Ref(ref, types.Attr(name), types.Attr(body)),
	))
	require.NoError(t, err)
	require.Len(t, all, parents)
	after := queryCounts()

	delta := map[string]float64{}
	for k := range after {
		delta[k] = after[k] - before[k]
	}
	assert.Equal(t, map[string]float64{
		"text_attribute":      2, // one per level
		"integer_attribute":   1,
		"number_attribute":    0,
		"reference_attribute": 1,
		"longform_attribute":  1,
	}, delta)
}

func TestGetManySplitsLargeBatches(t *testing.T) {
	saved := readBatchSize
	readBatchSize = 3
	t.Cleanup(func() { readBatchSize = saved })

	db := openMemory(t)
	require.NoError(t, Migrate(context.Background(), db))
	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	schema, err := CreateEntitySchema(tx, types.CreateEntitySchema{Name: "Row"})
	require.NoError(t, err)
	label := mustAttr(t, tx, schema.ID, types.Required, types.SimpleAttribute(types.Text))
	notes := mustAttr(t, tx, schema.ID, types.List, types.SimpleAttribute(types.Text))
	body := mustAttr(t, tx, schema.ID, types.Optional, types.SimpleAttribute(types.Longform))

	const rows = 10
	want := map[types.ID]string{}
	for i := 0; i < rows; i++ {
		l := fmt.Sprintf("row %d", i)
		id, err := AddEntity(tx, schema.ID, map[string]any{
			label.String(): l,
			notes.String(): []any{"b", "a"},
			body.String():  l + " body",
		})
		require.NoError(t, err)
		want[id] = l
	}

	before := queryCounts()
	all, err := GetEntities(tx, schema.ID, types.Fields(types.Attr(label), types.Attr(notes), types.Attr(body)))
	require.NoError(t, err)
	after := queryCounts()

	require.Len(t, all, rows)
	for id, l := range want {
		resp := all[id]
		assert.Equal(t, l, resp[label.String()])
		assert.Equal(t, []any{"a", "b"}, resp[notes.String()])
		assert.Equal(t, l+" body", resp[body.String()])
	}
	// Ten ids in batches of three.
	assert.Equal(t, 4.0, after["text_attribute"]-before["text_attribute"])
	assert.Equal(t, 4.0, after["longform_attribute"]-before["longform_attribute"])
}

func TestBatches(t *testing.T) {
	ids := make([]types.ID, 7)
	for i := range ids {
		ids[i] = types.NewID()
	}
	got := batches(ids, 3)
	require.Len(t, got, 3)
	assert.Equal(t, ids[:3], got[0])
	assert.Equal(t, ids[6:], got[2])

	assert.Len(t, batches(ids, 7), 1)
	assert.Empty(t, batches(nil, 3))
}
