package sqlite_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cortex/internal/sqlite"
	"github.com/mesh-intelligence/cortex/internal/sqlite/sqlitetest"
	"github.com/mesh-intelligence/cortex/pkg/types"
)

func TestAddEntitySimpleText(t *testing.T) {
	tx := sqlitetest.Setup(t)
	schema := sqlitetest.CreateDefaultESD(t, tx)
	a := sqlitetest.NewASD().Create(t, tx, schema)

	e := sqlitetest.AddEntity(t, tx, schema, sqlitetest.Payload(a.ID, "Hello world"))

	resp, err := sqlite.GetEntity(tx, e, types.Fields(types.Attr(a.ID)))
	require.NoError(t, err)
	assert.Equal(t, types.Response{a.ID.String(): "Hello world"}, resp)
}

func TestAddEntityList(t *testing.T) {
	tx := sqlitetest.Setup(t)
	schema := sqlitetest.CreateDefaultESD(t, tx)
	a := sqlitetest.NewASD().Quantity(types.List).Create(t, tx, schema)

	e := sqlitetest.AddEntity(t, tx, schema, sqlitetest.Payload(a.ID, []any{"y", "x"}))

	resp, err := sqlite.GetEntity(tx, e, types.Fields(types.Attr(a.ID)))
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, resp[a.ID.String()])

	empty := sqlitetest.AddEntity(t, tx, schema, sqlitetest.Payload(a.ID, []any{}))
	resp, err = sqlite.GetEntity(tx, empty, types.Fields(types.Attr(a.ID)))
	require.NoError(t, err)
	assert.Equal(t, []any{}, resp[a.ID.String()])

	omitted := sqlitetest.AddEntity(t, tx, schema, sqlitetest.Payload())
	resp, err = sqlite.GetEntity(tx, omitted, types.Fields(types.Attr(a.ID)))
	require.NoError(t, err)
	assert.Equal(t, []any{}, resp[a.ID.String()])
}

func TestAddEntityRejects(t *testing.T) {
	tx := sqlitetest.Setup(t)
	schema := sqlitetest.CreateDefaultESD(t, tx)
	other := sqlitetest.CreateDefaultESD(t, tx)
	req := sqlitetest.NewASD().Create(t, tx, schema)
	opt := sqlitetest.NewASD().Quantity(types.Optional).Create(t, tx, schema)
	num := sqlitetest.NewASD().Quantity(types.Optional).AttrType(types.Integer).Create(t, tx, schema)
	long := sqlitetest.NewASD().Quantity(types.List).AttrType(types.Longform).Create(t, tx, schema)
	refs := sqlitetest.NewRSD().Quantity(types.List).Create(t, tx, schema, other)
	foreign := sqlitetest.NewASD().Create(t, tx, other)

	tests := []struct {
		name    string
		payload any
		wantErr error
	}{
		{"string payload", "hello", types.ErrPayloadNotObject},
		{"array payload", []any{}, types.ErrPayloadNotObject},
		{"null payload", nil, types.ErrPayloadNotObject},
		{"missing required", sqlitetest.Payload(opt.ID, "x"), types.ErrMissingRequiredField},
		{"list for required", sqlitetest.Payload(req.ID, []any{"x", "y"}), types.ErrListGivenForScalar},
		{"list for optional", sqlitetest.Payload(req.ID, "x", opt.ID, []any{"y"}), types.ErrListGivenForScalar},
		{"unknown key", map[string]any{req.ID.String(): "x", types.NewID().String(): "y"}, types.ErrUnknownAttribute},
		{"non-canonical key", map[string]any{req.ID.String(): "x", strings.ToUpper(opt.ID.String()): "y"}, types.ErrUnknownAttribute},
		{"attribute of another schema", sqlitetest.Payload(req.ID, "x", foreign.ID, "y"), types.ErrUnknownAttribute},
		{"bool value", sqlitetest.Payload(req.ID, true), types.ErrUnsupported},
		{"null value", sqlitetest.Payload(req.ID, nil), types.ErrUnsupported},
		{"number for text", sqlitetest.Payload(req.ID, 42), types.ErrTypeMismatch},
		{"object for text", sqlitetest.Payload(req.ID, map[string]any{}), types.ErrTypeMismatch},
		{"fraction for integer", sqlitetest.Payload(req.ID, "x", num.ID, 1.5), types.ErrTypeMismatch},
		{"text for integer", sqlitetest.Payload(req.ID, "x", num.ID, "1"), types.ErrTypeMismatch},
		{"empty longform list", sqlitetest.Payload(req.ID, "x", long.ID, []any{}), types.ErrUnsupported},
		{"longform list", sqlitetest.Payload(req.ID, "x", long.ID, []any{"a"}), types.ErrUnsupported},
		{"reference list", sqlitetest.Payload(req.ID, "x", refs.ID, []any{types.NewID().String()}), types.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sqlite.AddEntity(tx, schema.ID, tt.payload)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := sqlite.AddEntity(tx, types.NewID(), map[string]any{})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAddEntityRejectsBeforeWriting(t *testing.T) {
	tx := sqlitetest.Setup(t)
	schema := sqlitetest.CreateDefaultESD(t, tx)
	req := sqlitetest.NewASD().Create(t, tx, schema)

	child := sqlitetest.CreateDefaultESD(t, tx)
	childName := sqlitetest.NewASD().Create(t, tx, child)
	ref := sqlitetest.NewRSD().Quantity(types.Optional).Create(t, tx, schema, child)
	num := sqlitetest.NewASD().Quantity(types.Optional).AttrType(types.Integer).Create(t, tx, schema)

	tests := []struct {
		name    string
		payload map[string]any
		wantErr error
	}{
		{"unknown key", map[string]any{req.ID.String(): "x", "bogus": "y"}, types.ErrUnknownAttribute},
		{"number for text", sqlitetest.Payload(req.ID, 7), types.ErrTypeMismatch},
		{"text for integer", sqlitetest.Payload(req.ID, "x", num.ID, "seven"), types.ErrTypeMismatch},
		{"nested child missing required", sqlitetest.Payload(req.ID, "x", ref.ID, sqlitetest.Payload()), types.ErrMissingRequiredField},
		{"nested child bad value", sqlitetest.Payload(req.ID, "x", ref.ID, sqlitetest.Payload(childName.ID, true)), types.ErrUnsupported},
		{"dangling reference", sqlitetest.Payload(req.ID, "x", ref.ID, types.NewID().String()), types.ErrBadReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sqlite.AddEntity(tx, schema.ID, tt.payload)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, count(t, tx, "entity"))
			assert.Equal(t, 0, count(t, tx, "text_attribute"))
			assert.Equal(t, 0, count(t, tx, "reference_attribute"))
		})
	}
}

func TestAddEntityJSON(t *testing.T) {
	tx := sqlitetest.Setup(t)
	schema := sqlitetest.CreateDefaultESD(t, tx)
	n := sqlitetest.NewASD().AttrType(types.Integer).Create(t, tx, schema)
	f := sqlitetest.NewASD().AttrType(types.Number).Create(t, tx, schema)
	l := sqlitetest.NewASD().Quantity(types.List).AttrType(types.Integer).Create(t, tx, schema)

	payload := `{"` + n.ID.String() + `": 9007199254740993, "` + f.ID.String() + `": 2.5, "` + l.ID.String() + `": [3, 1, 2]}`
	e, err := sqlite.AddEntityJSON(tx, schema.ID, []byte(payload))
	require.NoError(t, err)

	resp, err := sqlite.GetEntity(tx, e, types.Fields(types.Attr(n.ID), types.Attr(f.ID), types.Attr(l.ID)))
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), resp[n.ID.String()])
	assert.Equal(t, 2.5, resp[f.ID.String()])
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, resp[l.ID.String()])

	_, err = sqlite.AddEntityJSON(tx, schema.ID, []byte(`[1, 2]`))
	assert.ErrorIs(t, err, types.ErrPayloadNotObject)
	_, err = sqlite.AddEntityJSON(tx, schema.ID, []byte(`{`))
	assert.ErrorIs(t, err, types.ErrPayloadNotObject)
	_, err = sqlite.AddEntityJSON(tx, schema.ID, []byte(`{} garbage`))
	assert.ErrorIs(t, err, types.ErrPayloadNotObject)
	_, err = sqlite.AddEntityJSON(tx, schema.ID, []byte(`{} {}`))
	assert.ErrorIs(t, err, types.ErrPayloadNotObject)
}

func TestAddEntityReference(t *testing.T) {
	tx := sqlitetest.Setup(t)
	parent := sqlitetest.NewESD().Name("Parent").Create(t, tx)
	child := sqlitetest.NewESD().Name("Child").Create(t, tx)
	stranger := sqlitetest.NewESD().Name("Stranger").Create(t, tx)
	r := sqlitetest.NewRSD().Create(t, tx, parent, child)
	ct := sqlitetest.NewASD().Create(t, tx, child)
	st := sqlitetest.NewASD().Create(t, tx, stranger)

	c := sqlitetest.AddEntity(t, tx, child, sqlitetest.Payload(ct.ID, "C"))
	s := sqlitetest.AddEntity(t, tx, stranger, sqlitetest.Payload(st.ID, "S"))

	tests := []struct {
		name    string
		value   any
		wantErr error
	}{
		{"existing child", c.String(), nil},
		{"unparsable id", "not an id", types.ErrBadReference},
		{"missing entity", types.NewID().String(), types.ErrBadReference},
		{"entity of another schema", s.String(), types.ErrBadReference},
		{"number", 7, types.ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sqlite.AddEntity(tx, parent.ID, sqlitetest.Payload(r.ID, tt.value))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAddEntityNestedObject(t *testing.T) {
	tx := sqlitetest.Setup(t)
	parent := sqlitetest.NewESD().Name("Parent").Create(t, tx)
	child := sqlitetest.NewESD().Name("Child").Create(t, tx)
	r := sqlitetest.NewRSD().Create(t, tx, parent, child)
	ct := sqlitetest.NewASD().Create(t, tx, child)

	p := sqlitetest.AddEntity(t, tx, parent, sqlitetest.Payload(r.ID, sqlitetest.Payload(ct.ID, "nested")))

	resp, err := sqlite.GetEntity(tx, p, types.Fields(types.Ref(r.ID, types.Attr(ct.ID))))
	require.NoError(t, err)
	assert.Equal(t, types.Response{r.ID.String(): types.Response{ct.ID.String(): "nested"}}, resp)

	children, err := sqlite.ListEntities(tx, child.ID)
	require.NoError(t, err)
	assert.Len(t, children, 1)

	_, err = sqlite.AddEntity(tx, parent.ID, sqlitetest.Payload(r.ID, map[string]any{}))
	assert.ErrorIs(t, err, types.ErrMissingRequiredField, "nested payload is validated against the target schema")
}

func TestAddValue(t *testing.T) {
	tx := sqlitetest.Setup(t)
	schema := sqlitetest.CreateDefaultESD(t, tx)
	list := sqlitetest.NewASD().Quantity(types.List).Create(t, tx, schema)
	opt := sqlitetest.NewASD().Quantity(types.Optional).Create(t, tx, schema)
	e := sqlitetest.AddEntity(t, tx, schema, sqlitetest.Payload(list.ID, []any{"a"}, opt.ID, "first"))

	_, err := sqlite.AddValue(tx, e, list.ID, "b")
	require.NoError(t, err)

	resp, err := sqlite.GetEntity(tx, e, types.Fields(types.Attr(list.ID)))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, resp[list.ID.String()])

	_, err = sqlite.AddValue(tx, e, opt.ID, "second")
	assert.ErrorIs(t, err, types.ErrListArityViolation)

	_, err = sqlite.AddValue(tx, types.NewID(), list.ID, "x")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = sqlite.AddValue(tx, e, types.NewID(), "x")
	assert.ErrorIs(t, err, types.ErrUnknownAttribute)

	_, err = sqlite.AddValue(tx, e, list.ID, []any{"x"})
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestTriggersGuardDirectWrites(t *testing.T) {
	tx := sqlitetest.Setup(t)
	parent := sqlitetest.CreateDefaultESD(t, tx)
	child := sqlitetest.CreateDefaultESD(t, tx)
	other := sqlitetest.CreateDefaultESD(t, tx)
	a := sqlitetest.NewASD().Create(t, tx, parent)
	r := sqlitetest.NewRSD().Quantity(types.List).Create(t, tx, parent, child)
	foreign := sqlitetest.NewASD().Create(t, tx, other)
	o := sqlitetest.AddEntity(t, tx, other, sqlitetest.Payload(foreign.ID, "o"))
	e := sqlitetest.AddEntity(t, tx, parent, sqlitetest.Payload(a.ID, "x"))

	insert := func(table string, attr types.ID, value any) error {
		_, err := tx.Exec(
			"INSERT INTO "+table+" (id, entity, attribute_schema, value, created, updated) VALUES (?, ?, ?, ?, '', '')",
			types.NewID(), e, attr, value,
		)
		return err
	}

	assert.ErrorContains(t, insert("text_attribute", a.ID, "y"), "second entry to non-list field")
	assert.ErrorContains(t, insert("text_attribute", foreign.ID, "y"), "does not belong to the entity schema")
	assert.ErrorContains(t, insert("integer_attribute", a.ID, 1), "does not belong to the entity schema")
	assert.ErrorContains(t, insert("reference_attribute", r.ID, o), "wrong schema")
	assert.ErrorContains(t, insert("reference_attribute", r.ID, types.NewID()), "FOREIGN KEY")

	_, err := tx.Exec("DELETE FROM text_attribute WHERE entity = ?", e)
	assert.ErrorContains(t, err, "Cannot delete required field")
}
