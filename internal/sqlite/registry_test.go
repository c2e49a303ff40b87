package sqlite_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cortex/internal/sqlite"
	"github.com/mesh-intelligence/cortex/internal/sqlite/sqlitetest"
	"github.com/mesh-intelligence/cortex/pkg/types"
)

func TestCreateEntitySchema(t *testing.T) {
	tx := sqlitetest.Setup(t)

	s, err := sqlite.CreateEntitySchema(tx, types.CreateEntitySchema{Name: "Note"})
	require.NoError(t, err)
	assert.False(t, s.ID.IsZero())
	assert.Equal(t, "Note", s.Name)
	assert.Empty(t, s.Attributes)

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"duplicate name", "Note", types.ErrDuplicateName},
		{"empty name", "", types.ErrInvalidName},
		{"whitespace name", "  \t", types.ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sqlite.CreateEntitySchema(tx, types.CreateEntitySchema{Name: tt.input})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetEntitySchema(t *testing.T) {
	tx := sqlitetest.Setup(t)

	author := sqlitetest.NewESD().Name("Author").Create(t, tx)
	book := sqlitetest.NewESD().Name("Book").Create(t, tx)
	title := sqlitetest.NewASD().Name("title").Create(t, tx, book)
	tags := sqlitetest.NewASD().Name("tags").Quantity(types.List).Create(t, tx, book)
	by := sqlitetest.NewRSD().Name("author").Quantity(types.Optional).Create(t, tx, book, author)

	got, err := sqlite.GetEntitySchema(tx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Book", got.Name)
	require.Len(t, got.Attributes, 3)
	assert.Equal(t, []types.AttributeSchema{title, tags, by}, got.Attributes)

	ref := got.Attributes[2].Type.Reference
	require.NotNil(t, ref)
	assert.Equal(t, author.ID, ref.ID)
	assert.Equal(t, "Author", ref.Name)

	empty, err := sqlite.GetEntitySchema(tx, author.ID)
	require.NoError(t, err)
	assert.Empty(t, empty.Attributes)

	_, err = sqlite.GetEntitySchema(tx, types.NewID())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListEntitySchemas(t *testing.T) {
	tx := sqlitetest.Setup(t)

	schemas, err := sqlite.ListEntitySchemas(tx)
	require.NoError(t, err)
	assert.Empty(t, schemas)

	for _, name := range []string{"Zebra", "Apple", "Mango"} {
		sqlitetest.NewESD().Name(name).Create(t, tx)
	}
	schemas, err = sqlite.ListEntitySchemas(tx)
	require.NoError(t, err)
	require.Len(t, schemas, 3)
	assert.Equal(t, "Apple", schemas[0].Name)
	assert.Equal(t, "Mango", schemas[1].Name)
	assert.Equal(t, "Zebra", schemas[2].Name)
}

func TestCreateAttributeSchema(t *testing.T) {
	tx := sqlitetest.Setup(t)
	owner := sqlitetest.CreateDefaultESD(t, tx)
	other := sqlitetest.CreateDefaultESD(t, tx)
	sqlitetest.NewASD().Name("title").Create(t, tx, owner)

	tests := []struct {
		name    string
		input   types.CreateAttributeSchema
		wantErr error
	}{
		{
			name:    "duplicate name within owner",
			input:   types.CreateAttributeSchema{EntitySchema: owner.ID, Name: "title", Quantity: types.Optional, Type: types.SimpleAttribute(types.Text)},
			wantErr: types.ErrDuplicateName,
		},
		{
			name:  "same name on another owner",
			input: types.CreateAttributeSchema{EntitySchema: other.ID, Name: "title", Quantity: types.Optional, Type: types.SimpleAttribute(types.Text)},
		},
		{
			name:    "unknown reference target",
			input:   types.CreateAttributeSchema{EntitySchema: owner.ID, Name: "ref", Quantity: types.Required, Type: types.ReferenceAttribute(types.NewID())},
			wantErr: types.ErrUnknownTarget,
		},
		{
			name:    "missing owner",
			input:   types.CreateAttributeSchema{EntitySchema: types.NewID(), Name: "x", Quantity: types.Required, Type: types.SimpleAttribute(types.Text)},
			wantErr: types.ErrNotFound,
		},
		{
			name:    "blank name",
			input:   types.CreateAttributeSchema{EntitySchema: owner.ID, Name: " ", Quantity: types.Required, Type: types.SimpleAttribute(types.Text)},
			wantErr: types.ErrInvalidName,
		},
		{
			name:    "unknown quantity",
			input:   types.CreateAttributeSchema{EntitySchema: owner.ID, Name: "q", Quantity: "Many", Type: types.SimpleAttribute(types.Text)},
			wantErr: types.ErrInvalidQuantity,
		},
		{
			name:    "unknown type",
			input:   types.CreateAttributeSchema{EntitySchema: owner.ID, Name: "t", Quantity: types.Required, Type: types.SimpleAttribute("Blob")},
			wantErr: types.ErrInvalidAttributeType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr, err := sqlite.CreateAttributeSchema(tx, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input.Name, attr.Name)
			assert.Equal(t, tt.input.EntitySchema, attr.EntitySchema)
		})
	}
}

func TestCreateReferenceResolvesTargetName(t *testing.T) {
	tx := sqlitetest.Setup(t)
	parent := sqlitetest.NewESD().Name("Parent").Create(t, tx)
	child := sqlitetest.NewESD().Name("Child").Create(t, tx)

	ref := sqlitetest.NewRSD().Create(t, tx, parent, child)
	require.True(t, ref.Type.IsReference())
	assert.Equal(t, "Child", ref.Type.Reference.Name)

	got, err := sqlite.GetAttributeSchema(tx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, ref, *got)

	_, err = sqlite.GetAttributeSchema(tx, types.NewID())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLoadSchemaMap(t *testing.T) {
	tx := sqlitetest.Setup(t)
	schema := sqlitetest.CreateDefaultESD(t, tx)
	a := sqlitetest.NewASD().Create(t, tx, schema)
	b := sqlitetest.NewASD().Quantity(types.List).AttrType(types.Integer).Create(t, tx, schema)

	m, err := sqlite.LoadSchemaMap(tx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SchemaMap{a.ID: a, b.ID: b}, m)

	empty := sqlitetest.CreateDefaultESD(t, tx)
	m, err = sqlite.LoadSchemaMap(tx, empty.ID)
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = sqlite.LoadSchemaMap(tx, types.NewID())
	assert.ErrorIs(t, err, types.ErrNotFound)

	e := sqlitetest.AddEntity(t, tx, schema, sqlitetest.Payload(a.ID, "x"))
	schemaID, m, err := sqlite.LoadEntitySchemaMap(tx, e)
	require.NoError(t, err)
	assert.Equal(t, schema.ID, schemaID)
	assert.Len(t, m, 2)

	_, _, err = sqlite.LoadEntitySchemaMap(tx, types.NewID())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteEntitySchemaCascades(t *testing.T) {
	tx := sqlitetest.Setup(t)
	parent := sqlitetest.NewESD().Name("Parent").Create(t, tx)
	child := sqlitetest.NewESD().Name("Child").Create(t, tx)

	label := sqlitetest.NewASD().Create(t, tx, parent)
	ref := sqlitetest.NewRSD().Create(t, tx, parent, child)
	body := sqlitetest.NewASD().AttrType(types.Longform).Create(t, tx, child)

	c := sqlitetest.AddEntity(t, tx, child, sqlitetest.Payload(body.ID, "text"))
	p := sqlitetest.AddEntity(t, tx, parent, sqlitetest.Payload(label.ID, "p", ref.ID, c.String()))

	require.NoError(t, sqlite.DeleteEntitySchema(tx, child.ID))

	_, err := sqlite.GetEntitySchema(tx, child.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = sqlite.GetEntity(tx, c, nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = sqlite.GetAttributeSchema(tx, ref.ID)
	assert.ErrorIs(t, err, types.ErrNotFound, "reference into a deleted schema goes with it")

	resp, err := sqlite.GetEntity(tx, p, types.Fields(types.Attr(label.ID)))
	require.NoError(t, err)
	sqlitetest.AssertStringKey(t, resp, label.ID, "p")

	assert.Equal(t, 0, count(t, tx, "textblock"))
	assert.Equal(t, 0, count(t, tx, "reference_attribute"))

	assert.ErrorIs(t, sqlite.DeleteEntitySchema(tx, child.ID), types.ErrNotFound)
}

// count returns the number of rows in table.
func count(t testing.TB, tx types.Tx, table string) int {
	t.Helper()
	var n int
	require.NoError(t, tx.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// queryID runs a query returning a single ID.
func queryID(t testing.TB, tx types.Tx, query string, args ...any) types.ID {
	t.Helper()
	var id types.ID
	require.NoError(t, tx.QueryRow(query, args...).Scan(&id))
	return id
}
