// Package sqlitetest provides fixtures for tests of the SQLite store: fresh
// in-memory databases and chainable builders for entity, attribute and
// reference attribute schemas.
package sqlitetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cortex/internal/sqlite"
	"github.com/mesh-intelligence/cortex/pkg/types"
)

// NewBackend returns a Backend attached to a private in-memory database.
// It is detached when the test ends.
func NewBackend(t testing.TB) *sqlite.Backend {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: types.InMemory}))
	t.Cleanup(func() { _ = b.Detach() })
	return b
}

// Setup returns an open transaction on a fresh, migrated in-memory
// database. The transaction is rolled back when the test ends.
func Setup(t testing.TB) types.Tx {
	t.Helper()
	b := NewBackend(t)
	tx, err := b.DB().Begin()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

// ESD builds entity schemas.
type ESD struct {
	name string
}

// NewESD returns a builder with a unique default name.
func NewESD() *ESD {
	return &ESD{name: "Schema " + types.NewID().Compact()[:8]}
}

// Name sets the schema name.
func (e *ESD) Name(name string) *ESD {
	e.name = name
	return e
}

// Create registers the schema and fails the test on error.
func (e *ESD) Create(t testing.TB, tx types.Tx) *types.EntitySchema {
	t.Helper()
	s, err := sqlite.CreateEntitySchema(tx, types.CreateEntitySchema{Name: e.name})
	require.NoError(t, err)
	return s
}

// CreateDefaultESD registers an entity schema with a unique name.
func CreateDefaultESD(t testing.TB, tx types.Tx) *types.EntitySchema {
	t.Helper()
	return NewESD().Create(t, tx)
}

// ASD builds simple attribute schemas. Defaults are a unique name,
// Required and Text.
type ASD struct {
	name     string
	quantity types.Quantity
	attrType types.SimpleType
}

// NewASD returns a builder with default settings.
func NewASD() *ASD {
	return &ASD{
		name:     "attr " + types.NewID().Compact()[:8],
		quantity: types.Required,
		attrType: types.Text,
	}
}

// Name sets the attribute name.
func (a *ASD) Name(name string) *ASD {
	a.name = name
	return a
}

// Quantity sets the attribute quantity.
func (a *ASD) Quantity(q types.Quantity) *ASD {
	a.quantity = q
	return a
}

// AttrType sets the simple attribute type.
func (a *ASD) AttrType(t types.SimpleType) *ASD {
	a.attrType = t
	return a
}

// Create declares the attribute on schema and fails the test on error.
func (a *ASD) Create(t testing.TB, tx types.Tx, schema *types.EntitySchema) types.AttributeSchema {
	t.Helper()
	attr, err := sqlite.CreateAttributeSchema(tx, types.CreateAttributeSchema{
		EntitySchema: schema.ID,
		Name:         a.name,
		Quantity:     a.quantity,
		Type:         types.SimpleAttribute(a.attrType),
	})
	require.NoError(t, err)
	return *attr
}

// RSD builds reference attribute schemas. Defaults are a unique name and
// Required.
type RSD struct {
	name     string
	quantity types.Quantity
}

// NewRSD returns a builder with default settings.
func NewRSD() *RSD {
	return &RSD{name: "ref " + types.NewID().Compact()[:8], quantity: types.Required}
}

// Name sets the attribute name.
func (r *RSD) Name(name string) *RSD {
	r.name = name
	return r
}

// Quantity sets the attribute quantity.
func (r *RSD) Quantity(q types.Quantity) *RSD {
	r.quantity = q
	return r
}

// Create declares a reference from owner to target and fails the test on
// error.
func (r *RSD) Create(t testing.TB, tx types.Tx, owner, target *types.EntitySchema) types.AttributeSchema {
	t.Helper()
	attr, err := sqlite.CreateAttributeSchema(tx, types.CreateAttributeSchema{
		EntitySchema: owner.ID,
		Name:         r.name,
		Quantity:     r.quantity,
		Type:         types.ReferenceAttribute(target.ID),
	})
	require.NoError(t, err)
	return *attr
}

// AddEntity writes payload as an entity of schema and fails the test on
// error.
func AddEntity(t testing.TB, tx types.Tx, schema *types.EntitySchema, payload map[string]any) types.ID {
	t.Helper()
	id, err := sqlite.AddEntity(tx, schema.ID, payload)
	require.NoError(t, err)
	return id
}

// AssertStringKey checks that resp holds the string expected under attr.
func AssertStringKey(t testing.TB, resp types.Response, attr types.ID, expected string) {
	t.Helper()
	v, ok := resp.Get(attr)
	require.Truef(t, ok, "response has no key %s: %v", attr, resp)
	require.Equal(t, expected, v)
}

// Payload builds an entity payload from alternating attribute IDs and
// values.
func Payload(pairs ...any) map[string]any {
	p := map[string]any{}
	for i := 0; i+1 < len(pairs); i += 2 {
		p[pairs[i].(types.ID).String()] = pairs[i+1]
	}
	return p
}
