// Package sqlite provides the public API for the SQLite entity store.
// It exposes the backend factory and the operation surface while keeping
// the storage layout internal.
//
// Every operation runs inside a caller-owned transaction:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".cortex-db",
//	})
//	defer backend.Detach()
//
//	err = backend.Update(func(tx types.Tx) error {
//	    schema, err := sqlite.CreateEntitySchema(tx, types.CreateEntitySchema{Name: "Note"})
//	    ...
//	})
package sqlite

import (
	"github.com/mesh-intelligence/cortex/internal/sqlite"
	"github.com/mesh-intelligence/cortex/pkg/types"
)

// Backend is the SQLite implementation of types.Store.
type Backend = sqlite.Backend

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return sqlite.NewBackend()
}

// Schema registry.

// CreateEntitySchema registers a new entity schema. Names are unique across
// the store; a clash returns types.ErrDuplicateName.
func CreateEntitySchema(tx types.Tx, in types.CreateEntitySchema) (*types.EntitySchema, error) {
	return sqlite.CreateEntitySchema(tx, in)
}

// GetEntitySchema returns the schema with its attribute schemas.
func GetEntitySchema(tx types.Tx, id types.ID) (*types.EntitySchema, error) {
	return sqlite.GetEntitySchema(tx, id)
}

// ListEntitySchemas returns every entity schema ordered by name.
func ListEntitySchemas(tx types.Tx) ([]types.EntitySchema, error) {
	return sqlite.ListEntitySchemas(tx)
}

// DeleteEntitySchema removes the schema with its attribute schemas, entities
// and values.
func DeleteEntitySchema(tx types.Tx, id types.ID) error {
	return sqlite.DeleteEntitySchema(tx, id)
}

// CreateAttributeSchema declares an attribute on an existing entity schema.
// Reference attributes must name an existing target schema.
func CreateAttributeSchema(tx types.Tx, in types.CreateAttributeSchema) (*types.AttributeSchema, error) {
	return sqlite.CreateAttributeSchema(tx, in)
}

// GetAttributeSchema returns one attribute schema by ID.
func GetAttributeSchema(tx types.Tx, id types.ID) (*types.AttributeSchema, error) {
	return sqlite.GetAttributeSchema(tx, id)
}

// LoadSchemaMap returns the attribute schemas of schemaID keyed by attribute
// ID.
func LoadSchemaMap(tx types.Tx, schemaID types.ID) (types.SchemaMap, error) {
	return sqlite.LoadSchemaMap(tx, schemaID)
}

// Entities.

// AddEntity validates payload against the schema and writes the entity with
// all its values. payload must decode to a JSON object.
func AddEntity(tx types.Tx, schemaID types.ID, payload any) (types.ID, error) {
	return sqlite.AddEntity(tx, schemaID, payload)
}

// AddEntityJSON decodes data as a single JSON object and adds it like
// AddEntity. Malformed input or trailing data returns
// types.ErrPayloadNotObject.
func AddEntityJSON(tx types.Tx, schemaID types.ID, data []byte) (types.ID, error) {
	return sqlite.AddEntityJSON(tx, schemaID, data)
}

// AddValue appends one value to an existing entity. Non-list attributes
// accept at most one value.
func AddValue(tx types.Tx, entity, attribute types.ID, payload any) (types.ID, error) {
	return sqlite.AddValue(tx, entity, attribute, payload)
}

// GetEntity reads the fields named by req for one entity.
func GetEntity(tx types.Tx, entityID types.ID, req types.FieldRequest) (types.Response, error) {
	return sqlite.GetEntity(tx, entityID, req)
}

// GetEntities reads the fields named by req for every entity of schemaID.
func GetEntities(tx types.Tx, schemaID types.ID, req types.FieldRequest) (map[types.ID]types.Response, error) {
	return sqlite.GetEntities(tx, schemaID, req)
}

// ListEntities returns the IDs of every entity of schemaID.
func ListEntities(tx types.Tx, schemaID types.ID) ([]types.ID, error) {
	return sqlite.ListEntities(tx, schemaID)
}

// DeleteEntity removes an entity and its values. It fails with
// types.ErrReferentialIntegrityViolation while another entity references it.
func DeleteEntity(tx types.Tx, id types.ID) error {
	return sqlite.DeleteEntity(tx, id)
}

// DeleteAttributeValue removes one value row. Removing the last value of a
// Required attribute is rejected.
func DeleteAttributeValue(tx types.Tx, valueID types.ID) error {
	return sqlite.DeleteAttributeValue(tx, valueID)
}

// Long-form blocks.

// GetLongform returns the block chain starting at longformID in order.
func GetLongform(tx types.Tx, longformID types.ID) (*types.LongformContent, error) {
	return sqlite.GetLongform(tx, longformID)
}

// GetBlock returns a single text block.
func GetBlock(tx types.Tx, id types.ID) (*types.TextBlock, error) {
	return sqlite.GetBlock(tx, id)
}

// CreateBlockAfter inserts an empty block directly after block and returns
// its ID.
func CreateBlockAfter(tx types.Tx, block types.ID) (types.ID, error) {
	return sqlite.CreateBlockAfter(tx, block)
}

// CreateBlockBefore inserts an empty block directly before block. When block
// heads a long-form value the new block becomes the head.
func CreateBlockBefore(tx types.Tx, block types.ID) (types.ID, error) {
	return sqlite.CreateBlockBefore(tx, block)
}

// SetBlockContent replaces the text of one block.
func SetBlockContent(tx types.Tx, block types.ID, content string) error {
	return sqlite.SetBlockContent(tx, block, content)
}

// PruneOrphanBlocks deletes block chains no long-form value points at and
// returns the number of blocks removed.
func PruneOrphanBlocks(tx types.Tx) (int64, error) {
	return sqlite.PruneOrphanBlocks(tx)
}

// LoadEntitySchemaMap returns the schema ID and attribute schemas of the
// schema an entity belongs to.
func LoadEntitySchemaMap(tx types.Tx, entityID types.ID) (types.ID, types.SchemaMap, error) {
	return sqlite.LoadEntitySchemaMap(tx, entityID)
}
