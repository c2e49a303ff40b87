package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

// attributeColumns and attributeFrom select attribute schemas together with
// the name of their reference target.
const (
	attributeColumns = "a.id, a.entity_schema, a.name, a.type, a.reference, COALESCE(t.name, ''), a.quantity"
	attributeFrom    = "FROM attribute_schema a LEFT JOIN entity_schema t ON t.id = a.reference"
)

// CreateEntitySchema registers a new entity schema with no attributes.
// Returns ErrInvalidName for blank names and ErrDuplicateName when the name
// is taken.
func CreateEntitySchema(tx types.Tx, in types.CreateEntitySchema) (*types.EntitySchema, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, types.ErrInvalidName
	}

	now := time.Now()
	schema := &types.EntitySchema{
		ID:         types.NewID(),
		Name:       in.Name,
		Attributes: []types.AttributeSchema{},
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
	ts := timestamp(now)
	if _, err := tx.Exec(
		"INSERT INTO entity_schema (id, name, created, updated) VALUES (?, ?, ?, ?)",
		schema.ID, schema.Name, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("creating entity schema %q: %w", in.Name, translate(err))
	}
	return schema, nil
}

// GetEntitySchema loads an entity schema and its attribute schemas with a
// single join. Attributes are returned in creation order.
func GetEntitySchema(tx types.Tx, id types.ID) (*types.EntitySchema, error) {
	rows, err := tx.Query(`SELECT es.name, es.created, es.updated,
    a.id, a.entity_schema, a.name, a.type, a.reference, COALESCE(t.name, ''), a.quantity
FROM entity_schema es
LEFT JOIN attribute_schema a ON a.entity_schema = es.id
LEFT JOIN entity_schema t ON t.id = a.reference
WHERE es.id = ?
ORDER BY a.rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("getting entity schema %s: %w", id, err)
	}
	defer rows.Close()

	var schema *types.EntitySchema
	for rows.Next() {
		var (
			name, created, updated string
			attrID, owner, target  types.NullID
			attrName, tag, qty     sql.NullString
			targetName             string
		)
		if err := rows.Scan(&name, &created, &updated,
			&attrID, &owner, &attrName, &tag, &target, &targetName, &qty); err != nil {
			return nil, fmt.Errorf("scanning entity schema %s: %w", id, err)
		}
		if schema == nil {
			schema = &types.EntitySchema{
				ID:         id,
				Name:       name,
				Attributes: []types.AttributeSchema{},
				CreatedAt:  parseTimestamp(created),
				UpdatedAt:  parseTimestamp(updated),
			}
		}
		if !attrID.Valid {
			continue
		}
		attr, err := buildAttribute(attrID.ID, owner.ID, attrName.String, tag.String, target, targetName, qty.String)
		if err != nil {
			return nil, err
		}
		schema.Attributes = append(schema.Attributes, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity schema %s: %w", id, err)
	}
	if schema == nil {
		return nil, fmt.Errorf("entity schema %s: %w", id, types.ErrNotFound)
	}
	return schema, nil
}

// ListEntitySchemas returns every entity schema ordered by name, without
// attributes.
func ListEntitySchemas(tx types.Tx) ([]types.EntitySchema, error) {
	rows, err := tx.Query("SELECT id, name, created, updated FROM entity_schema ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing entity schemas: %w", err)
	}
	defer rows.Close()

	schemas := []types.EntitySchema{}
	for rows.Next() {
		var (
			s                types.EntitySchema
			created, updated string
		)
		if err := rows.Scan(&s.ID, &s.Name, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning entity schema: %w", err)
		}
		s.CreatedAt, s.UpdatedAt = parseTimestamp(created), parseTimestamp(updated)
		schemas = append(schemas, s)
	}
	return schemas, rows.Err()
}

// CreateAttributeSchema declares a new attribute on an existing entity
// schema. For reference types the target schema must exist; its name is
// resolved and returned in the result.
func CreateAttributeSchema(tx types.Tx, in types.CreateAttributeSchema) (*types.AttributeSchema, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, types.ErrInvalidName
	}
	if _, err := types.ParseQuantity(string(in.Quantity)); err != nil {
		return nil, err
	}
	if err := in.Type.Validate(); err != nil {
		return nil, err
	}
	if err := requireEntitySchema(tx, in.EntitySchema); err != nil {
		return nil, err
	}

	attr := &types.AttributeSchema{
		ID:           types.NewID(),
		EntitySchema: in.EntitySchema,
		Name:         in.Name,
		Quantity:     in.Quantity,
		Type:         in.Type,
	}

	var reference types.NullID
	if in.Type.IsReference() {
		target := in.Type.Reference.ID
		var name string
		err := tx.QueryRow("SELECT name FROM entity_schema WHERE id = ?", target).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attribute %q target %s: %w", in.Name, target, types.ErrUnknownTarget)
		}
		if err != nil {
			return nil, fmt.Errorf("resolving reference target %s: %w", target, err)
		}
		attr.Type = types.AttributeType{Reference: &types.ReferenceTarget{ID: target, Name: name}}
		reference = types.NullID{ID: target, Valid: true}
	}

	ts := timestamp(time.Now())
	if _, err := tx.Exec(`INSERT INTO attribute_schema
    (id, entity_schema, name, type, reference, quantity, created, updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		attr.ID, attr.EntitySchema, attr.Name, attr.Type.Tag(), reference, string(attr.Quantity), ts, ts,
	); err != nil {
		return nil, fmt.Errorf("creating attribute schema %q: %w", in.Name, translate(err))
	}
	if _, err := tx.Exec("UPDATE entity_schema SET updated = ? WHERE id = ?", ts, attr.EntitySchema); err != nil {
		return nil, fmt.Errorf("touching entity schema %s: %w", attr.EntitySchema, err)
	}
	return attr, nil
}

// GetAttributeSchema loads a single attribute schema.
func GetAttributeSchema(tx types.Tx, id types.ID) (*types.AttributeSchema, error) {
	row := tx.QueryRow("SELECT "+attributeColumns+" "+attributeFrom+" WHERE a.id = ?", id)
	attr, err := scanAttribute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attribute schema %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting attribute schema %s: %w", id, err)
	}
	return &attr, nil
}

// DeleteEntitySchema removes an entity schema. Its attribute schemas, its
// entities, attributes of other schemas that reference it and all their
// values go with it. Orphaned text blocks are pruned.
func DeleteEntitySchema(tx types.Tx, id types.ID) error {
	var entities int64
	if err := tx.QueryRow("SELECT COUNT(*) FROM entity WHERE schema = ?", id).Scan(&entities); err != nil {
		return fmt.Errorf("counting entities of schema %s: %w", id, err)
	}

	res, err := tx.Exec("DELETE FROM entity_schema WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entity schema %s: %w", id, translate(err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("deleting entity schema %s: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("entity schema %s: %w", id, types.ErrNotFound)
	}

	pruned, err := PruneOrphanBlocks(tx)
	if err != nil {
		return err
	}
	entitiesDeletedTotal.Add(float64(entities))

	log.WithFields(log.Fields{
		"schema":   id.String(),
		"entities": entities,
		"blocks":   pruned,
	}).Debug("deleted entity schema")
	return nil
}

// LoadSchemaMap returns the attribute schemas of an entity schema keyed by
// ID. Returns ErrNotFound if the schema does not exist.
func LoadSchemaMap(tx types.Tx, schemaID types.ID) (types.SchemaMap, error) {
	rows, err := tx.Query("SELECT "+attributeColumns+" "+attributeFrom+" WHERE a.entity_schema = ?", schemaID)
	if err != nil {
		return nil, fmt.Errorf("loading schema map %s: %w", schemaID, err)
	}
	m := types.SchemaMap{}
	for rows.Next() {
		attr, err := scanAttribute(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("loading schema map %s: %w", schemaID, err)
		}
		m[attr.ID] = attr
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading schema map %s: %w", schemaID, err)
	}

	if len(m) == 0 {
		if err := requireEntitySchema(tx, schemaID); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// LoadEntitySchemaMap resolves the schema of an entity and loads its schema
// map. Returns ErrNotFound if the entity does not exist.
func LoadEntitySchemaMap(tx types.Tx, entityID types.ID) (types.ID, types.SchemaMap, error) {
	schemaID, err := entitySchema(tx, entityID)
	if err != nil {
		return types.ID{}, nil, err
	}
	m, err := LoadSchemaMap(tx, schemaID)
	if err != nil {
		return types.ID{}, nil, err
	}
	return schemaID, m, nil
}

// entitySchema returns the schema ID of an entity.
func entitySchema(tx types.Tx, entityID types.ID) (types.ID, error) {
	var schemaID types.ID
	err := tx.QueryRow("SELECT schema FROM entity WHERE id = ?", entityID).Scan(&schemaID)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ID{}, fmt.Errorf("entity %s: %w", entityID, types.ErrNotFound)
	}
	if err != nil {
		return types.ID{}, fmt.Errorf("getting entity %s: %w", entityID, err)
	}
	return schemaID, nil
}

func requireEntitySchema(tx types.Tx, id types.ID) error {
	var one int
	err := tx.QueryRow("SELECT 1 FROM entity_schema WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("entity schema %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking entity schema %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttribute(s scanner) (types.AttributeSchema, error) {
	var (
		id, owner      types.ID
		name, tag, qty string
		target         types.NullID
		targetName     string
	)
	if err := s.Scan(&id, &owner, &name, &tag, &target, &targetName, &qty); err != nil {
		return types.AttributeSchema{}, err
	}
	return buildAttribute(id, owner, name, tag, target, targetName, qty)
}

func buildAttribute(id, owner types.ID, name, tag string, target types.NullID, targetName, qty string) (types.AttributeSchema, error) {
	attrType, err := types.ParseAttributeType(tag, target, targetName)
	if err != nil {
		return types.AttributeSchema{}, fmt.Errorf("attribute schema %s: %w", id, err)
	}
	quantity, err := types.ParseQuantity(qty)
	if err != nil {
		return types.AttributeSchema{}, fmt.Errorf("attribute schema %s: %w", id, err)
	}
	return types.AttributeSchema{
		ID:           id,
		EntitySchema: owner,
		Name:         name,
		Quantity:     quantity,
		Type:         attrType,
	}, nil
}
