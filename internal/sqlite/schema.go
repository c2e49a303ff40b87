package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

// Messages raised by triggers. Error translation matches on them.
const (
	msgRequiredField = "Cannot delete required field"
	msgNonListField  = "Attempted to add second entry to non-list field"
	msgWrongSchema   = "Attribute does not belong to the entity schema"
	msgBadReference  = "Referenced entity has the wrong schema"
)

// Schema DDL for the registry, entity and block tables.
const (
	createEntitySchema = `CREATE TABLE IF NOT EXISTS entity_schema (
    id BLOB PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created TEXT NOT NULL,
    updated TEXT NOT NULL
);`

	createAttributeSchema = `CREATE TABLE IF NOT EXISTS attribute_schema (
    id BLOB PRIMARY KEY,
    entity_schema BLOB NOT NULL REFERENCES entity_schema(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    reference BLOB REFERENCES entity_schema(id) ON DELETE CASCADE,
    quantity TEXT NOT NULL CHECK (quantity IN ('Required', 'Optional', 'List')),
    created TEXT NOT NULL,
    updated TEXT NOT NULL,
    UNIQUE (entity_schema, name),
    CHECK ((type = 'Reference') = (reference IS NOT NULL))
);`

	createEntity = `CREATE TABLE IF NOT EXISTS entity (
    id BLOB PRIMARY KEY,
    schema BLOB NOT NULL REFERENCES entity_schema(id) ON DELETE CASCADE,
    created TEXT NOT NULL,
    updated TEXT NOT NULL
);`

	createTextBlock = `CREATE TABLE IF NOT EXISTS textblock (
    id BLOB PRIMARY KEY,
    content TEXT NOT NULL,
    next BLOB UNIQUE REFERENCES textblock(id) ON DELETE SET NULL,
    created TEXT NOT NULL,
    updated TEXT NOT NULL
);`
)

// valueTable describes one physical attribute value table.
type valueTable struct {
	name      string
	valueType string   // Column declaration of value.
	tags      []string // Attribute type tags stored here.
}

// Value tables in a fixed order. Reads and deletions iterate them in this
// order so query counts and plans are deterministic.
var (
	textTable      = valueTable{"text_attribute", "TEXT NOT NULL", []string{string(types.Text), string(types.RichText)}}
	integerTable   = valueTable{"integer_attribute", "INTEGER NOT NULL", []string{string(types.Integer)}}
	numberTable    = valueTable{"number_attribute", "REAL NOT NULL", []string{string(types.Number)}}
	referenceTable = valueTable{"reference_attribute", "BLOB NOT NULL REFERENCES entity(id)", []string{types.ReferenceTag}}
	longformTable  = valueTable{"longform_attribute", "BLOB NOT NULL REFERENCES textblock(id)", []string{string(types.Longform)}}

	valueTables = []valueTable{textTable, integerTable, numberTable, referenceTable, longformTable}
)

// tableFor returns the value table holding values of type t.
func tableFor(t types.AttributeType) valueTable {
	if t.IsReference() {
		return referenceTable
	}
	switch t.Simple {
	case types.Integer:
		return integerTable
	case types.Number:
		return numberTable
	case types.Longform:
		return longformTable
	default:
		return textTable
	}
}

func (v valueTable) createTable() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BLOB PRIMARY KEY,
    entity BLOB NOT NULL REFERENCES entity(id) ON DELETE CASCADE,
    attribute_schema BLOB NOT NULL REFERENCES attribute_schema(id) ON DELETE CASCADE,
    value %s,
    created TEXT NOT NULL,
    updated TEXT NOT NULL
);`, v.name, v.valueType)
}

func (v valueTable) createIndex() string {
	return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_entity ON %s(entity, attribute_schema);`, v.name, v.name)
}

// singleCheck rejects a second row for a non-list attribute of one entity.
func (v valueTable) singleCheck() string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_single_check BEFORE INSERT ON %[1]s
WHEN (SELECT quantity FROM attribute_schema WHERE id = NEW.attribute_schema) != 'List'
    AND EXISTS (SELECT 1 FROM %[1]s WHERE entity = NEW.entity AND attribute_schema = NEW.attribute_schema)
BEGIN
    SELECT RAISE(ABORT, '%[2]s');
END;`, v.name, msgNonListField)
}

// requiredCheck rejects deleting a required value while both its entity and
// its attribute schema still exist. Cascades from either side pass because
// the parent row is already gone when the cascade runs.
func (v valueTable) requiredCheck() string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_required_check BEFORE DELETE ON %[1]s
WHEN (SELECT quantity FROM attribute_schema WHERE id = OLD.attribute_schema) = 'Required'
    AND EXISTS (SELECT 1 FROM entity WHERE id = OLD.entity)
BEGIN
    SELECT RAISE(ABORT, '%[2]s');
END;`, v.name, msgRequiredField)
}

// schemaCheck rejects values whose attribute schema is not declared on the
// entity's schema, or whose declared type is not stored in this table.
func (v valueTable) schemaCheck() string {
	tags := ""
	for i, t := range v.tags {
		if i > 0 {
			tags += ", "
		}
		tags += "'" + t + "'"
	}
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_schema_check BEFORE INSERT ON %[1]s
WHEN NOT EXISTS (
    SELECT 1 FROM entity e
    JOIN attribute_schema a ON a.entity_schema = e.schema
    WHERE e.id = NEW.entity AND a.id = NEW.attribute_schema AND a.type IN (%[2]s)
)
BEGIN
    SELECT RAISE(ABORT, '%[3]s');
END;`, v.name, tags, msgWrongSchema)
}

// A missing target falls through to the foreign key on value.
const referenceCheck = `CREATE TRIGGER IF NOT EXISTS reference_attribute_reference_check BEFORE INSERT ON reference_attribute
WHEN EXISTS (SELECT 1 FROM entity WHERE id = NEW.value)
    AND (SELECT schema FROM entity WHERE id = NEW.value)
        IS NOT (SELECT reference FROM attribute_schema WHERE id = NEW.attribute_schema)
BEGIN
    SELECT RAISE(ABORT, '` + msgBadReference + `');
END;`

// Index DDL for the registry and entity tables.
const (
	idxAttributeSchemaOwner = `CREATE INDEX IF NOT EXISTS idx_attribute_schema_owner ON attribute_schema(entity_schema);`
	idxEntitySchema         = `CREATE INDEX IF NOT EXISTS idx_entity_schema ON entity(schema);`
	idxReferenceValue       = `CREATE INDEX IF NOT EXISTS idx_reference_attribute_value ON reference_attribute(value);`
	idxLongformValue        = `CREATE INDEX IF NOT EXISTS idx_longform_attribute_value ON longform_attribute(value);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
func schemaDDL() []string {
	ddl := []string{createEntitySchema, createAttributeSchema, createEntity, createTextBlock}
	for _, v := range valueTables {
		ddl = append(ddl, v.createTable())
	}
	return ddl
}

// indexDDL lists all CREATE INDEX statements.
func indexDDL() []string {
	ddl := []string{idxAttributeSchemaOwner, idxEntitySchema, idxReferenceValue, idxLongformValue}
	for _, v := range valueTables {
		ddl = append(ddl, v.createIndex())
	}
	return ddl
}

// triggerDDL lists all CREATE TRIGGER statements.
func triggerDDL() []string {
	var ddl []string
	for _, v := range valueTables {
		ddl = append(ddl, v.singleCheck(), v.requiredCheck(), v.schemaCheck())
	}
	return append(ddl, referenceCheck)
}
