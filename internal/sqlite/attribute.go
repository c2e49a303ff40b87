package sqlite

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

// insertValue writes one value of attr for entity, dispatching on the pair
// (attribute type, payload kind). It returns the value row ID. Nothing is
// written when the payload does not fit the attribute.
func insertValue(tx types.Tx, entity types.ID, attr types.AttributeSchema, payload any) (types.ID, error) {
	if attr.Type.IsReference() {
		return insertReference(tx, entity, attr, payload)
	}
	v, err := scalarValue(attr, payload)
	if err != nil {
		return types.ID{}, err
	}
	if attr.Type.Simple == types.Longform {
		head, err := createBlock(tx, v.(string))
		if err != nil {
			return types.ID{}, err
		}
		return insertRow(tx, longformTable, entity, attr.ID, head)
	}
	return insertRow(tx, tableFor(attr.Type), entity, attr.ID, v)
}

// scalarValue converts payload to the column value of a simple attribute.
func scalarValue(attr types.AttributeSchema, payload any) (any, error) {
	kind := types.KindOf(payload)
	if kind == types.KindBool || kind == types.KindNull {
		return nil, fmt.Errorf("attribute %s: %s payload: %w", attr.ID, kind, types.ErrUnsupported)
	}

	switch attr.Type.Simple {
	case types.Text, types.RichText, types.Longform:
		if s, ok := payload.(string); ok {
			return s, nil
		}
	case types.Integer:
		if n, ok := types.AsInt64(payload); ok {
			return n, nil
		}
	case types.Number:
		if f, ok := types.AsFloat64(payload); ok {
			return f, nil
		}
	default:
		return nil, fmt.Errorf("attribute %s: %w", attr.ID, types.ErrInvalidAttributeType)
	}
	return nil, mismatch(attr, kind)
}

// checkValue reports the error insertValue would return for payload
// without writing anything. Nested objects are checked against the target
// schema recursively.
func checkValue(tx types.Tx, attr types.AttributeSchema, payload any) error {
	if !attr.Type.IsReference() {
		_, err := scalarValue(attr, payload)
		return err
	}

	switch kind := types.KindOf(payload); kind {
	case types.KindBool, types.KindNull:
		return fmt.Errorf("attribute %s: %s payload: %w", attr.ID, kind, types.ErrUnsupported)
	case types.KindString:
		_, err := resolveReference(tx, attr, payload.(string))
		return err
	case types.KindObject:
		if _, err := checkEntity(tx, attr.Type.Reference.ID, payload); err != nil {
			return fmt.Errorf("attribute %s: nested entity: %w", attr.ID, err)
		}
		return nil
	default:
		return mismatch(attr, kind)
	}
}

// checkList is the read-only counterpart of insertList.
func checkList(tx types.Tx, attr types.AttributeSchema, items []any) error {
	if attr.Type.IsReference() || attr.Type.Simple == types.Longform {
		return fmt.Errorf("attribute %s: list of %s: %w", attr.ID, attr.Type.Tag(), types.ErrUnsupported)
	}
	for _, item := range items {
		if types.KindOf(item) == types.KindArray {
			return mismatch(attr, types.KindArray)
		}
		if err := checkValue(tx, attr, item); err != nil {
			return err
		}
	}
	return nil
}

// insertList writes every item of a list attribute. Long-form and reference
// lists are not supported.
func insertList(tx types.Tx, entity types.ID, attr types.AttributeSchema, items []any) error {
	if err := checkList(tx, attr, items); err != nil {
		return err
	}
	for _, item := range items {
		if _, err := insertValue(tx, entity, attr, item); err != nil {
			return err
		}
	}
	return nil
}

// insertReference accepts either the textual ID of an existing entity of
// the target schema, or an object that is written as a new entity of the
// target schema and then referenced.
func insertReference(tx types.Tx, entity types.ID, attr types.AttributeSchema, payload any) (types.ID, error) {
	switch kind := types.KindOf(payload); kind {
	case types.KindBool, types.KindNull:
		return types.ID{}, fmt.Errorf("attribute %s: %s payload: %w", attr.ID, kind, types.ErrUnsupported)
	case types.KindString:
		child, err := resolveReference(tx, attr, payload.(string))
		if err != nil {
			return types.ID{}, err
		}
		return insertRow(tx, referenceTable, entity, attr.ID, child)
	case types.KindObject:
		child, err := AddEntity(tx, attr.Type.Reference.ID, payload)
		if err != nil {
			return types.ID{}, fmt.Errorf("attribute %s: nested entity: %w", attr.ID, err)
		}
		return insertRow(tx, referenceTable, entity, attr.ID, child)
	default:
		return types.ID{}, mismatch(attr, kind)
	}
}

// resolveReference parses s and checks it names an entity of the
// attribute's target schema.
func resolveReference(tx types.Tx, attr types.AttributeSchema, s string) (types.ID, error) {
	target := attr.Type.Reference.ID
	child, err := types.ParseID(s)
	if err != nil {
		return types.ID{}, fmt.Errorf("attribute %s: %w: %w", attr.ID, types.ErrBadReference, err)
	}
	schemaID, err := entitySchema(tx, child)
	if err != nil {
		return types.ID{}, fmt.Errorf("attribute %s: %w: %w", attr.ID, types.ErrBadReference, err)
	}
	if schemaID != target {
		return types.ID{}, fmt.Errorf("attribute %s: entity %s has schema %s, want %s: %w",
			attr.ID, child, schemaID, target, types.ErrBadReference)
	}
	return child, nil
}

// insertRow appends one row to a value table.
func insertRow(tx types.Tx, table valueTable, entity, attr types.ID, value any) (types.ID, error) {
	id := types.NewID()
	ts := timestamp(time.Now())
	_, err := tx.Exec(
		"INSERT INTO "+table.name+" (id, entity, attribute_schema, value, created, updated) VALUES (?, ?, ?, ?, ?, ?)",
		id, entity, attr, value, ts, ts,
	)
	if err != nil {
		return types.ID{}, fmt.Errorf("inserting %s value for %s: %w", table.name, attr, translate(err))
	}
	return id, nil
}

func mismatch(attr types.AttributeSchema, kind types.ValueKind) error {
	return fmt.Errorf("attribute %s (%s) given %s: %w", attr.ID, attr.Type.Tag(), kind, types.ErrTypeMismatch)
}
