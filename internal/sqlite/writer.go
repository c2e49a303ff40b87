package sqlite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

// AddEntity writes a new entity of schemaID from payload, an object keyed by
// attribute schema IDs in canonical text form. Objects given for reference
// attributes are written as nested entities of the target schema.
//
// The whole payload, nested objects included, is checked against the schema
// maps before anything is written, so a rejected payload leaves no rows.
func AddEntity(tx types.Tx, schemaID types.ID, payload any) (types.ID, error) {
	p, err := checkEntity(tx, schemaID, payload)
	if err != nil {
		return types.ID{}, err
	}

	entity := types.NewID()
	ts := timestamp(time.Now())
	if _, err := tx.Exec(
		"INSERT INTO entity (id, schema, created, updated) VALUES (?, ?, ?, ?)",
		entity, schemaID, ts, ts,
	); err != nil {
		return types.ID{}, fmt.Errorf("creating entity of schema %s: %w", schemaID, translate(err))
	}

	for i, k := range p.keys {
		if err := writeField(tx, entity, p.attrs[i], p.obj[k]); err != nil {
			return types.ID{}, err
		}
	}

	entitiesAddedTotal.Inc()
	log.WithFields(log.Fields{
		"entity": entity.String(),
		"schema": schemaID.String(),
		"fields": len(p.keys),
	}).Debug("added entity")
	return entity, nil
}

// entityPayload is a payload checked against its schema map, with keys in
// write order.
type entityPayload struct {
	obj   map[string]any
	keys  []string
	attrs []types.AttributeSchema
}

// checkEntity validates payload for a new entity of schemaID without
// writing: required attributes must be present, every key must name an
// attribute of the schema, scalar attributes must not be given lists, and
// every value must fit its attribute.
func checkEntity(tx types.Tx, schemaID types.ID, payload any) (*entityPayload, error) {
	obj, ok := types.AsObject(payload)
	if !ok {
		return nil, fmt.Errorf("%s payload: %w", types.KindOf(payload), types.ErrPayloadNotObject)
	}

	schema, err := LoadSchemaMap(tx, schemaID)
	if err != nil {
		return nil, err
	}

	for id, attr := range schema {
		if attr.Quantity != types.Required {
			continue
		}
		if _, ok := obj[id.String()]; !ok {
			return nil, fmt.Errorf("attribute %s (%s): %w", attr.Name, id, types.ErrMissingRequiredField)
		}
	}

	p := &entityPayload{obj: obj, keys: make([]string, 0, len(obj))}
	for k := range obj {
		p.keys = append(p.keys, k)
	}
	sort.Strings(p.keys)

	p.attrs = make([]types.AttributeSchema, len(p.keys))
	for i, k := range p.keys {
		attr, err := lookupAttribute(schema, k)
		if err != nil {
			return nil, err
		}
		if attr.Quantity.IsScalar() && types.KindOf(obj[k]) == types.KindArray {
			return nil, fmt.Errorf("attribute %s (%s): %w", attr.Name, k, types.ErrListGivenForScalar)
		}
		p.attrs[i] = attr
	}
	for i, k := range p.keys {
		if items, ok := types.AsArray(obj[k]); ok {
			err = checkList(tx, p.attrs[i], items)
		} else {
			err = checkValue(tx, p.attrs[i], obj[k])
		}
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AddEntityJSON decodes data as a single JSON object and writes it with
// AddEntity. Numbers are decoded as json.Number so integers keep full
// precision. Malformed or trailing input is ErrPayloadNotObject.
func AddEntityJSON(tx types.Tx, schemaID types.ID, data []byte) (types.ID, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return types.ID{}, fmt.Errorf("decoding entity payload: %w: %w", types.ErrPayloadNotObject, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return types.ID{}, fmt.Errorf("decoding entity payload: %w: trailing data", types.ErrPayloadNotObject)
	}
	return AddEntity(tx, schemaID, payload)
}

// AddValue appends one value of attribute to an existing entity. Storage
// triggers reject a second value for a non-list attribute with
// ErrListArityViolation.
func AddValue(tx types.Tx, entity, attribute types.ID, payload any) (types.ID, error) {
	_, schema, err := LoadEntitySchemaMap(tx, entity)
	if err != nil {
		return types.ID{}, err
	}
	attr, ok := schema[attribute]
	if !ok {
		return types.ID{}, fmt.Errorf("attribute %s: %w", attribute, types.ErrUnknownAttribute)
	}
	if types.KindOf(payload) == types.KindArray {
		return types.ID{}, fmt.Errorf("attribute %s: %w", attribute, types.ErrTypeMismatch)
	}
	return insertValue(tx, entity, attr, payload)
}

// writeField writes one payload field. Empty lists create no rows.
func writeField(tx types.Tx, entity types.ID, attr types.AttributeSchema, value any) error {
	if items, ok := types.AsArray(value); ok {
		return insertList(tx, entity, attr, items)
	}
	_, err := insertValue(tx, entity, attr, value)
	return err
}

// lookupAttribute resolves a payload key. Keys must be the canonical text
// form of an attribute schema ID declared on the schema.
func lookupAttribute(schema types.SchemaMap, key string) (types.AttributeSchema, error) {
	id, err := types.ParseID(key)
	if err != nil {
		return types.AttributeSchema{}, fmt.Errorf("key %q: %w: %w", key, types.ErrUnknownAttribute, err)
	}
	attr, ok := schema[id]
	if !ok {
		return types.AttributeSchema{}, fmt.Errorf("key %q: %w", key, types.ErrUnknownAttribute)
	}
	return attr, nil
}
