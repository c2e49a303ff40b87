package sqlite

import (
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

// GetEntity reads the fields of one entity selected by req.
func GetEntity(tx types.Tx, entityID types.ID, req types.FieldRequest) (types.Response, error) {
	schemaID, err := entitySchema(tx, entityID)
	if err != nil {
		return nil, err
	}
	out, err := getMany(tx, schemaID, []types.ID{entityID}, req)
	if err != nil {
		return nil, err
	}
	return out[entityID], nil
}

// ListEntities returns the IDs of every entity of a schema in creation order.
func ListEntities(tx types.Tx, schemaID types.ID) ([]types.ID, error) {
	if err := requireEntitySchema(tx, schemaID); err != nil {
		return nil, err
	}
	rows, err := tx.Query("SELECT id FROM entity WHERE schema = ? ORDER BY rowid", schemaID)
	if err != nil {
		return nil, fmt.Errorf("listing entities of %s: %w", schemaID, err)
	}
	defer rows.Close()

	ids := []types.ID{}
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning entity of %s: %w", schemaID, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetEntities reads req for every entity of a schema in one batch.
func GetEntities(tx types.Tx, schemaID types.ID, req types.FieldRequest) (map[types.ID]types.Response, error) {
	ids, err := ListEntities(tx, schemaID)
	if err != nil {
		return nil, err
	}
	return getMany(tx, schemaID, ids, req)
}

// requestPlan is one level of a field request resolved against a schema
// map: leaves grouped by the table that stores them, and reference walks.
type requestPlan struct {
	leaves map[string][]types.AttributeSchema
	walks  []*walk
	fields []*planField
}

type walk struct {
	attr types.AttributeSchema
	sub  types.FieldRequest
}

// planField is one requested key in request order. A key requested both as
// a leaf and as a walk is expanded.
type planField struct {
	attr      types.AttributeSchema
	reference bool
}

// newRequestPlan validates req against schema. Leaves must name attributes
// of the schema; reference walks must name reference attributes with a
// scalar quantity.
func newRequestPlan(schema types.SchemaMap, req types.FieldRequest) (*requestPlan, error) {
	p := &requestPlan{leaves: map[string][]types.AttributeSchema{}}
	fields := map[types.ID]*planField{}
	walks := map[types.ID]*walk{}
	leaves := map[types.ID]bool{}

	for _, f := range req {
		attr, ok := schema[f.Attribute]
		if !ok {
			return nil, fmt.Errorf("field %s: %w", f.Attribute, types.ErrUnknownAttribute)
		}

		field, ok := fields[attr.ID]
		if !ok {
			field = &planField{attr: attr}
			fields[attr.ID] = field
			p.fields = append(p.fields, field)
		}

		if !f.Reference {
			if !leaves[attr.ID] {
				t := tableFor(attr.Type).name
				p.leaves[t] = append(p.leaves[t], attr)
				leaves[attr.ID] = true
			}
			continue
		}

		if !attr.Type.IsReference() {
			return nil, fmt.Errorf("field %s is %s, not a reference: %w", f.Attribute, attr.Type.Tag(), types.ErrTypeMismatch)
		}
		if attr.Quantity == types.List {
			return nil, fmt.Errorf("reading reference list %s: %w", f.Attribute, types.ErrUnsupported)
		}
		// Walks of one attribute share a single child read over the union
		// of their sub-requests.
		field.reference = true
		if w, ok := walks[attr.ID]; ok {
			w.sub = append(w.sub, f.Request...)
			continue
		}
		w := &walk{attr: attr, sub: append(types.FieldRequest{}, f.Request...)}
		walks[attr.ID] = w
		p.walks = append(p.walks, w)
	}
	return p, nil
}

// referenced returns the attributes whose reference_attribute rows this
// level needs: reference leaves and walks, deduplicated.
func (p *requestPlan) referenced() []types.AttributeSchema {
	attrs := append([]types.AttributeSchema(nil), p.leaves[referenceTable.name]...)
	for _, w := range p.walks {
		dup := false
		for _, a := range attrs {
			if a.ID == w.attr.ID {
				dup = true
				break
			}
		}
		if !dup {
			attrs = append(attrs, w.attr)
		}
	}
	return attrs
}

// getMany reads req for entities that all belong to schemaID. It issues at
// most one query per value table for this level and recurses once per
// reference walk.
func getMany(tx types.Tx, schemaID types.ID, ids []types.ID, req types.FieldRequest) (map[types.ID]types.Response, error) {
	out := make(map[types.ID]types.Response, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	schema, err := LoadSchemaMap(tx, schemaID)
	if err != nil {
		return nil, err
	}
	plan, err := newRequestPlan(schema, req)
	if err != nil {
		return nil, err
	}

	rm := newResponseMap()
	for _, table := range valueTables {
		attrs := plan.leaves[table.name]
		if table.name == referenceTable.name {
			attrs = plan.referenced()
		}
		if len(attrs) == 0 {
			continue
		}
		for _, batch := range batches(ids, readBatchSize) {
			if table.name == longformTable.name {
				err = readLongform(tx, batch, attrs, rm)
			} else {
				err = readValues(tx, table, batch, attrs, rm)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	values := rm.finalize()

	children := make(map[types.ID]map[types.ID]types.Response, len(plan.walks))
	for _, w := range plan.walks {
		var childIDs []types.ID
		seen := map[types.ID]bool{}
		for _, id := range ids {
			for _, v := range values.get(id, w.attr.ID) {
				child := v.(types.ID)
				if !seen[child] {
					seen[child] = true
					childIDs = append(childIDs, child)
				}
			}
		}
		sub, err := getMany(tx, w.attr.Type.Reference.ID, childIDs, w.sub)
		if err != nil {
			return nil, err
		}
		children[w.attr.ID] = sub
	}

	for _, id := range ids {
		resp := types.Response{}
		for _, f := range plan.fields {
			vals := values.get(id, f.attr.ID)
			if f.reference {
				if err := embedReference(resp, id, f.attr, vals, children[f.attr.ID]); err != nil {
					return nil, err
				}
				continue
			}
			if err := materialize(resp, id, f.attr, vals); err != nil {
				return nil, err
			}
		}
		out[id] = resp
	}
	return out, nil
}

// materialize shapes the values of one leaf by the attribute's quantity.
func materialize(resp types.Response, entity types.ID, attr types.AttributeSchema, vals []any) error {
	key := attr.ID.String()
	if attr.Type.IsReference() {
		texts := make([]any, len(vals))
		for i, v := range vals {
			texts[i] = v.(types.ID).String()
		}
		vals = texts
	}

	switch attr.Quantity {
	case types.List:
		list := make([]any, len(vals))
		copy(list, vals)
		resp[key] = list
	case types.Optional:
		switch len(vals) {
		case 0:
		case 1:
			resp[key] = vals[0]
		default:
			return fmt.Errorf("entity %s attribute %s has %d values: %w", entity, attr.ID, len(vals), types.ErrCardinalityViolation)
		}
	default:
		switch len(vals) {
		case 0:
			return fmt.Errorf("entity %s attribute %s: %w", entity, attr.ID, types.ErrMissingRequiredField)
		case 1:
			resp[key] = vals[0]
		default:
			return fmt.Errorf("entity %s attribute %s has %d values: %w", entity, attr.ID, len(vals), types.ErrCardinalityViolation)
		}
	}
	return nil
}

// embedReference places the expanded child of a reference walk under the
// attribute's key.
func embedReference(resp types.Response, entity types.ID, attr types.AttributeSchema, vals []any, children map[types.ID]types.Response) error {
	switch {
	case len(vals) == 1:
		resp[attr.ID.String()] = children[vals[0].(types.ID)]
	case len(vals) == 0 && attr.Quantity == types.Optional:
	default:
		return fmt.Errorf("entity %s reference %s has %d targets: %w", entity, attr.ID, len(vals), types.ErrCardinalityViolation)
	}
	return nil
}

// readValues issues one batched query against a scalar value table.
func readValues(tx types.Tx, table valueTable, ids []types.ID, attrs []types.AttributeSchema, rm *responseMap) error {
	query := fmt.Sprintf(`SELECT entity, attribute_schema, value FROM %s
WHERE entity IN (%s) AND attribute_schema IN (%s)
ORDER BY entity, attribute_schema, value`, table.name, placeholders(len(ids)), placeholders(len(attrs)))

	countQuery(table, ids, attrs)
	rows, err := tx.Query(query, append(idArgs(ids), attrArgs(attrs)...)...)
	if err != nil {
		return fmt.Errorf("reading %s: %w", table.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var entity, attr types.ID
		value, err := scanValue(rows, table, &entity, &attr)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", table.name, err)
		}
		rm.push(entity, attr, value)
	}
	return rows.Err()
}

func scanValue(rows scanner, table valueTable, entity, attr *types.ID) (any, error) {
	switch table.name {
	case integerTable.name:
		var v int64
		err := rows.Scan(entity, attr, &v)
		return v, err
	case numberTable.name:
		var v float64
		err := rows.Scan(entity, attr, &v)
		return v, err
	case referenceTable.name:
		var v types.ID
		err := rows.Scan(entity, attr, &v)
		return v, err
	default:
		var v string
		err := rows.Scan(entity, attr, &v)
		return v, err
	}
}

// readLongform reads every requested long-form value with one recursive
// query. Each value becomes the contents of its blocks joined with
// types.LongformSeparator.
func readLongform(tx types.Tx, ids []types.ID, attrs []types.AttributeSchema, rm *responseMap) error {
	query := fmt.Sprintf(`WITH RECURSIVE heads(id, entity, attribute_schema) AS (
    SELECT value, entity, attribute_schema FROM longform_attribute
    WHERE entity IN (%s) AND attribute_schema IN (%s)
), lines(head, id, content, next, depth) AS (
    SELECT h.id, tb.id, tb.content, tb.next, 0
    FROM textblock tb JOIN heads h ON tb.id = h.id
    UNION ALL
    SELECT l.head, tb.id, tb.content, tb.next, l.depth + 1
    FROM textblock tb JOIN lines l ON tb.id = l.next
)
SELECT h.entity, h.attribute_schema, h.id, l.content
FROM lines l JOIN heads h ON h.id = l.head
ORDER BY h.entity, h.attribute_schema, h.id, l.depth`, placeholders(len(ids)), placeholders(len(attrs)))

	countQuery(longformTable, ids, attrs)
	rows, err := tx.Query(query, append(idArgs(ids), attrArgs(attrs)...)...)
	if err != nil {
		return fmt.Errorf("reading %s: %w", longformTable.name, err)
	}

	type text struct {
		entity, attr, head types.ID
		lines              []string
	}
	var texts []*text
	var cur *text
	for rows.Next() {
		var (
			entity, attr, head types.ID
			content            string
		)
		if err := rows.Scan(&entity, &attr, &head, &content); err != nil {
			rows.Close()
			return fmt.Errorf("scanning %s: %w", longformTable.name, err)
		}
		if cur == nil || cur.head != head {
			cur = &text{entity: entity, attr: attr, head: head}
			texts = append(texts, cur)
		}
		cur.lines = append(cur.lines, content)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", longformTable.name, err)
	}

	for start := 0; start < len(texts); {
		end := start + 1
		for end < len(texts) && texts[end].entity == texts[start].entity && texts[end].attr == texts[start].attr {
			end++
		}
		// Order values within a group the way the scalar tables order them.
		values := make([]string, 0, end-start)
		for _, t := range texts[start:end] {
			values = append(values, strings.Join(t.lines, types.LongformSeparator))
		}
		sort.Strings(values)
		for _, v := range values {
			rm.push(texts[start].entity, texts[start].attr, v)
		}
		start = end
	}
	return nil
}

func countQuery(table valueTable, ids []types.ID, attrs []types.AttributeSchema) {
	queriesTotal.WithLabelValues(table.name).Inc()
	log.WithFields(log.Fields{
		"table":      table.name,
		"entities":   len(ids),
		"attributes": len(attrs),
	}).Debug("batched read")
}

// readBatchSize bounds the entity ids bound into one query, keeping every
// statement well under SQLite's host parameter limit.
var readBatchSize = 1000

// batches splits ids into consecutive slices of at most size ids.
func batches(ids []types.ID, size int) [][]types.ID {
	var out [][]types.ID
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// placeholders returns n comma-separated bind parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// valuesList returns a VALUES clause with n single-column rows.
func valuesList(n int) string {
	return "VALUES " + strings.TrimSuffix(strings.Repeat("(?), ", n), ", ")
}

func idArgs(ids []types.ID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func attrArgs(attrs []types.AttributeSchema) []any {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a.ID
	}
	return args
}
