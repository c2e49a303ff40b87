package sqlite

import "github.com/mesh-intelligence/cortex/pkg/types"

// valueMap holds the values read for a batch of entities, keyed by entity
// and then by attribute schema.
type valueMap map[types.ID]map[types.ID][]any

// responseMap folds a stream of (entity, attribute, value) rows sorted by
// entity and attribute into a valueMap. A change of entity or attribute
// flushes the running group; finalize flushes the last one.
type responseMap struct {
	out     valueMap
	entity  types.ID
	attr    types.ID
	values  []any
	pending bool
}

func newResponseMap() *responseMap {
	return &responseMap{out: valueMap{}}
}

// push adds one row.
func (r *responseMap) push(entity, attr types.ID, value any) {
	if r.pending && (entity != r.entity || attr != r.attr) {
		r.flush()
	}
	r.entity, r.attr, r.pending = entity, attr, true
	r.values = append(r.values, value)
}

// finalize flushes the last group and returns the folded map. The
// responseMap must not be used afterwards.
func (r *responseMap) finalize() valueMap {
	if r.pending {
		r.flush()
	}
	return r.out
}

func (r *responseMap) flush() {
	attrs, ok := r.out[r.entity]
	if !ok {
		attrs = map[types.ID][]any{}
		r.out[r.entity] = attrs
	}
	attrs[r.attr] = append(attrs[r.attr], r.values...)
	r.values = nil
	r.pending = false
}

// get returns the values of attr for entity.
func (m valueMap) get(entity, attr types.ID) []any {
	return m[entity][attr]
}
