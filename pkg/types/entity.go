package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entity is an instance of an entity schema. All content lives in the
// attribute value tables.
type Entity struct {
	ID     ID `json:"id"`
	Schema ID `json:"schema"`
}

// Field is one node of a field request: either a scalar leaf naming an
// attribute, or a reference walk with a nested request applied to the
// referenced entities.
type Field struct {
	Attribute ID
	Reference bool
	Request   FieldRequest
}

// FieldRequest selects which attributes of an entity to return.
type FieldRequest []Field

// Attr returns a leaf field for attribute a.
func Attr(a ID) Field {
	return Field{Attribute: a}
}

// Ref returns a reference field walking attribute a and applying sub to
// the referenced entities.
func Ref(a ID, sub ...Field) Field {
	return Field{Attribute: a, Reference: true, Request: FieldRequest(sub)}
}

// Fields builds a FieldRequest.
func Fields(fields ...Field) FieldRequest {
	return FieldRequest(fields)
}

type fieldJSON struct {
	Attribute ID           `json:"attribute"`
	Request   FieldRequest `json:"request"`
}

// MarshalJSON encodes a leaf as its attribute ID string and a reference as
// {"attribute": id, "request": [...]}.
func (f Field) MarshalJSON() ([]byte, error) {
	if !f.Reference {
		return json.Marshal(f.Attribute)
	}
	req := f.Request
	if req == nil {
		req = FieldRequest{}
	}
	return json.Marshal(fieldJSON{Attribute: f.Attribute, Request: req})
}

// UnmarshalJSON decodes either form produced by MarshalJSON.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id ID
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*f = Attr(id)
		return nil
	}
	var raw fieldJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding field request node: %w", err)
	}
	*f = Field{Attribute: raw.Attribute, Reference: true, Request: raw.Request}
	return nil
}

// Response is the structured result of an entity read, keyed by the
// canonical text form of attribute schema IDs. Values are strings, numbers,
// nested Responses for reference expansions, or arrays of those.
type Response map[string]any

// Get returns the value stored under attribute a.
func (r Response) Get(a ID) (any, bool) {
	v, ok := r[a.String()]
	return v, ok
}
