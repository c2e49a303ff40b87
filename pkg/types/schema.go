package types

import "time"

// EntitySchema is a user-defined record type.
type EntitySchema struct {
	ID         ID                `json:"id"`
	Name       string            `json:"name"`
	Attributes []AttributeSchema `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Attribute returns the attribute schema with the given name.
func (s *EntitySchema) Attribute(name string) (AttributeSchema, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeSchema{}, false
}

// AttributeSchema is a typed field declared on an entity schema.
type AttributeSchema struct {
	ID           ID            `json:"id"`
	EntitySchema ID            `json:"entity_schema"` // Owning entity schema.
	Name         string        `json:"name"`          // Unique within the owner.
	Quantity     Quantity      `json:"quantity"`
	Type         AttributeType `json:"attr_type"`
}

// CreateEntitySchema is the input to entity schema creation.
type CreateEntitySchema struct {
	Name string `json:"name"`
}

// CreateAttributeSchema is the input to attribute schema creation. For
// reference types only Type.Reference.ID is read; the target name is
// resolved at creation time.
type CreateAttributeSchema struct {
	EntitySchema ID            `json:"entity_schema"`
	Name         string        `json:"name"`
	Quantity     Quantity      `json:"quantity"`
	Type         AttributeType `json:"attr_type"`
}

// SchemaMap is a snapshot of the attribute schemas of one entity schema,
// keyed by attribute schema ID. It is loaded per operation and never cached.
type SchemaMap map[ID]AttributeSchema
