// Package types defines the identifiers, schema and entity types, field
// requests, configuration and standard errors of the cortex entity store.
//
// Entity schemas are record types defined at runtime. Attribute schemas are
// typed fields declared on them; reference attributes point at another entity
// schema so schemas form a directed graph. Entities are bags of attribute
// values keyed by attribute-schema identifier.
package types
