package types

import (
	"encoding/json"
	"fmt"
)

// Quantity is the arity qualifier of an attribute schema.
type Quantity string

// Attribute quantities.
const (
	Required Quantity = "Required"
	Optional Quantity = "Optional"
	List     Quantity = "List"
)

// ParseQuantity returns the Quantity for its storage token.
// Returns ErrInvalidQuantity if the token is not recognized.
func ParseQuantity(s string) (Quantity, error) {
	switch q := Quantity(s); q {
	case Required, Optional, List:
		return q, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
}

// Valid reports whether q is one of the defined quantities.
func (q Quantity) Valid() bool {
	_, err := ParseQuantity(string(q))
	return err == nil
}

// IsScalar reports whether at most one value may exist for the attribute.
func (q Quantity) IsScalar() bool {
	return q == Required || q == Optional
}

// SimpleType is a non-reference attribute type.
type SimpleType string

// Simple attribute types. Text and RichText share physical storage; the
// distinction only matters to renderers.
const (
	Text     SimpleType = "Text"
	RichText SimpleType = "RichText"
	Longform SimpleType = "Longform"
	Integer  SimpleType = "Integer"
	Number   SimpleType = "Number"
)

// ParseSimpleType returns the SimpleType for its storage token.
func ParseSimpleType(s string) (SimpleType, error) {
	switch t := SimpleType(s); t {
	case Text, RichText, Longform, Integer, Number:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAttributeType, s)
	}
}

// ReferenceTag is the storage token of reference attribute types.
const ReferenceTag = "Reference"

// ReferenceTarget identifies the entity schema a reference attribute points
// at. Name is a denormalized copy read through a join.
type ReferenceTarget struct {
	ID   ID     `json:"id"`
	Name string `json:"name,omitempty"`
}

// AttributeType is a tagged variant: exactly one of Simple or Reference is set.
type AttributeType struct {
	Simple    SimpleType       `json:"Simple,omitempty"`
	Reference *ReferenceTarget `json:"Reference,omitempty"`
}

// SimpleAttribute returns an AttributeType for a simple type.
func SimpleAttribute(t SimpleType) AttributeType {
	return AttributeType{Simple: t}
}

// ReferenceAttribute returns an AttributeType referencing the given entity schema.
func ReferenceAttribute(target ID) AttributeType {
	return AttributeType{Reference: &ReferenceTarget{ID: target}}
}

// IsReference reports whether t is a reference type.
func (t AttributeType) IsReference() bool {
	return t.Reference != nil
}

// Tag returns the storage token for t: the simple type name or "Reference".
func (t AttributeType) Tag() string {
	if t.Reference != nil {
		return ReferenceTag
	}
	return string(t.Simple)
}

// Validate checks that exactly one variant is set and the simple type is known.
func (t AttributeType) Validate() error {
	if t.Reference != nil {
		if t.Simple != "" {
			return fmt.Errorf("%w: both simple and reference set", ErrInvalidAttributeType)
		}
		return nil
	}
	_, err := ParseSimpleType(string(t.Simple))
	return err
}

// ParseAttributeType rebuilds an AttributeType from its stored columns.
// target and targetName are only read for the "Reference" tag.
func ParseAttributeType(tag string, target NullID, targetName string) (AttributeType, error) {
	if tag == ReferenceTag {
		if !target.Valid {
			return AttributeType{}, fmt.Errorf("%w: reference without target", ErrInvalidAttributeType)
		}
		return AttributeType{Reference: &ReferenceTarget{ID: target.ID, Name: targetName}}, nil
	}
	simple, err := ParseSimpleType(tag)
	if err != nil {
		return AttributeType{}, err
	}
	return AttributeType{Simple: simple}, nil
}

// String returns a readable form, e.g. "Text" or "Reference(<id>)".
func (t AttributeType) String() string {
	if t.Reference != nil {
		return fmt.Sprintf("%s(%s)", ReferenceTag, t.Reference.ID)
	}
	return string(t.Simple)
}

// UnmarshalJSON accepts both the tagged object form and a bare simple type
// name such as "Text".
func (t *AttributeType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		simple, err := ParseSimpleType(name)
		if err != nil {
			return err
		}
		*t = AttributeType{Simple: simple}
		return nil
	}
	type raw AttributeType
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*t = AttributeType(r)
	return t.Validate()
}
