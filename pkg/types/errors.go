package types

import "errors"

// Validation errors. Returned before or instead of any write when a request
// is malformed.
var (
	ErrBadFormat            = errors.New("malformed identifier")
	ErrPayloadNotObject     = errors.New("payload is not an object")
	ErrUnknownAttribute     = errors.New("unknown attribute")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrListGivenForScalar   = errors.New("list given for scalar field")
	ErrBadReference         = errors.New("bad reference")
	ErrInvalidName          = errors.New("invalid name")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidAttributeType = errors.New("invalid attribute type")
	ErrInvalidFieldRequest  = errors.New("invalid field request")
)

// Integrity errors. Raised by storage triggers and foreign keys, or by the
// reader when stored data contradicts the schema.
var (
	ErrRequiredFieldViolation        = errors.New("cannot delete required field")
	ErrListArityViolation            = errors.New("second value for non-list field")
	ErrCardinalityViolation          = errors.New("reference cardinality violation")
	ErrReferentialIntegrityViolation = errors.New("entity is still referenced")
)

// Lookup errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("duplicate name")
	ErrUnknownTarget = errors.New("unknown reference target")
)

// Capability errors.
var (
	ErrUnsupported = errors.New("unsupported")
)

// Store lifecycle errors.
var (
	ErrDetached        = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)
