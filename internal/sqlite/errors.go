package sqlite

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

// translate maps storage failures onto the store's error taxonomy. The
// driver error stays in the chain so callers can still inspect it.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}

	var kind error
	msg := se.Error()
	switch code := se.Code(); {
	case strings.Contains(msg, msgRequiredField):
		kind = types.ErrRequiredFieldViolation
	case strings.Contains(msg, msgNonListField):
		kind = types.ErrListArityViolation
	case strings.Contains(msg, msgWrongSchema):
		kind = types.ErrUnknownAttribute
	case strings.Contains(msg, msgBadReference):
		kind = types.ErrBadReference
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY || strings.Contains(msg, "FOREIGN KEY constraint failed"):
		kind = types.ErrReferentialIntegrityViolation
	case (code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || strings.Contains(msg, "UNIQUE constraint failed")) && duplicateName(msg):
		kind = types.ErrDuplicateName
	default:
		return err
	}

	integrityViolationsTotal.WithLabelValues(violationKind(kind)).Inc()
	return fmt.Errorf("%w: %w", kind, err)
}

// Columns whose uniqueness is a naming rule. Other UNIQUE violations, such
// as two blocks sharing a successor, are storage faults.
var nameConstraints = []string{
	"entity_schema.name",
	"attribute_schema.entity_schema, attribute_schema.name",
}

func duplicateName(msg string) bool {
	for _, c := range nameConstraints {
		if strings.HasSuffix(msg, c) || strings.Contains(msg, c+" ") || strings.Contains(msg, c+")") {
			return true
		}
	}
	return false
}

func violationKind(err error) string {
	switch err {
	case types.ErrRequiredFieldViolation:
		return "required_field"
	case types.ErrListArityViolation:
		return "list_arity"
	case types.ErrUnknownAttribute:
		return "schema"
	case types.ErrBadReference:
		return "reference"
	case types.ErrReferentialIntegrityViolation:
		return "foreign_key"
	default:
		return "unique"
	}
}
