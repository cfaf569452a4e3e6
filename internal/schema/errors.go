package schema

import (
	"errors"
	"fmt"
)

// Reason classifies a schema violation.
type Reason string

const (
	ReasonNoColumns      Reason = "no columns declared"
	ReasonEmptyTable     Reason = "empty table name"
	ReasonEmptyName      Reason = "empty column name"
	ReasonDuplicateName  Reason = "duplicate column name"
	ReasonEmptyType      Reason = "empty type"
	ReasonUnknownKind    Reason = "unknown kind"
	ReasonIllegalParams  Reason = "illegal parameterization"
	ReasonBadParams      Reason = "malformed parameters"
	ReasonUnknownKey     Reason = "key column not declared"
	ReasonDuplicateKey   Reason = "duplicate key column"
	ReasonUnsupportedVal Reason = "unsupported value type"
)

// SchemaError reports an invalid declared schema or key tuple. It is never
// retried; loads that return it have issued no DDL or DML.
type SchemaError struct {
	Table  string
	Column string
	Type   string
	Reason Reason
}

func (e *SchemaError) Error() string {
	msg := "schema"
	if e.Table != "" {
		msg += " " + e.Table
	}
	if e.Column != "" {
		msg += fmt.Sprintf(": column %q", e.Column)
	}
	msg += ": " + string(e.Reason)
	if e.Type != "" {
		msg += fmt.Sprintf(" (%q)", e.Type)
	}
	return msg
}

// IsSchemaError reports whether err wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// reasonErr carries a bare Reason out of ParseType so callers can attach the
// column context.
type reasonErr Reason

func (r reasonErr) Error() string { return string(r) }

func reasonError(r Reason) error { return reasonErr(r) }

func reasonOf(err error) Reason {
	var r reasonErr
	if errors.As(err, &r) {
		return Reason(r)
	}
	return Reason(err.Error())
}
