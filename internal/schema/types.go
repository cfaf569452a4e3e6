// Package schema describes destination tables: declared column types, the
// closed set of row values accepted by the loader, table contracts, and the
// reconciliation of loosely shaped row batches against a declared layout.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the base keyword of a declared column type.
type Kind string

const (
	KindInteger   Kind = "INTEGER"
	KindBigint    Kind = "BIGINT"
	KindSmallint  Kind = "SMALLINT"
	KindNumeric   Kind = "NUMERIC"
	KindDate      Kind = "DATE"
	KindTimestamp Kind = "TIMESTAMP"
	KindBoolean   Kind = "BOOLEAN"
	KindText      Kind = "TEXT"
	KindVarchar   Kind = "VARCHAR"
)

var allowedKinds = map[Kind]struct{}{
	KindInteger:   {},
	KindBigint:    {},
	KindSmallint:  {},
	KindNumeric:   {},
	KindDate:      {},
	KindTimestamp: {},
	KindBoolean:   {},
	KindText:      {},
	KindVarchar:   {},
}

// Parameterized reports whether the kind accepts (p) or (p,s) arguments.
func (k Kind) Parameterized() bool {
	return k == KindNumeric || k == KindVarchar
}

// ColumnType is a parsed type descriptor such as VARCHAR(255) or NUMERIC(10,2).
type ColumnType struct {
	Kind   Kind
	Params []int
}

// String renders the canonical upper-case form used in DDL.
func (t ColumnType) String() string {
	if len(t.Params) == 0 {
		return string(t.Kind)
	}
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = strconv.Itoa(p)
	}
	return fmt.Sprintf("%s(%s)", t.Kind, strings.Join(parts, ","))
}

// ParseType parses a declared type string. The base keyword is the text
// before the first "(", trimmed and compared case-insensitively.
func ParseType(raw string) (ColumnType, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ColumnType{}, reasonError(ReasonEmptyType)
	}

	base, args, hasParens := strings.Cut(s, "(")
	kind := Kind(strings.ToUpper(strings.TrimSpace(base)))
	if _, ok := allowedKinds[kind]; !ok {
		return ColumnType{}, reasonError(ReasonUnknownKind)
	}
	if !hasParens {
		return ColumnType{Kind: kind}, nil
	}
	if !kind.Parameterized() {
		return ColumnType{}, reasonError(ReasonIllegalParams)
	}

	args = strings.TrimSpace(args)
	if !strings.HasSuffix(args, ")") {
		return ColumnType{}, reasonError(ReasonBadParams)
	}
	fields := strings.Split(strings.TrimSuffix(args, ")"), ",")
	if len(fields) > 2 || (kind == KindVarchar && len(fields) != 1) {
		return ColumnType{}, reasonError(ReasonBadParams)
	}
	params := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 {
			return ColumnType{}, reasonError(ReasonBadParams)
		}
		params = append(params, n)
	}
	if params[0] == 0 || (len(params) == 2 && params[1] > params[0]) {
		return ColumnType{}, reasonError(ReasonBadParams)
	}
	return ColumnType{Kind: kind, Params: params}, nil
}

// Column is one declared column: its name and raw type descriptor.
type Column struct {
	Name string
	Type string
}

// ColumnSchema is an ordered list of declared columns.
type ColumnSchema []Column

// Names returns the column names in declared order.
func (s ColumnSchema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Validate checks every entry of the schema and returns a *SchemaError for
// the first offending column. It performs no I/O.
func Validate(s ColumnSchema) error {
	_, err := parseSchema("", s)
	return err
}

func parseSchema(table string, s ColumnSchema) ([]ColumnType, error) {
	if len(s) == 0 {
		return nil, &SchemaError{Table: table, Reason: ReasonNoColumns}
	}
	seen := make(map[string]struct{}, len(s))
	types := make([]ColumnType, len(s))
	for i, c := range s {
		if strings.TrimSpace(c.Name) == "" {
			return nil, &SchemaError{Table: table, Column: c.Name, Type: c.Type, Reason: ReasonEmptyName}
		}
		if _, dup := seen[c.Name]; dup {
			return nil, &SchemaError{Table: table, Column: c.Name, Type: c.Type, Reason: ReasonDuplicateName}
		}
		seen[c.Name] = struct{}{}

		t, err := ParseType(c.Type)
		if err != nil {
			return nil, &SchemaError{Table: table, Column: c.Name, Type: c.Type, Reason: reasonOf(err)}
		}
		types[i] = t
	}
	return types, nil
}
