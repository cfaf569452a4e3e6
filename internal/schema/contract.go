package schema

import "strings"

// Contract binds a destination table name to its declared columns and its
// conflict key. It is validated once, at construction, and is immutable
// afterwards, so it can be shared by concurrent loads.
type Contract struct {
	name    string
	columns ColumnSchema
	types   []ColumnType
	keys    []string
	keyIdx  []int
}

// NewContract validates the column schema and the key tuple and returns the
// contract. Every key column must be declared and appear once. An empty key
// tuple makes every load a plain append.
func NewContract(table string, columns ColumnSchema, keys ...string) (*Contract, error) {
	if strings.TrimSpace(table) == "" {
		return nil, &SchemaError{Reason: ReasonEmptyTable}
	}
	types, err := parseSchema(table, columns)
	if err != nil {
		return nil, err
	}

	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c.Name] = i
	}
	keyIdx := make([]int, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		i, ok := pos[k]
		if !ok {
			return nil, &SchemaError{Table: table, Column: k, Reason: ReasonUnknownKey}
		}
		if _, dup := seen[k]; dup {
			return nil, &SchemaError{Table: table, Column: k, Reason: ReasonDuplicateKey}
		}
		seen[k] = struct{}{}
		keyIdx = append(keyIdx, i)
	}

	return &Contract{
		name:    table,
		columns: append(ColumnSchema(nil), columns...),
		types:   types,
		keys:    append([]string(nil), keys...),
		keyIdx:  keyIdx,
	}, nil
}

// MustContract is NewContract for package-level declarations; it panics on
// an invalid schema.
func MustContract(table string, columns ColumnSchema, keys ...string) *Contract {
	c, err := NewContract(table, columns, keys...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Contract) Name() string { return c.name }

// Columns returns a copy of the declared columns.
func (c *Contract) Columns() ColumnSchema { return append(ColumnSchema(nil), c.columns...) }

// ColumnNames returns the declared column names in order.
func (c *Contract) ColumnNames() []string { return c.columns.Names() }

// Types returns the parsed column types aligned with Columns.
func (c *Contract) Types() []ColumnType { return append([]ColumnType(nil), c.types...) }

// Keys returns the conflict key tuple, possibly empty.
func (c *Contract) Keys() []string { return append([]string(nil), c.keys...) }

// KeyIndexes returns the positions of the key columns in declared order.
func (c *Contract) KeyIndexes() []int { return append([]int(nil), c.keyIdx...) }

// IsKey reports whether col belongs to the key tuple.
func (c *Contract) IsKey(col string) bool {
	for _, k := range c.keys {
		if k == col {
			return true
		}
	}
	return false
}

// NonKeyColumns returns the declared columns outside the key tuple.
func (c *Contract) NonKeyColumns() []string {
	out := make([]string, 0, len(c.columns))
	for _, col := range c.columns {
		if !c.IsKey(col.Name) {
			out = append(out, col.Name)
		}
	}
	return out
}

// Check re-validates a contract before use. A nil or zero Contract fails.
func (c *Contract) Check() error {
	if c == nil || c.name == "" {
		return &SchemaError{Reason: ReasonEmptyTable}
	}
	if len(c.columns) == 0 {
		return &SchemaError{Table: c.name, Reason: ReasonNoColumns}
	}
	return nil
}
