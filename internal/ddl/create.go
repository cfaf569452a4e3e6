// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE statements for table contracts.
//
// Backend packages (internal/storage/postgres, mssql, sqlite) supply a
// Dialect with their identifier quoting and a type mapper for the declared
// column kinds; this package owns the statement layout and the constraint
// naming convention shared by all of them.
package ddl

import (
	"fmt"
	"strings"

	"github.com/vuvuzela92/waregouse-project/internal/schema"
)

// ConstraintName returns the unique constraint name for a table:
// "unique_<table>", with schema separators flattened to underscores.
func ConstraintName(table string) string {
	return "unique_" + strings.ReplaceAll(strings.TrimSpace(table), ".", "_")
}

// FromContract builds a TableDef from a contract. typeOf maps each declared
// column type to the backend's SQL type; nil keeps the canonical form.
func FromContract(c *schema.Contract, typeOf func(schema.ColumnType) string) TableDef {
	if typeOf == nil {
		typeOf = schema.ColumnType.String
	}
	cols := c.Columns()
	types := c.Types()
	td := TableDef{FQN: c.Name(), Columns: make([]ColumnDef, len(cols))}
	for i, col := range cols {
		td.Columns[i] = ColumnDef{Name: col.Name, SQLType: typeOf(types[i]), Nullable: true}
	}
	if keys := c.Keys(); len(keys) > 0 {
		td.Unique = &UniqueDef{Name: ConstraintName(c.Name()), Columns: keys}
	}
	return td
}

// QuoteFQN quotes each non-empty segment of a dotted name with quote.
func QuoteFQN(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, quote(p))
		}
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders a CREATE TABLE statement for t in dialect d.
//
// Rules:
//
//   - t.FQN must be non-empty; each dotted segment is quoted.
//
//   - Each column must have a non-empty Name and SQLType and renders as
//
//     <Name> <SQLType> [NOT NULL]
//
//   - A non-nil Unique renders as a trailing table constraint:
//
//     CONSTRAINT <Name> UNIQUE (<col1>, <col2>, ...)
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	quote := d.QuoteIdent
	if quote == nil {
		return "", fmt.Errorf("ddl: dialect has no identifier quoting")
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		def := quote(name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	if u := t.Unique; u != nil && len(u.Columns) > 0 {
		cols := make([]string, len(u.Columns))
		for i, c := range u.Columns {
			cols[i] = quote(c)
		}
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", quote(u.Name), strings.Join(cols, ", ")))
	}

	head := "CREATE TABLE "
	if d.IfNotExists {
		head += "IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n  %s\n);", head, QuoteFQN(fqn, quote), strings.Join(defs, ",\n  ")), nil
}
