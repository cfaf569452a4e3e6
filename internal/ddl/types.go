package ddl

// ColumnDef describes a single column in a table definition. It uses simple,
// database-agnostic fields; quoting happens at render time.
//
// Fields:
//   - Name: logical column name (unquoted)
//   - SQLType: target SQL type after dialect mapping (e.g., BIGINT, NVARCHAR(255))
//   - Nullable: whether NULL is allowed
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// UniqueDef is a named UNIQUE constraint over an ordered column list.
type UniqueDef struct {
	Name    string
	Columns []string
}

// TableDef holds the table name (FQN), an ordered list of columns, and an
// optional unique constraint. The FQN is expected in dotted form
// (e.g., "schema.table") and is quoted per segment by renderers.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
	Unique  *UniqueDef
}

// Dialect captures what differs between backends when rendering DDL.
type Dialect struct {
	// QuoteIdent quotes a single identifier segment.
	QuoteIdent func(string) string
	// IfNotExists emits CREATE TABLE IF NOT EXISTS.
	IfNotExists bool
}
