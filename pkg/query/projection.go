// Package query builds parameterized SELECT statements over a projection of
// logical field names onto table columns.
package query

import (
	"strings"

	"github.com/zxlitianshu/Kekari-agent/pkg/database"
)

// Dialect captures the SQL differences between the supported drivers.
type Dialect struct {
	// Schema qualifies table names. Empty leaves them unqualified.
	Schema string
	// Like is the case-insensitive pattern operator.
	Like string
}

var (
	Postgres = Dialect{Schema: "public", Like: "ILIKE"}
	// SQLite's LIKE is case-insensitive for ASCII.
	SQLite = Dialect{Like: "LIKE"}
)

// DialectFor returns the dialect for a database driver name.
func DialectFor(driver string) Dialect {
	if driver == database.DriverSQLite {
		return SQLite
	}
	return Postgres
}

// ProjectionMap maps logical field names to alias-qualified columns of a
// single table.
type ProjectionMap struct {
	dialect Dialect
	table   string
	alias   string
	fields  map[string]string
	order   []string
}

// NewProjectionMap starts a projection over table, referenced as alias.
func NewProjectionMap(dialect Dialect, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		dialect: dialect,
		table:   table,
		alias:   alias,
		fields:  make(map[string]string),
	}
}

// Project exposes column under the logical name field.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.fields[normalize(field)] = qualified
	p.order = append(p.order, qualified)
	return p
}

func (p *ProjectionMap) Dialect() Dialect {
	return p.dialect
}

// From returns the aliased table reference for a FROM clause.
func (p *ProjectionMap) From() string {
	if p.dialect.Schema == "" {
		return p.table + " " + p.alias
	}
	return p.dialect.Schema + "." + p.table + " " + p.alias
}

// Lookup returns the qualified column for field and whether it is
// projected. Matching ignores case and underscores, so "UpdatedAt" and
// "updated_at" name the same field.
func (p *ProjectionMap) Lookup(field string) (string, bool) {
	col, ok := p.fields[normalize(field)]
	return col, ok
}

// Columns returns the projected columns, in projection order, as a select list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.order, ", ")
}

func normalize(field string) string {
	return strings.ToLower(strings.ReplaceAll(field, "_", ""))
}
