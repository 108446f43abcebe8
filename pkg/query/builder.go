package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SortField is one ORDER BY term, named by its logical field.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields parses "name,-updated_at" style input. A leading "-"
// sorts descending. Returns nil for empty input.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// clause renders one WHERE term, drawing placeholders from next.
type clause func(next func(arg any) string) string

// Builder accumulates conditions and ordering for a projection. Fields
// that are not projected are rejected: conditions on them panic, and sort
// terms naming them are dropped, so request input never reaches the SQL
// text.
type Builder struct {
	projection  *ProjectionMap
	clauses     []clause
	sort        []SortField
	defaultSort []SortField
}

func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{projection: projection, defaultSort: defaultSort}
}

func (b *Builder) column(field string) string {
	col, ok := b.projection.Lookup(field)
	if !ok {
		panic(fmt.Sprintf("query: field %q is not projected", field))
	}
	return col
}

// OrderByFields replaces the default sort order.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// WhereEquals adds col = value. No-op for nil values, including typed nil
// pointers.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	col := b.column(field)
	b.clauses = append(b.clauses, func(next func(any) string) string {
		return col + " = " + next(value)
	})
	return b
}

// WhereContains adds a case-insensitive substring match. No-op for nil or
// empty values.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.WhereSearch(value, field)
}

// WhereSearch matches value as a case-insensitive substring of any of the
// fields. LIKE wildcards in value match literally. No-op for nil or empty
// search.
func (b *Builder) WhereSearch(value *string, fields ...string) *Builder {
	if value == nil || *value == "" || len(fields) == 0 {
		return b
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = b.column(f)
	}
	pattern := "%" + escapeLike(*value) + "%"
	op := b.projection.Dialect().Like

	b.clauses = append(b.clauses, func(next func(any) string) string {
		terms := make([]string, len(cols))
		for i, col := range cols {
			terms[i] = fmt.Sprintf(`%s %s %s ESCAPE '\'`, col, op, next(pattern))
		}
		if len(terms) == 1 {
			return terms[0]
		}
		return "(" + strings.Join(terms, " OR ") + ")"
	})
	return b
}

// Build returns the filtered, ordered SELECT.
func (b *Builder) Build() (string, []any) {
	where, args := b.where()
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From() + where + b.orderBy(), args
}

// BuildCount returns SELECT COUNT(*) over the same conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.where()
	return "SELECT COUNT(*) FROM " + b.projection.From() + where, args
}

// BuildPage returns Build limited to one 1-indexed page.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	sql, args := b.Build()
	offset := (page - 1) * pageSize
	return sql + " LIMIT " + strconv.Itoa(pageSize) + " OFFSET " + strconv.Itoa(offset), args
}

// BuildSingle selects the row whose field equals id, ignoring any other
// conditions on the builder.
func (b *Builder) BuildSingle(field string, id any) (string, []any) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(), b.projection.From(), b.column(field))
	return sql, []any{id}
}

func (b *Builder) where() (string, []any) {
	if len(b.clauses) == 0 {
		return "", nil
	}

	var args []any
	next := func(arg any) string {
		args = append(args, arg)
		return "$" + strconv.Itoa(len(args))
	}

	terms := make([]string, len(b.clauses))
	for i, c := range b.clauses {
		terms[i] = c(next)
	}
	return " WHERE " + strings.Join(terms, " AND "), args
}

func (b *Builder) orderBy() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	var terms []string
	for _, f := range fields {
		col, ok := b.projection.Lookup(f.Field)
		if !ok {
			continue
		}
		if f.Descending {
			terms = append(terms, col+" DESC")
		} else {
			terms = append(terms, col+" ASC")
		}
	}
	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
