package db

import (
	"fmt"
	"strings"
)

// SearchQuery assembles a filtered SELECT with numbered pgx placeholders.
// Clauses are written with ? markers which Where rewrites to $n in order.
type SearchQuery struct {
	table   string
	cols    string
	where   []string
	args    []interface{}
	orderBy string
}

func NewSearchQuery(table, cols string) *SearchQuery {
	return &SearchQuery{table: table, cols: cols}
}

// Where appends a clause ANDed with the others. The number of ? markers
// must equal len(args).
func (q *SearchQuery) Where(clause string, args ...interface{}) *SearchQuery {
	if n := strings.Count(clause, "?"); n != len(args) {
		panic(fmt.Sprintf("db: clause %q has %d placeholders, got %d args", clause, n, len(args)))
	}
	var b strings.Builder
	next := len(q.args) + 1
	for _, r := range clause {
		if r == '?' {
			fmt.Fprintf(&b, "$%d", next)
			next++
			continue
		}
		b.WriteRune(r)
	}
	q.where = append(q.where, "("+b.String()+")")
	q.args = append(q.args, args...)
	return q
}

func (q *SearchQuery) OrderBy(orderBy string) *SearchQuery {
	q.orderBy = orderBy
	return q
}

func (q *SearchQuery) whereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// CountSQL returns the count query for the current filters.
func (q *SearchQuery) CountSQL() string {
	return "SELECT COUNT(*) FROM " + q.table + q.whereSQL()
}

func (q *SearchQuery) Args() []interface{} {
	return q.args
}

// DataSQL returns the data query with ORDER BY and LIMIT/OFFSET placeholders.
func (q *SearchQuery) DataSQL() string {
	sql := "SELECT " + q.cols + " FROM " + q.table + q.whereSQL()
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	n := len(q.args)
	return sql + fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
}

// DataArgs returns the filter arguments followed by limit and offset.
func (q *SearchQuery) DataArgs(limit, offset int) []interface{} {
	out := make([]interface{}, len(q.args), len(q.args)+2)
	copy(out, q.args)
	return append(out, limit, offset)
}
