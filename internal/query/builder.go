// Package query assembles parameterized read queries from a fixed set of
// filterable columns. Callers hand in raw request values; only column
// expressions registered up front and operators from the comparison whitelist
// ever reach the SQL text. Values always travel as positional parameters.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Operators is the comparison whitelist for caller-chosen operators.
var Operators = []string{">", "<", "=", ">=", "<="}

// ValidOperator reports whether op is in the comparison whitelist.
func ValidOperator(op string) bool {
	for _, o := range Operators {
		if op == o {
			return true
		}
	}
	return false
}

// Columns maps a filter key to the SQL expression it may filter on.
type Columns map[string]string

// Builder accumulates conditions on top of a base SELECT. Filters that are
// empty, malformed or refer to unknown keys are dropped, never applied.
type Builder struct {
	base    string
	columns Columns
	where   []string
	groupBy string
	having  []string
	orderBy string
	args    []any
	dropped []string
}

// New starts a query. base must be a complete SELECT ... FROM ... clause with
// no WHERE; columns lists every key a filter may name.
func New(base string, columns Columns) *Builder {
	return &Builder{base: strings.TrimSpace(base), columns: columns}
}

func (b *Builder) column(key string) (string, bool) {
	expr, ok := b.columns[key]
	if !ok {
		b.drop(key, "unknown column")
	}
	return expr, ok
}

func (b *Builder) drop(key, reason string) {
	b.dropped = append(b.dropped, key+": "+reason)
}

func (b *Builder) param(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// Contains adds a case-insensitive substring match.
func (b *Builder) Contains(key, value string) *Builder {
	value = strings.TrimSpace(value)
	if value == "" {
		return b
	}
	expr, ok := b.column(key)
	if !ok {
		return b
	}
	b.where = append(b.where, fmt.Sprintf(`LOWER(%s) LIKE LOWER(%s) ESCAPE '\'`, expr, b.param(LikePattern(value))))
	return b
}

// Equals adds an exact match.
func (b *Builder) Equals(key, value string) *Builder {
	value = strings.TrimSpace(value)
	if value == "" {
		return b
	}
	expr, ok := b.column(key)
	if !ok {
		return b
	}
	b.where = append(b.where, fmt.Sprintf("%s = %s", expr, b.param(value)))
	return b
}

// InInts adds a membership test. Values that are not integers are skipped;
// when none survive the filter is dropped.
func (b *Builder) InInts(key string, values []string) *Builder {
	ids := parseInts(values)
	if len(ids) == 0 {
		if len(values) > 0 {
			b.drop(key, "no integer values")
		}
		return b
	}
	expr, ok := b.column(key)
	if !ok {
		return b
	}
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = b.param(id)
	}
	b.where = append(b.where, fmt.Sprintf("%s IN (%s)", expr, strings.Join(placeholders, ", ")))
	return b
}

// Compare adds `column op value` for a whitelisted op and an integer value.
func (b *Builder) Compare(key, op, value string) *Builder {
	if cond, ok := b.compare(key, op, value); ok {
		b.where = append(b.where, cond)
	}
	return b
}

// GroupBy sets the GROUP BY list. It is part of the query shape chosen by the
// caller, not a filter.
func (b *Builder) GroupBy(exprs string) *Builder {
	b.groupBy = exprs
	return b
}

// HavingCompare is Compare applied to an aggregate in HAVING.
func (b *Builder) HavingCompare(key, op, value string) *Builder {
	if cond, ok := b.compare(key, op, value); ok {
		b.having = append(b.having, cond)
	}
	return b
}

// HavingFlag adds `aggregate = 0|1` when value is exactly "0" or "1".
func (b *Builder) HavingFlag(key, value string) *Builder {
	value = strings.TrimSpace(value)
	if value == "" {
		return b
	}
	if value != "0" && value != "1" {
		b.drop(key, "flag must be 0 or 1")
		return b
	}
	expr, ok := b.column(key)
	if !ok {
		return b
	}
	n, _ := strconv.Atoi(value)
	b.having = append(b.having, fmt.Sprintf("%s = %s", expr, b.param(n)))
	return b
}

// OrderBy sets the ORDER BY list.
func (b *Builder) OrderBy(exprs string) *Builder {
	b.orderBy = exprs
	return b
}

func (b *Builder) compare(key, op, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if !ValidOperator(op) {
		b.drop(key, "operator not allowed")
		return "", false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		b.drop(key, "value is not an integer")
		return "", false
	}
	expr, ok := b.column(key)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s %s %s", expr, op, b.param(n)), true
}

// Build returns the SQL text and its positional arguments.
func (b *Builder) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString(b.base)
	if len(b.where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if b.groupBy != "" {
		sb.WriteString("\nGROUP BY ")
		sb.WriteString(b.groupBy)
	}
	if len(b.having) > 0 {
		sb.WriteString("\nHAVING ")
		sb.WriteString(strings.Join(b.having, " AND "))
	}
	if b.orderBy != "" {
		sb.WriteString("\nORDER BY ")
		sb.WriteString(b.orderBy)
	}
	args := make([]any, len(b.args))
	copy(args, b.args)
	return sb.String(), args
}

// Dropped lists the filters that were ignored and why.
func (b *Builder) Dropped() []string {
	return b.dropped
}

// LikePattern wraps value in % wildcards after escaping LIKE metacharacters,
// for use with ESCAPE '\'.
func LikePattern(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(value) + "%"
}

func parseInts(values []string) []int64 {
	var out []int64
	seen := make(map[int64]bool)
	for _, v := range values {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
