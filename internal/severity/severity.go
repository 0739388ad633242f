// Package severity holds the single definition of the truthy encodings found in
// stored flag columns, in Go and in SQL form. Every read that classifies an
// issue as critical, a followup as open, or a tracked item as unreported goes
// through here.
package severity

import (
	"fmt"
	"strconv"
	"strings"
)

// truthy lists the stored encodings that mean "critical". Comparison is
// against the value's text form, so integer 1 and the string "1" agree.
var truthy = []string{"1", "TRUE", "True", "true", "t", "T"}

// IsCritical reports whether a stored or submitted severity value is truthy.
// Anything outside the truthy set, including nil, is false.
func IsCritical(v any) bool {
	s, ok := text(v)
	if !ok {
		return false
	}
	for _, t := range truthy {
		if s == t {
			return true
		}
	}
	return false
}

// Normalize coerces a severity value to the strict 0/1 form written to storage.
func Normalize(v any) int {
	if IsCritical(v) {
		return 1
	}
	return 0
}

// Predicate returns a SQL boolean expression that is true when column holds a
// critical severity. The column is compared as text so the expression behaves
// the same on integer, boolean and text columns across SQLite and PostgreSQL.
func Predicate(column string) string {
	quoted := make([]string, len(truthy))
	for i, t := range truthy {
		quoted[i] = "'" + t + "'"
	}
	return fmt.Sprintf("CAST(%s AS TEXT) IN (%s)", column, strings.Join(quoted, ", "))
}

// Flag returns a SQL expression yielding 1 for critical rows and 0 otherwise.
func Flag(column string) string {
	return fmt.Sprintf("CASE WHEN %s THEN 1 ELSE 0 END", Predicate(column))
}

// OpenFollowup returns a SQL expression that is true when a followup's
// complete column is unset: NULL, empty or zero.
func OpenFollowup(column string) string {
	return fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '') IN ('', '0')", column)
}

// IsOpenFollowup is the Go form of OpenFollowup.
func IsOpenFollowup(v any) bool {
	s, ok := text(v)
	return !ok || s == "" || s == "0"
}

// Unreported returns a SQL expression that is true when a student_reported_at
// column carries no value.
func Unreported(column string) string {
	return fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '') = ''", column)
}

func text(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}
