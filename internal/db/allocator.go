package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Table names every table whose rows carry an application-assigned id.
type Table string

const (
	TableStudent    Table = "Student"
	TableCounselor  Table = "Counselor"
	TableVisit      Table = "Visit"
	TableIssue      Table = "Issue"
	TableReferral   Table = "Referral"
	TableFinancial  Table = "Financial"
	TableCoursework Table = "Coursework"
	TableSuggestion Table = "Suggestion"
	TableFollowup   Table = "Followup"
	TableDiagnosis  Table = "Diagnosis"
)

var idColumns = map[Table]string{
	TableStudent:    "student_id",
	TableCounselor:  "counselor_id",
	TableVisit:      "visit_id",
	TableIssue:      "issue_id",
	TableReferral:   "referral_id",
	TableFinancial:  "financial_id",
	TableCoursework: "coursework_id",
	TableSuggestion: "suggestion_id",
	TableFollowup:   "followup_id",
	TableDiagnosis:  "diagnosis_id",
}

// IDColumn returns the surrogate key column for table.
func IDColumn(table Table) (string, bool) {
	col, ok := idColumns[table]
	return col, ok
}

// NextID returns max(id)+1 for table, or 1 when the table is empty.
//
// The value is only meaningful inside tx: the caller must insert the row in
// the same transaction. Within this process WithTx already serialises writers;
// under PostgreSQL the table is additionally locked in a self-conflicting mode
// so other processes allocating on the same table wait for this commit.
// Repeated calls without an intervening insert return the same value.
func (d *DB) NextID(ctx context.Context, tx *sql.Tx, table Table) (int64, error) {
	col, ok := idColumns[table]
	if !ok {
		return 0, fmt.Errorf("no id allocation for table %q", table)
	}

	if d.Dialect == Postgres {
		ident := pgx.Identifier{strings.ToLower(string(table))}.Sanitize()
		if _, err := tx.ExecContext(ctx, "LOCK TABLE "+ident+" IN SHARE ROW EXCLUSIVE MODE"); err != nil {
			return 0, fmt.Errorf("failed to lock %s for id allocation: %w", table, err)
		}
	}

	var next int64
	q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s", col, table)
	if err := tx.QueryRowContext(ctx, q).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", table, err)
	}
	return next, nil
}
