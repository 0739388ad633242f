package models

import (
	"context"
	"database/sql"
	"fmt"

	"student-support-center/internal/db"
)

// querier is satisfied by both *db.DB and *sql.Tx so read helpers can run
// inside or outside a transaction. Under SQLite the pool holds one connection:
// code running in a transaction must pass the tx, never the DB.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is the storage boundary for every entity in the center.
type Repository struct {
	db           *db.DB
	supervisorID int64
}

func NewRepository(d *db.DB, supervisorID int64) *Repository {
	return &Repository{db: d, supervisorID: supervisorID}
}

// SupervisorID is the counselor added to every visit with a critical issue.
func (r *Repository) SupervisorID() int64 {
	return r.supervisorID
}

// StudentCount returns the number of students. ok is false when the count
// could not be read, for instance before migrations ran.
func (r *Repository) StudentCount(ctx context.Context) (n int, ok bool) {
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Student").Scan(&n); err != nil {
		return 0, false
	}
	return n, true
}

// Ping checks the storage connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) StudentOptions(ctx context.Context) ([]Option, error) {
	return queryOptions(ctx, r.db, "SELECT student_id, name FROM Student ORDER BY name")
}

func (r *Repository) CounselorOptions(ctx context.Context) ([]Option, error) {
	return queryOptions(ctx, r.db, "SELECT counselor_id, name FROM Counselor ORDER BY name")
}

func (r *Repository) CategoryOptions(ctx context.Context) ([]Option, error) {
	return queryOptions(ctx, r.db, "SELECT category_id, name FROM Category ORDER BY name")
}

func (r *Repository) CourseOptions(ctx context.Context) ([]Option, error) {
	return queryOptions(ctx, r.db, "SELECT course_id, course_name FROM Course ORDER BY course_id")
}

func (r *Repository) ProviderOptions(ctx context.Context) ([]Option, error) {
	return queryOptions(ctx, r.db, "SELECT provider_id, name FROM Provider ORDER BY name")
}

func (r *Repository) DiagnosisListOptions(ctx context.Context) ([]CodeOption, error) {
	return queryCodeOptions(ctx, r.db, "SELECT diagnosis_code, diagnosis FROM Diagnosis_List ORDER BY diagnosis")
}

func (r *Repository) SymptomOptions(ctx context.Context) ([]CodeOption, error) {
	return queryCodeOptions(ctx, r.db, "SELECT symptom_code, symptom FROM Symptom_List ORDER BY symptom")
}

func queryOptions(ctx context.Context, q querier, query string, args ...any) ([]Option, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	var opts []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

func queryCodeOptions(ctx context.Context, q querier, query string, args ...any) ([]CodeOption, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	var opts []CodeOption
	for rows.Next() {
		var o CodeOption
		if err := rows.Scan(&o.Code, &o.Name); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		out = append(out, v.String)
	}
	return out, rows.Err()
}

func queryInts(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// exists reports whether query returns at least one row.
func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// nullString maps an empty form value to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
