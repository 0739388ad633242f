package models

import (
	"context"
	"database/sql"
	"fmt"

	"student-support-center/internal/db"
	"student-support-center/internal/query"
	"student-support-center/internal/severity"

	"github.com/rs/zerolog/log"
)

// StudentInput is the editable part of a student record.
type StudentInput struct {
	Name           string `validate:"required,max=200"`
	DOB            string `validate:"omitempty,datetime=2006-01-02,notfuture"`
	CountryOfBirth string `validate:"max=100"`
	Gender         string `validate:"max=50"`
	Consent        bool
	ZipCode        string `validate:"max=20"`
}

// StudentFilter holds the raw list filters from the query string.
type StudentFilter struct {
	Search  string
	Country string
	Gender  string
	Zip     string
}

// StudentFilterOptions feeds the list page dropdowns.
type StudentFilterOptions struct {
	Countries []string
	Genders   []string
	Zips      []string
}

var studentColumns = query.Columns{
	"search":  "name",
	"country": "country_of_birth",
	"gender":  "gender",
	"zip":     "zip_code",
}

const studentSelect = `
	SELECT student_id, name, dob, country_of_birth, gender, consent, zip_code
	FROM Student`

func scanStudent(row interface{ Scan(...any) error }) (*Student, error) {
	s := &Student{}
	var consent sql.NullInt64
	if err := row.Scan(&s.ID, &s.Name, &s.DOB, &s.CountryOfBirth, &s.Gender, &consent, &s.ZipCode); err != nil {
		return nil, err
	}
	s.Consent = consent.Valid && consent.Int64 != 0
	return s, nil
}

func (r *Repository) ListStudents(ctx context.Context, f StudentFilter) ([]*Student, error) {
	b := query.New(studentSelect, studentColumns).
		Contains("search", f.Search).
		Equals("country", f.Country).
		Equals("gender", f.Gender).
		Equals("zip", f.Zip).
		OrderBy("name, student_id")
	q, args := b.Build()
	if dropped := b.Dropped(); len(dropped) > 0 {
		log.Debug().Strs("dropped", dropped).Msg("student filters ignored")
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var students []*Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

func (r *Repository) StudentFilterOptions(ctx context.Context) (*StudentFilterOptions, error) {
	opts := &StudentFilterOptions{}
	var err error
	if opts.Countries, err = queryStrings(ctx, r.db, `
		SELECT DISTINCT country_of_birth FROM Student
		WHERE COALESCE(country_of_birth, '') <> '' ORDER BY country_of_birth`); err != nil {
		return nil, err
	}
	if opts.Genders, err = queryStrings(ctx, r.db, `
		SELECT DISTINCT gender FROM Student
		WHERE COALESCE(gender, '') <> '' ORDER BY gender`); err != nil {
		return nil, err
	}
	if opts.Zips, err = queryStrings(ctx, r.db, `
		SELECT DISTINCT zip_code FROM Student
		WHERE COALESCE(zip_code, '') <> '' ORDER BY zip_code`); err != nil {
		return nil, err
	}
	return opts, nil
}

func (r *Repository) GetStudent(ctx context.Context, id int64) (*Student, error) {
	return getStudent(ctx, r.db, id)
}

func getStudent(ctx context.Context, q querier, id int64) (*Student, error) {
	s, err := scanStudent(q.QueryRowContext(ctx, studentSelect+" WHERE student_id = $1", id))
	if err == sql.ErrNoRows {
		return nil, notFound("student", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

func (r *Repository) CreateStudent(ctx context.Context, in StudentInput) (int64, error) {
	var id int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = r.db.NextID(ctx, tx, db.TableStudent); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO Student (student_id, name, dob, country_of_birth, gender, consent, zip_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, in.Name, nullString(in.DOB), nullString(in.CountryOfBirth), nullString(in.Gender), boolInt(in.Consent), nullString(in.ZipCode))
		if err != nil {
			return fmt.Errorf("failed to insert student: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("student_id", id).Msg("student created")
	return id, nil
}

func (r *Repository) UpdateStudent(ctx context.Context, id int64, in StudentInput) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE Student
		SET name = $1, dob = $2, country_of_birth = $3, gender = $4, consent = $5, zip_code = $6
		WHERE student_id = $7
	`, in.Name, nullString(in.DOB), nullString(in.CountryOfBirth), nullString(in.Gender), boolInt(in.Consent), nullString(in.ZipCode), id)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	return requireAffected(res, "student", id)
}

// DeleteStudent removes the student row only. Visits, issues and diagnoses
// that reference the student are retained.
func (r *Repository) DeleteStudent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM Student WHERE student_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	return requireAffected(res, "student", id)
}

// GetStudentDetail loads the student page. editDiagID marks one diagnosis as
// open for inline editing; 0 marks none.
func (r *Repository) GetStudentDetail(ctx context.Context, id, editDiagID int64) (*StudentDetail, error) {
	student, err := getStudent(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	detail := &StudentDetail{Student: student}

	visits, err := r.visitsForStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, v := range visits {
		issues, err := loadIssues(ctx, r.db, v.ID)
		if err != nil {
			return nil, err
		}
		suggestions, err := loadSuggestions(ctx, r.db, v.ID)
		if err != nil {
			return nil, err
		}
		detail.Visits = append(detail.Visits, StudentVisit{Visit: v, Issues: issues, Suggestions: suggestions})
	}

	if detail.Diagnoses, err = r.diagnosesForStudent(ctx, id, editDiagID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.course_id, c.course_name
		FROM Student_Course sc
		JOIN Course c ON sc.course_id = c.course_id
		WHERE sc.student_id = $1
		ORDER BY c.course_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query student courses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		detail.Courses = append(detail.Courses, c)
	}
	return detail, rows.Err()
}

func (r *Repository) visitsForStudent(ctx context.Context, studentID int64) ([]Visit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT visit_id, student_id, date, mode
		FROM Visit
		WHERE student_id = $1
		ORDER BY date DESC, visit_id DESC
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ID, &v.StudentID, &v.Date, &v.Mode); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// loadIssues returns a visit's issues with their types, category names and
// referral rows, in issue id order.
func loadIssues(ctx context.Context, q querier, visitID int64) ([]*Issue, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT issue_id, visit_id, issue_description, %s
		FROM Issue
		WHERE visit_id = $1
		ORDER BY issue_id
	`, severity.Flag("severity")), visitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	var issues []*Issue
	byID := make(map[int64]*Issue)
	for rows.Next() {
		issue := &Issue{}
		var critical int
		if err := rows.Scan(&issue.ID, &issue.VisitID, &issue.Description, &critical); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.Critical = critical == 1
		issues = append(issues, issue)
		byID[issue.ID] = issue
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return nil, nil
	}

	if err := eachRow(ctx, q, `
		SELECT it.issue_id, it.issue_type
		FROM Issue_Type it
		JOIN Issue i ON i.issue_id = it.issue_id
		WHERE i.visit_id = $1
		ORDER BY it.issue_id, it.issue_type
	`, []any{visitID}, func(rows *sql.Rows) error {
		var id int64
		var t string
		if err := rows.Scan(&id, &t); err != nil {
			return err
		}
		if issue := byID[id]; issue != nil {
			issue.Types = append(issue.Types, t)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load issue types: %w", err)
	}

	if err := eachRow(ctx, q, `
		SELECT ic.issue_id, ic.category_id, c.name
		FROM Issue_Category ic
		JOIN Issue i ON i.issue_id = ic.issue_id
		JOIN Category c ON c.category_id = ic.category_id
		WHERE i.visit_id = $1
		ORDER BY ic.issue_id, c.name
	`, []any{visitID}, func(rows *sql.Rows) error {
		var id, catID int64
		var name string
		if err := rows.Scan(&id, &catID, &name); err != nil {
			return err
		}
		if issue := byID[id]; issue != nil {
			issue.CategoryIDs = append(issue.CategoryIDs, catID)
			issue.Categories = append(issue.Categories, name)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load issue categories: %w", err)
	}

	if err := eachRow(ctx, q, `
		SELECT r.referral_id, r.issue_id, r.details, r.student_report, r.student_reported_at
		FROM Referral r
		JOIN Issue i ON i.issue_id = r.issue_id
		WHERE i.visit_id = $1
		ORDER BY r.referral_id
	`, []any{visitID}, func(rows *sql.Rows) error {
		var ref Referral
		if err := rows.Scan(&ref.ID, &ref.IssueID, &ref.Details, &ref.StudentReport, &ref.StudentReportedAt); err != nil {
			return err
		}
		if issue := byID[ref.IssueID]; issue != nil {
			issue.Referrals = append(issue.Referrals, ref)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to load referrals: %w", err)
	}

	return issues, nil
}

func loadSuggestions(ctx context.Context, q querier, visitID int64) ([]Suggestion, error) {
	var out []Suggestion
	err := eachRow(ctx, q, `
		SELECT s.suggestion_id, s.visit_id, s.counselor_id, COALESCE(c.name, ''), s.details,
		       s.student_report, s.student_reported_at
		FROM Suggestion s
		LEFT JOIN Counselor c ON c.counselor_id = s.counselor_id
		WHERE s.visit_id = $1
		ORDER BY s.suggestion_id
	`, []any{visitID}, func(rows *sql.Rows) error {
		var s Suggestion
		if err := rows.Scan(&s.ID, &s.VisitID, &s.CounselorID, &s.CounselorName, &s.Details,
			&s.StudentReport, &s.StudentReportedAt); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestions: %w", err)
	}
	return out, nil
}

// eachRow runs query and hands every row to fn.
func eachRow(ctx context.Context, q querier, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func requireAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
