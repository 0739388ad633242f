package models

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"student-support-center/internal/db"
	"student-support-center/internal/query"
	"student-support-center/internal/severity"

	"github.com/rs/zerolog/log"
)

// CounselorInput is a new counselor as submitted. Salary is stored only for
// paid counselors.
type CounselorInput struct {
	Name          string `validate:"required,max=200"`
	PaidVolunteer string `validate:"required,oneof=paid volunteer"`
	Education     string `validate:"max=200"`
	Experience    *int64 `validate:"omitempty,min=0,max=80"`
	Salary        *int64 `validate:"omitempty,min=0"`
}

// CounselorFilter holds raw list filters. The operators are checked against
// the comparison whitelist before use.
type CounselorFilter struct {
	Type           string
	Education      string
	ExpOperator    string
	ExpValue       string
	SalaryOperator string
	SalaryValue    string
}

var counselorColumns = query.Columns{
	"type":       "c.paid_volunteer",
	"education":  "c.education",
	"experience": "c.experience",
	"salary":     "cs.salary",
}

const counselorSelect = `
	SELECT c.counselor_id, c.name, c.paid_volunteer, c.education, c.experience, cs.salary
	FROM Counselor c
	LEFT JOIN Counselor_Salary cs ON c.counselor_id = cs.counselor_id`

func scanCounselor(row interface{ Scan(...any) error }) (*Counselor, error) {
	c := &Counselor{}
	if err := row.Scan(&c.ID, &c.Name, &c.PaidVolunteer, &c.Education, &c.Experience, &c.Salary); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) ListCounselors(ctx context.Context, f CounselorFilter) ([]*Counselor, error) {
	b := query.New(counselorSelect, counselorColumns).
		Equals("type", f.Type).
		Equals("education", f.Education).
		Compare("experience", f.ExpOperator, f.ExpValue).
		Compare("salary", f.SalaryOperator, f.SalaryValue).
		OrderBy("c.name, c.counselor_id")
	q, args := b.Build()
	if dropped := b.Dropped(); len(dropped) > 0 {
		log.Warn().Strs("dropped", dropped).Msg("counselor filters ignored")
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query counselors: %w", err)
	}
	defer rows.Close()

	var counselors []*Counselor
	for rows.Next() {
		c, err := scanCounselor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan counselor: %w", err)
		}
		counselors = append(counselors, c)
	}
	return counselors, rows.Err()
}

func (r *Repository) EducationOptions(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.db, `
		SELECT DISTINCT education FROM Counselor
		WHERE COALESCE(education, '') <> '' ORDER BY education`)
}

func (r *Repository) GetCounselor(ctx context.Context, id int64) (*Counselor, error) {
	c, err := scanCounselor(r.db.QueryRowContext(ctx, counselorSelect+" WHERE c.counselor_id = $1", id))
	if err == sql.ErrNoRows {
		return nil, notFound("counselor", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get counselor: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCounselor(ctx context.Context, in CounselorInput) (int64, error) {
	paidVolunteer := strings.ToLower(strings.TrimSpace(in.PaidVolunteer))
	var id int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = r.db.NextID(ctx, tx, db.TableCounselor); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO Counselor (counselor_id, name, paid_volunteer, education, experience)
			VALUES ($1, $2, $3, $4, $5)
		`, id, in.Name, paidVolunteer, nullString(in.Education), nullInt(in.Experience))
		if err != nil {
			return fmt.Errorf("failed to insert counselor: %w", err)
		}

		if paidVolunteer == EmploymentPaid && in.Salary != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO Counselor_Salary (counselor_id, salary) VALUES ($1, $2)
				ON CONFLICT (counselor_id) DO UPDATE SET salary = excluded.salary
			`, id, *in.Salary)
			if err != nil {
				return fmt.Errorf("failed to save counselor salary: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("counselor_id", id).Str("type", paidVolunteer).Msg("counselor created")
	return id, nil
}

// GetCounselorDetail loads everything shown on a counselor's page. Referral,
// financial and coursework items are the ones raised on visits the counselor
// is assigned to; items the student has not reported back on come first.
func (r *Repository) GetCounselorDetail(ctx context.Context, id int64) (*CounselorDetail, error) {
	counselor, err := r.GetCounselor(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &CounselorDetail{Counselor: counselor}

	err = eachRow(ctx, r.db, `
		SELECT s.student_id, s.name, COUNT(vc.visit_id) AS visit_count
		FROM Visit_Counselor vc
		JOIN Visit v ON vc.visit_id = v.visit_id
		JOIN Student s ON v.student_id = s.student_id
		WHERE vc.counselor_id = $1
		GROUP BY s.student_id, s.name
		ORDER BY visit_count DESC, s.name
	`, []any{id}, func(rows *sql.Rows) error {
		var cs CounselorStudent
		if err := rows.Scan(&cs.StudentID, &cs.Name, &cs.VisitCount); err != nil {
			return err
		}
		detail.Students = append(detail.Students, cs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load counselor students: %w", err)
	}

	err = eachRow(ctx, r.db, `
		SELECT v.visit_id, v.student_id, s.name, v.date, v.mode
		FROM Visit_Counselor vc
		JOIN Visit v ON vc.visit_id = v.visit_id
		JOIN Student s ON v.student_id = s.student_id
		WHERE vc.counselor_id = $1
		ORDER BY v.date DESC, v.visit_id DESC
	`, []any{id}, func(rows *sql.Rows) error {
		var v Visit
		if err := rows.Scan(&v.ID, &v.StudentID, &v.StudentName, &v.Date, &v.Mode); err != nil {
			return err
		}
		detail.Visits = append(detail.Visits, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load counselor visits: %w", err)
	}

	followups, err := listFollowups(ctx, r.db, "f.counselor_id = $1", []any{id})
	if err != nil {
		return nil, err
	}
	for _, f := range followups {
		if f.Open {
			detail.OpenFollowups = append(detail.OpenFollowups, f)
		} else {
			detail.CompletedFollowups = append(detail.CompletedFollowups, f)
		}
	}

	if detail.Referrals, err = counselorReferrals(ctx, r.db, id); err != nil {
		return nil, err
	}
	if detail.Financial, err = counselorFinancial(ctx, r.db, id); err != nil {
		return nil, err
	}
	if detail.Coursework, err = counselorCoursework(ctx, r.db, id); err != nil {
		return nil, err
	}
	return detail, nil
}

// assignedTo selects the rows of an issue-owned table raised on visits the
// counselor is assigned to, unreported items first.
func assignedTo(table, alias, cols string) string {
	return fmt.Sprintf(`
		SELECT %[3]s, v.student_id, s.name, %[1]s.student_report, %[1]s.student_reported_at,
		       COALESCE(CAST(%[1]s.created_at AS TEXT), '')
		FROM %[2]s %[1]s
		JOIN Issue i ON i.issue_id = %[1]s.issue_id
		JOIN Visit v ON v.visit_id = i.visit_id
		JOIN Visit_Counselor vc ON vc.visit_id = v.visit_id
		JOIN Student s ON s.student_id = v.student_id
		WHERE vc.counselor_id = $1
		ORDER BY CASE WHEN %[4]s THEN 0 ELSE 1 END, %[1]s.created_at DESC, %[1]s.issue_id DESC`,
		alias, table, cols, severity.Unreported(alias+".student_reported_at"))
}

func counselorReferrals(ctx context.Context, q querier, counselorID int64) ([]Referral, error) {
	var out []Referral
	err := eachRow(ctx, q, assignedTo("Referral", "r", "r.referral_id, r.issue_id, r.details"), []any{counselorID},
		func(rows *sql.Rows) error {
			var x Referral
			if err := rows.Scan(&x.ID, &x.IssueID, &x.Details, &x.StudentID, &x.StudentName,
				&x.StudentReport, &x.StudentReportedAt, &x.CreatedAt); err != nil {
				return err
			}
			out = append(out, x)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load counselor referrals: %w", err)
	}
	return out, nil
}

func counselorFinancial(ctx context.Context, q querier, counselorID int64) ([]Financial, error) {
	var out []Financial
	err := eachRow(ctx, q, assignedTo("Financial", "f", "f.financial_id, f.issue_id, f.job_notes"), []any{counselorID},
		func(rows *sql.Rows) error {
			var x Financial
			if err := rows.Scan(&x.ID, &x.IssueID, &x.JobNotes, &x.StudentID, &x.StudentName,
				&x.StudentReport, &x.StudentReportedAt, &x.CreatedAt); err != nil {
				return err
			}
			out = append(out, x)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load counselor financial items: %w", err)
	}
	return out, nil
}

func counselorCoursework(ctx context.Context, q querier, counselorID int64) ([]Coursework, error) {
	var out []Coursework
	err := eachRow(ctx, q, assignedTo("Coursework", "cw", "cw.coursework_id, cw.issue_id, cw.course_id"), []any{counselorID},
		func(rows *sql.Rows) error {
			var x Coursework
			if err := rows.Scan(&x.ID, &x.IssueID, &x.CourseID, &x.StudentID, &x.StudentName,
				&x.StudentReport, &x.StudentReportedAt, &x.CreatedAt); err != nil {
				return err
			}
			out = append(out, x)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load counselor coursework: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	names := make(map[int64]string)
	err = eachRow(ctx, q, "SELECT course_id, course_name FROM Course", nil, func(rows *sql.Rows) error {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		names[id] = name
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load course names: %w", err)
	}
	for i := range out {
		if out[i].CourseID.Valid {
			if name, ok := names[out[i].CourseID.Int64]; ok {
				out[i].CourseName = sql.NullString{String: name, Valid: true}
			}
		}
	}
	return out, nil
}
