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

// VisitFilter holds raw list filters from the query string.
type VisitFilter struct {
	StudentIDs []string
	Mode       string
	IssueOp    string
	IssueVal   string
	Critical   string
}

// VisitUpdate replaces a visit's header and its counselor assignment.
type VisitUpdate struct {
	StudentID    int64  `validate:"required,gt=0"`
	Date         string `validate:"required,datetime=2006-01-02"`
	Mode         string `validate:"required,max=50"`
	CounselorIDs []int64
}

var visitColumns = query.Columns{
	"students": "v.student_id",
	"mode":     "v.mode",
	"issues":   "COUNT(i.issue_id)",
	"critical": "COALESCE(MAX(" + severity.Flag("i.severity") + "), 0)",
}

func (r *Repository) ListVisits(ctx context.Context, f VisitFilter) ([]*VisitListItem, error) {
	base := `
		SELECT v.visit_id, v.student_id, s.name, v.date, v.mode,
		       COUNT(i.issue_id) AS issue_count,
		       ` + visitColumns["critical"] + ` AS has_critical
		FROM Visit v
		JOIN Student s ON s.student_id = v.student_id
		LEFT JOIN Issue i ON i.visit_id = v.visit_id`

	b := query.New(base, visitColumns).
		InInts("students", f.StudentIDs).
		Equals("mode", f.Mode).
		GroupBy("v.visit_id, v.student_id, s.name, v.date, v.mode").
		HavingCompare("issues", f.IssueOp, f.IssueVal).
		HavingFlag("critical", f.Critical).
		OrderBy("v.date DESC, v.visit_id DESC")
	q, args := b.Build()
	if dropped := b.Dropped(); len(dropped) > 0 {
		log.Warn().Strs("dropped", dropped).Msg("visit filters ignored")
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []*VisitListItem
	for rows.Next() {
		item := &VisitListItem{}
		var critical int
		if err := rows.Scan(&item.ID, &item.StudentID, &item.StudentName, &item.Date, &item.Mode,
			&item.IssueCount, &critical); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		item.HasCritical = critical == 1
		visits = append(visits, item)
	}
	return visits, rows.Err()
}

func (r *Repository) GetVisit(ctx context.Context, id int64) (*Visit, error) {
	return getVisit(ctx, r.db, id)
}

func getVisit(ctx context.Context, q querier, id int64) (*Visit, error) {
	v := &Visit{}
	err := q.QueryRowContext(ctx, `
		SELECT v.visit_id, v.student_id, COALESCE(s.name, ''), v.date, v.mode
		FROM Visit v
		LEFT JOIN Student s ON s.student_id = v.student_id
		WHERE v.visit_id = $1
	`, id).Scan(&v.ID, &v.StudentID, &v.StudentName, &v.Date, &v.Mode)
	if err == sql.ErrNoRows {
		return nil, notFound("visit", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return v, nil
}

// VisitCounselorIDs returns the counselors assigned to a visit.
func (r *Repository) VisitCounselorIDs(ctx context.Context, visitID int64) ([]int64, error) {
	return queryInts(ctx, r.db,
		"SELECT counselor_id FROM Visit_Counselor WHERE visit_id = $1 ORDER BY counselor_id", visitID)
}

func (r *Repository) GetVisitDetail(ctx context.Context, id int64) (*VisitDetail, error) {
	visit, err := getVisit(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	detail := &VisitDetail{Visit: *visit}

	if detail.Counselors, err = queryOptions(ctx, r.db, `
		SELECT c.counselor_id, c.name
		FROM Counselor c
		JOIN Visit_Counselor vc ON vc.counselor_id = c.counselor_id
		WHERE vc.visit_id = $1
		ORDER BY c.name
	`, id); err != nil {
		return nil, err
	}
	if detail.Issues, err = loadIssues(ctx, r.db, id); err != nil {
		return nil, err
	}
	if detail.Suggestions, err = loadSuggestions(ctx, r.db, id); err != nil {
		return nil, err
	}
	if detail.Followups, err = listFollowups(ctx, r.db, "f.visit_id = $1", []any{id}); err != nil {
		return nil, err
	}
	return detail, nil
}

// UpdateVisit replaces the visit header and its assignment set in one
// transaction. Unknown counselor ids are dropped.
func (r *Repository) UpdateVisit(ctx context.Context, id int64, in VisitUpdate) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := getVisit(ctx, tx, id); err != nil {
			return err
		}
		if _, err := getStudent(ctx, tx, in.StudentID); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}

		_, err := tx.ExecContext(ctx,
			"UPDATE Visit SET student_id = $1, date = $2, mode = $3 WHERE visit_id = $4",
			in.StudentID, in.Date, in.Mode, id)
		if err != nil {
			return fmt.Errorf("failed to update visit: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM Visit_Counselor WHERE visit_id = $1", id); err != nil {
			return fmt.Errorf("failed to clear visit counselors: %w", err)
		}
		known, err := knownCounselors(ctx, tx)
		if err != nil {
			return err
		}
		for _, cid := range in.CounselorIDs {
			if !known[cid] {
				log.Warn().Int64("visit_id", id).Int64("counselor_id", cid).Msg("unknown counselor dropped from visit")
				continue
			}
			if err := assignCounselor(ctx, tx, id, cid); err != nil {
				return err
			}
		}
		log.Info().Int64("visit_id", id).Msg("visit updated")
		return nil
	})
}

// DeleteVisit removes the visit row only. Issues, suggestions, followups and
// assignment rows that reference it are retained.
func (r *Repository) DeleteVisit(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM Visit WHERE visit_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete visit: %w", err)
	}
	return requireAffected(res, "visit", id)
}

// ScheduleFollowup opens a followup for a counselor on a visit. It starts a
// new follow-up chain.
func (r *Repository) ScheduleFollowup(ctx context.Context, visitID, counselorID int64) (int64, error) {
	var id int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := getVisit(ctx, tx, visitID); err != nil {
			return err
		}
		known, err := knownCounselors(ctx, tx)
		if err != nil {
			return err
		}
		if !known[counselorID] {
			return fmt.Errorf("%w: counselor %d", ErrInvalidReference, counselorID)
		}
		id, err = insertOpenFollowup(ctx, r.db, tx, visitID, counselorID)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("visit_id", visitID).Int64("counselor_id", counselorID).Int64("followup_id", id).Msg("followup scheduled")
	return id, nil
}

func insertOpenFollowup(ctx context.Context, d *db.DB, tx *sql.Tx, visitID, counselorID int64) (int64, error) {
	id, err := d.NextID(ctx, tx, db.TableFollowup)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO Followup (followup_id, visit_id, counselor_id, date, notes, complete)
		VALUES ($1, $2, $3, NULL, NULL, NULL)
	`, id, visitID, counselorID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert followup: %w", err)
	}
	return id, nil
}

func assignCounselor(ctx context.Context, tx *sql.Tx, visitID, counselorID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO Visit_Counselor (visit_id, counselor_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, visitID, counselorID)
	if err != nil {
		return fmt.Errorf("failed to assign counselor %d: %w", counselorID, err)
	}
	return nil
}

func knownCounselors(ctx context.Context, q querier) (map[int64]bool, error) {
	ids, err := queryInts(ctx, q, "SELECT counselor_id FROM Counselor")
	if err != nil {
		return nil, err
	}
	known := make(map[int64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return known, nil
}

// listFollowups returns followups matching where, with visit, student and
// counselor names. Open followups sort first, oldest first; closed ones
// follow, most recent date first.
func listFollowups(ctx context.Context, q querier, where string, args []any) ([]Followup, error) {
	open := severity.OpenFollowup("f.complete")
	var out []Followup
	err := eachRow(ctx, q, `
		SELECT f.followup_id, f.visit_id, COALESCE(v.date, ''), f.counselor_id, COALESCE(c.name, ''),
		       COALESCE(v.student_id, 0), COALESCE(s.name, ''),
		       f.date, f.notes, CAST(f.complete AS TEXT),
		       CASE WHEN `+open+` THEN 1 ELSE 0 END AS is_open
		FROM Followup f
		LEFT JOIN Visit v ON v.visit_id = f.visit_id
		LEFT JOIN Student s ON s.student_id = v.student_id
		LEFT JOIN Counselor c ON c.counselor_id = f.counselor_id
		WHERE `+where+`
		ORDER BY is_open DESC, f.date DESC, f.followup_id`, args,
		func(rows *sql.Rows) error {
			var f Followup
			var isOpen int
			if err := rows.Scan(&f.ID, &f.VisitID, &f.VisitDate, &f.CounselorID, &f.CounselorName,
				&f.StudentID, &f.StudentName, &f.Date, &f.Notes, &f.Complete, &isOpen); err != nil {
				return err
			}
			f.Open = isOpen == 1
			out = append(out, f)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load followups: %w", err)
	}
	return out, nil
}

// ListReferrals returns every referral with the student it concerns, most
// recent first.
func (r *Repository) ListReferrals(ctx context.Context) ([]Referral, error) {
	var out []Referral
	err := eachRow(ctx, r.db, `
		SELECT r.referral_id, r.issue_id, r.details, r.student_report, r.student_reported_at,
		       COALESCE(CAST(r.created_at AS TEXT), ''), COALESCE(v.student_id, 0), COALESCE(s.name, '')
		FROM Referral r
		LEFT JOIN Issue i ON i.issue_id = r.issue_id
		LEFT JOIN Visit v ON v.visit_id = i.visit_id
		LEFT JOIN Student s ON s.student_id = v.student_id
		ORDER BY r.created_at DESC, r.referral_id DESC
	`, nil, func(rows *sql.Rows) error {
		var x Referral
		if err := rows.Scan(&x.ID, &x.IssueID, &x.Details, &x.StudentReport, &x.StudentReportedAt,
			&x.CreatedAt, &x.StudentID, &x.StudentName); err != nil {
			return err
		}
		out = append(out, x)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return out, nil
}

// ListFollowups returns every followup across all counselors.
func (r *Repository) ListFollowups(ctx context.Context) ([]Followup, error) {
	return listFollowups(ctx, r.db, "1 = 1", nil)
}
