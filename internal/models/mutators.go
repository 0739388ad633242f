package models

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// TrackedUpdate is the student's report on a suggestion, referral, financial
// or coursework item. Empty fields are stored as NULL.
type TrackedUpdate struct {
	StudentReport     string
	StudentReportedAt string `validate:"omitempty,datetime=2006-01-02,notfuture"`
}

// FollowupUpdate closes a followup. When Resolved is false a new open
// followup is scheduled for the same visit and counselor.
type FollowupUpdate struct {
	Date     string `validate:"omitempty,datetime=2006-01-02,notfuture"`
	Notes    string
	Resolved bool
}

// Owner is the counselor a mutated record routes back to. Found is false when
// no counselor could be derived; callers fall back to the counselor list.
type Owner struct {
	CounselorID int64
	Found       bool
}

// FollowupResult reports a followup update and the followup it spawned, if any.
type FollowupResult struct {
	Owner
	VisitID     int64
	SpawnedID   int64
	ChainClosed bool
}

// issueOwner walks issue -> visit -> visit_counselor and picks the lowest
// assigned counselor id. A missing issue, visit or assignment yields a zero
// Owner, never an error.
func issueOwner(ctx context.Context, q querier, issueID int64) (Owner, error) {
	var cid int64
	err := q.QueryRowContext(ctx, `
		SELECT vc.counselor_id
		FROM Issue i
		JOIN Visit_Counselor vc ON vc.visit_id = i.visit_id
		WHERE i.issue_id = $1
		ORDER BY vc.counselor_id
		LIMIT 1
	`, issueID).Scan(&cid)
	if err == sql.ErrNoRows {
		log.Debug().Int64("issue_id", issueID).Msg("no counselor assigned to issue's visit")
		return Owner{}, nil
	}
	if err != nil {
		return Owner{}, fmt.Errorf("failed to find owning counselor: %w", err)
	}
	return Owner{CounselorID: cid, Found: true}, nil
}

// updateIssueChild applies set to the row of an issue-owned table and
// returns the owning counselor.
func (r *Repository) updateIssueChild(ctx context.Context, entity, table, idCol string, id int64, set string, args ...any) (Owner, error) {
	var owner Owner
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var issueID int64
		err := tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT issue_id FROM %s WHERE %s = $1", table, idCol), id).Scan(&issueID)
		if err == sql.ErrNoRows {
			return notFound(entity, id)
		}
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", entity, err)
		}
		if owner, err = issueOwner(ctx, tx, issueID); err != nil {
			return err
		}

		args = append(args, id)
		q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", table, set, idCol, len(args))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("failed to update %s: %w", entity, err)
		}
		return nil
	})
	if err != nil {
		return Owner{}, err
	}
	log.Info().Str("entity", entity).Int64("id", id).Int64("counselor_id", owner.CounselorID).Msg("student report updated")
	return owner, nil
}

func (r *Repository) UpdateReferral(ctx context.Context, id int64, details string, u TrackedUpdate) (Owner, error) {
	return r.updateIssueChild(ctx, "referral", "Referral", "referral_id", id,
		"student_report = $1, student_reported_at = $2, details = $3",
		nullString(strings.TrimSpace(u.StudentReport)), nullString(u.StudentReportedAt), nullString(strings.TrimSpace(details)))
}

func (r *Repository) UpdateFinancial(ctx context.Context, id int64, jobNotes string, u TrackedUpdate) (Owner, error) {
	return r.updateIssueChild(ctx, "financial record", "Financial", "financial_id", id,
		"student_report = $1, student_reported_at = $2, job_notes = $3",
		nullString(strings.TrimSpace(u.StudentReport)), nullString(u.StudentReportedAt), nullString(strings.TrimSpace(jobNotes)))
}

func (r *Repository) UpdateCoursework(ctx context.Context, id int64, u TrackedUpdate) (Owner, error) {
	return r.updateIssueChild(ctx, "coursework", "Coursework", "coursework_id", id,
		"student_report = $1, student_reported_at = $2",
		nullString(strings.TrimSpace(u.StudentReport)), nullString(u.StudentReportedAt))
}

// UpdateSuggestion records the student's report on a suggestion and returns
// the visit it belongs to along with its author.
func (r *Repository) UpdateSuggestion(ctx context.Context, id int64, u TrackedUpdate) (visitID int64, owner Owner, err error) {
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var cid int64
		err := tx.QueryRowContext(ctx,
			"SELECT visit_id, counselor_id FROM Suggestion WHERE suggestion_id = $1", id).Scan(&visitID, &cid)
		if err == sql.ErrNoRows {
			return notFound("suggestion", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get suggestion: %w", err)
		}
		owner = Owner{CounselorID: cid, Found: cid != 0}

		_, err = tx.ExecContext(ctx,
			"UPDATE Suggestion SET student_report = $1, student_reported_at = $2 WHERE suggestion_id = $3",
			nullString(strings.TrimSpace(u.StudentReport)), nullString(u.StudentReportedAt), id)
		if err != nil {
			return fmt.Errorf("failed to update suggestion: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, Owner{}, err
	}
	log.Info().Int64("suggestion_id", id).Int64("visit_id", visitID).Msg("suggestion report updated")
	return visitID, owner, nil
}

// CompleteFollowup marks a followup complete with the given date and notes.
// Unless the update is marked resolved, the next followup in the chain is
// created open for the same visit and counselor.
func (r *Repository) CompleteFollowup(ctx context.Context, id int64, u FollowupUpdate) (*FollowupResult, error) {
	res := &FollowupResult{}
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var cid int64
		err := tx.QueryRowContext(ctx,
			"SELECT visit_id, counselor_id FROM Followup WHERE followup_id = $1", id).Scan(&res.VisitID, &cid)
		if err == sql.ErrNoRows {
			return notFound("followup", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get followup: %w", err)
		}
		res.Owner = Owner{CounselorID: cid, Found: cid != 0}

		_, err = tx.ExecContext(ctx,
			"UPDATE Followup SET date = $1, notes = $2, complete = 1 WHERE followup_id = $3",
			nullString(u.Date), nullString(strings.TrimSpace(u.Notes)), id)
		if err != nil {
			return fmt.Errorf("failed to complete followup: %w", err)
		}

		if u.Resolved {
			res.ChainClosed = true
			return nil
		}
		res.SpawnedID, err = insertOpenFollowup(ctx, r.db, tx, res.VisitID, cid)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Int64("followup_id", id).
		Int64("counselor_id", res.CounselorID).
		Int64("next_followup_id", res.SpawnedID).
		Bool("resolved", res.ChainClosed).
		Msg("followup completed")
	return res, nil
}
