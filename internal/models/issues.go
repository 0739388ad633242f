package models

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"student-support-center/internal/severity"

	"github.com/rs/zerolog/log"
)

// IssueEdit is an issue as shown on its edit form.
type IssueEdit struct {
	Issue           *Issue
	ReferralDetails string
	JobNotes        string
	CourseID        sql.NullInt64
}

func (r *Repository) GetIssue(ctx context.Context, id int64) (*IssueEdit, error) {
	issue := &Issue{}
	var sev any
	err := r.db.QueryRowContext(ctx,
		"SELECT issue_id, visit_id, issue_description, severity FROM Issue WHERE issue_id = $1", id,
	).Scan(&issue.ID, &issue.VisitID, &issue.Description, &sev)
	if err == sql.ErrNoRows {
		return nil, notFound("issue", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	issue.Critical = severity.IsCritical(sev)

	if issue.Types, err = queryStrings(ctx, r.db,
		"SELECT issue_type FROM Issue_Type WHERE issue_id = $1 ORDER BY issue_type", id); err != nil {
		return nil, err
	}
	if issue.CategoryIDs, err = queryInts(ctx, r.db,
		"SELECT category_id FROM Issue_Category WHERE issue_id = $1 ORDER BY category_id", id); err != nil {
		return nil, err
	}

	edit := &IssueEdit{Issue: issue}
	var details, notes sql.NullString
	err = r.db.QueryRowContext(ctx,
		"SELECT details FROM Referral WHERE issue_id = $1 ORDER BY referral_id LIMIT 1", id).Scan(&details)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}
	err = r.db.QueryRowContext(ctx,
		"SELECT job_notes FROM Financial WHERE issue_id = $1 ORDER BY financial_id LIMIT 1", id).Scan(&notes)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get financial record: %w", err)
	}
	err = r.db.QueryRowContext(ctx,
		"SELECT course_id FROM Coursework WHERE issue_id = $1 ORDER BY coursework_id LIMIT 1", id).Scan(&edit.CourseID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get coursework: %w", err)
	}
	edit.ReferralDetails = details.String
	edit.JobNotes = notes.String
	return edit, nil
}

// UpdateIssue replaces an issue's description, severity, categories and types
// and returns the owning visit id. Sub-records for newly selected types are
// created; those for deselected types are kept.
func (r *Repository) UpdateIssue(ctx context.Context, id int64, in IssueInput) (int64, error) {
	var visitID int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT visit_id FROM Issue WHERE issue_id = $1", id).Scan(&visitID)
		if err == sql.ErrNoRows {
			return notFound("issue", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get issue: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE Issue SET issue_description = $1, severity = $2 WHERE issue_id = $3",
			strings.TrimSpace(in.Description), boolInt(in.Critical), id)
		if err != nil {
			return fmt.Errorf("failed to update issue: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM Issue_Category WHERE issue_id = $1", id); err != nil {
			return fmt.Errorf("failed to clear issue categories: %w", err)
		}
		categories, err := knownCategories(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := insertCategories(ctx, tx, id, in.CategoryIDs, categories); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM Issue_Type WHERE issue_id = $1", id); err != nil {
			return fmt.Errorf("failed to clear issue types: %w", err)
		}
		return r.syncIssueTypes(ctx, tx, id, in)
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("issue_id", id).Int64("visit_id", visitID).Bool("critical", in.Critical).Msg("issue updated")
	return visitID, nil
}
