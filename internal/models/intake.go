package models

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"student-support-center/internal/db"

	"github.com/rs/zerolog/log"
)

// VisitIntake is one submission of the new-visit form.
type VisitIntake struct {
	StudentID    int64  `validate:"required,gt=0"`
	Date         string `validate:"required,datetime=2006-01-02"`
	Mode         string `validate:"required,max=50"`
	CounselorIDs []int64
	Issues       []IssueInput
	Suggestions  []SuggestionInput
}

// IssueInput is one issue slot of the intake form, also used when editing an
// issue. Category and course ids stay raw: ids that do not parse or do not
// resolve are skipped rather than failing the submission.
type IssueInput struct {
	Description     string
	Critical        bool
	CategoryIDs     []string
	Referral        bool
	ReferralDetails string
	Coursework      bool
	CourseID        string
	Financial       bool
	JobNotes        string
}

// Persisted reports whether the slot carries an issue. Empty slots are
// skipped along with everything nested under them.
func (in IssueInput) Persisted() bool {
	return strings.TrimSpace(in.Description) != ""
}

// SuggestionInput is one suggestion slot of the intake form.
type SuggestionInput struct {
	CounselorID string
	Details     string
}

// IntakeResult describes what an intake persisted.
type IntakeResult struct {
	VisitID            int64
	IssueIDs           []int64
	SuggestionIDs      []int64
	CounselorIDs       []int64
	Escalated          bool
	SkippedCategories  int
	SkippedSuggestions int
}

// CreateVisitWithIntake writes a visit with its counselor assignment, issues
// and suggestions as one unit. When any issue slot is marked critical the
// supervising counselor is added to the assignment, even if that slot has no
// description and is not stored.
func (r *Repository) CreateVisitWithIntake(ctx context.Context, in VisitIntake) (*IntakeResult, error) {
	res := &IntakeResult{}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := getStudent(ctx, tx, in.StudentID); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}

		// Insert visit
		visitID, err := r.db.NextID(ctx, tx, db.TableVisit)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO Visit (visit_id, student_id, date, mode) VALUES ($1, $2, $3, $4)",
			visitID, in.StudentID, strings.TrimSpace(in.Date), strings.TrimSpace(in.Mode))
		if err != nil {
			return fmt.Errorf("failed to insert visit: %w", err)
		}
		res.VisitID = visitID

		// Collect selected counselors, dropping unknown ids
		counselors, err := knownCounselors(ctx, tx)
		if err != nil {
			return err
		}
		assigned := make(map[int64]bool)
		for _, cid := range in.CounselorIDs {
			if !counselors[cid] {
				log.Warn().Int64("counselor_id", cid).Msg("unknown counselor dropped from intake")
				continue
			}
			assigned[cid] = true
		}
		// Escalate on any critical flag in the batch
		for _, issue := range in.Issues {
			if issue.Critical {
				res.Escalated = true
				break
			}
		}
		if res.Escalated {
			if !counselors[r.supervisorID] {
				return fmt.Errorf("%w: counselor %d", ErrSupervisorMissing, r.supervisorID)
			}
			assigned[r.supervisorID] = true
			log.Info().Int64("visit_id", visitID).Int64("supervisor_id", r.supervisorID).
				Msg("critical issue recorded, supervisor assigned")
		}
		for cid := range assigned {
			res.CounselorIDs = append(res.CounselorIDs, cid)
		}
		sort.Slice(res.CounselorIDs, func(i, j int) bool { return res.CounselorIDs[i] < res.CounselorIDs[j] })
		for _, cid := range res.CounselorIDs {
			if err := assignCounselor(ctx, tx, visitID, cid); err != nil {
				return err
			}
		}

		// Insert issues with their categories and type rows
		categories, err := knownCategories(ctx, tx)
		if err != nil {
			return err
		}
		for i, issue := range in.Issues {
			if !issue.Persisted() {
				continue
			}
			issueID, err := r.db.NextID(ctx, tx, db.TableIssue)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO Issue (issue_id, visit_id, issue_description, severity)
				VALUES ($1, $2, $3, $4)
			`, issueID, visitID, strings.TrimSpace(issue.Description), boolInt(issue.Critical))
			if err != nil {
				return fmt.Errorf("failed to insert issue %d: %w", i, err)
			}
			res.IssueIDs = append(res.IssueIDs, issueID)

			skipped, err := insertCategories(ctx, tx, issueID, issue.CategoryIDs, categories)
			if err != nil {
				return err
			}
			res.SkippedCategories += skipped
			if err := r.syncIssueTypes(ctx, tx, issueID, issue); err != nil {
				return err
			}
		}

		// Insert suggestions
		for i, s := range in.Suggestions {
			details := strings.TrimSpace(s.Details)
			cid, err := strconv.ParseInt(strings.TrimSpace(s.CounselorID), 10, 64)
			if details == "" || err != nil || !counselors[cid] {
				if details != "" || s.CounselorID != "" {
					log.Warn().Int("index", i).Str("counselor_id", s.CounselorID).Msg("suggestion skipped")
					res.SkippedSuggestions++
				}
				continue
			}
			sid, err := r.db.NextID(ctx, tx, db.TableSuggestion)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO Suggestion (suggestion_id, visit_id, counselor_id, details)
				VALUES ($1, $2, $3, $4)
			`, sid, visitID, cid, details)
			if err != nil {
				return fmt.Errorf("failed to insert suggestion %d: %w", i, err)
			}
			res.SuggestionIDs = append(res.SuggestionIDs, sid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("visit_id", res.VisitID).
		Ints64("counselors", res.CounselorIDs).
		Int("issues", len(res.IssueIDs)).
		Int("suggestions", len(res.SuggestionIDs)).
		Bool("escalated", res.Escalated).
		Msg("visit saved")
	return res, nil
}

func knownCategories(ctx context.Context, q querier) (map[int64]bool, error) {
	ids, err := queryInts(ctx, q, "SELECT category_id FROM Category")
	if err != nil {
		return nil, err
	}
	known := make(map[int64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return known, nil
}

// insertCategories links an issue to each resolvable category id and returns
// how many raw ids were skipped.
func insertCategories(ctx context.Context, tx *sql.Tx, issueID int64, raw []string, known map[int64]bool) (int, error) {
	skipped := 0
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		catID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || !known[catID] {
			log.Warn().Int64("issue_id", issueID).Str("category_id", v).Msg("category skipped")
			skipped++
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO Issue_Category (issue_id, category_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, issueID, catID)
		if err != nil {
			return skipped, fmt.Errorf("failed to link category %d: %w", catID, err)
		}
	}
	return skipped, nil
}

// syncIssueTypes writes an Issue_Type row per selected type and makes sure the
// matching sub-record exists. An existing referral takes the new details and
// an existing financial record the new job notes when any are given.
// Sub-records of types that are not selected are left in place.
func (r *Repository) syncIssueTypes(ctx context.Context, tx *sql.Tx, issueID int64, in IssueInput) error {
	types := []struct {
		name     string
		selected bool
	}{
		{IssueTypeReferral, in.Referral},
		{IssueTypeCoursework, in.Coursework},
		{IssueTypeFinancial, in.Financial},
	}
	for _, t := range types {
		if !t.selected {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO Issue_Type (issue_id, issue_type) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, issueID, t.name)
		if err != nil {
			return fmt.Errorf("failed to insert issue type %s: %w", t.name, err)
		}
	}

	if in.Referral {
		found, err := exists(ctx, tx, "SELECT 1 FROM Referral WHERE issue_id = $1", issueID)
		if err != nil {
			return fmt.Errorf("failed to check referral: %w", err)
		}
		if found {
			_, err = tx.ExecContext(ctx, "UPDATE Referral SET details = $1 WHERE issue_id = $2",
				nullString(strings.TrimSpace(in.ReferralDetails)), issueID)
		} else {
			err = r.insertChild(ctx, tx, db.TableReferral, "details", issueID, nullString(strings.TrimSpace(in.ReferralDetails)))
		}
		if err != nil {
			return fmt.Errorf("failed to save referral: %w", err)
		}
	}

	if in.Coursework {
		found, err := exists(ctx, tx, "SELECT 1 FROM Coursework WHERE issue_id = $1", issueID)
		if err != nil {
			return fmt.Errorf("failed to check coursework: %w", err)
		}
		if !found {
			courseID, err := resolveCourse(ctx, tx, in.CourseID)
			if err != nil {
				return err
			}
			if err := r.insertChild(ctx, tx, db.TableCoursework, "course_id", issueID, courseID); err != nil {
				return fmt.Errorf("failed to save coursework: %w", err)
			}
		}
	}

	if in.Financial {
		found, err := exists(ctx, tx, "SELECT 1 FROM Financial WHERE issue_id = $1", issueID)
		if err != nil {
			return fmt.Errorf("failed to check financial record: %w", err)
		}
		notes := nullString(strings.TrimSpace(in.JobNotes))
		switch {
		case !found:
			err = r.insertChild(ctx, tx, db.TableFinancial, "job_notes", issueID, notes)
		case notes.Valid:
			_, err = tx.ExecContext(ctx, "UPDATE Financial SET job_notes = $1 WHERE issue_id = $2", notes, issueID)
		}
		if err != nil {
			return fmt.Errorf("failed to save financial record: %w", err)
		}
	}
	return nil
}

// insertChild allocates an id in table and inserts (id, issue_id, column).
// table and column are always compile-time constants.
func (r *Repository) insertChild(ctx context.Context, tx *sql.Tx, table db.Table, column string, issueID int64, value any) error {
	id, err := r.db.NextID(ctx, tx, table)
	if err != nil {
		return err
	}
	idCol, _ := db.IDColumn(table)
	q := fmt.Sprintf("INSERT INTO %s (%s, issue_id, %s) VALUES ($1, $2, $3)", table, idCol, column)
	_, err = tx.ExecContext(ctx, q, id, issueID, value)
	return err
}

// resolveCourse maps a raw course id to a stored course, or NULL when the
// value is empty, malformed or unknown.
func resolveCourse(ctx context.Context, tx *sql.Tx, raw string) (sql.NullInt64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sql.NullInt64{}, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn().Str("course_id", raw).Msg("coursework course id not a number, stored without course")
		return sql.NullInt64{}, nil
	}
	found, err := exists(ctx, tx, "SELECT 1 FROM Course WHERE course_id = $1", id)
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("failed to check course: %w", err)
	}
	if !found {
		log.Warn().Int64("course_id", id).Msg("coursework course unknown, stored without course")
		return sql.NullInt64{}, nil
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}
