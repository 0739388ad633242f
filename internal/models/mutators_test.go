package models_test

import (
	"context"
	"errors"
	"testing"

	"student-support-center/internal/db/dbtest"
	"student-support-center/internal/models"
)

func TestCompleteFollowup(t *testing.T) {
	tests := []struct {
		name        string
		resolved    bool
		wantSpawned int
	}{
		{name: "unresolved spawns the next followup", resolved: false, wantSpawned: 1},
		{name: "resolved closes the chain", resolved: true, wantSpawned: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, d := newRepo(t)
			ctx := context.Background()
			studentID := mustStudent(t, repo, "Ada")
			res := mustIntake(t, repo, models.VisitIntake{StudentID: studentID, Date: "2024-03-01", Mode: "remote", CounselorIDs: []int64{2}})
			followupID, err := repo.ScheduleFollowup(ctx, res.VisitID, 2)
			if err != nil {
				t.Fatalf("ScheduleFollowup: %v", err)
			}

			out, err := repo.CompleteFollowup(ctx, followupID, models.FollowupUpdate{
				Date:     "2024-03-08",
				Notes:    "called",
				Resolved: tt.resolved,
			})
			if err != nil {
				t.Fatalf("CompleteFollowup: %v", err)
			}

			if !out.Found || out.CounselorID != 2 {
				t.Errorf("owner = %+v, want counselor 2", out.Owner)
			}
			if n := dbtest.Count(t, d,
				"SELECT COUNT(*) FROM Followup WHERE followup_id = $1 AND complete = 1 AND date = '2024-03-08' AND notes = 'called'",
				followupID); n != 1 {
				t.Errorf("completed followup not stored")
			}
			spawned := dbtest.Count(t, d, `
				SELECT COUNT(*) FROM Followup
				WHERE followup_id <> $1 AND visit_id = $2 AND counselor_id = 2
				  AND date IS NULL AND notes IS NULL AND complete IS NULL`, followupID, res.VisitID)
			if spawned != tt.wantSpawned {
				t.Errorf("spawned followups = %d, want %d", spawned, tt.wantSpawned)
			}
			if (out.SpawnedID != 0) != (tt.wantSpawned == 1) {
				t.Errorf("SpawnedID = %d, want spawned=%v", out.SpawnedID, tt.wantSpawned == 1)
			}
		})
	}
}

func TestCompleteFollowupNotFound(t *testing.T) {
	repo, d := newRepo(t)

	_, err := repo.CompleteFollowup(context.Background(), 99, models.FollowupUpdate{})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Followup"); n != 0 {
		t.Errorf("followups = %d, want 0", n)
	}
}

func TestUpdateReferralRoutesToFirstAssignedCounselor(t *testing.T) {
	repo, d := newRepo(t)
	ctx := context.Background()
	studentID := mustStudent(t, repo, "Ada")
	mustIntake(t, repo, models.VisitIntake{
		StudentID:    studentID,
		Date:         "2024-03-01",
		Mode:         "remote",
		CounselorIDs: []int64{2, 1},
		Issues:       []models.IssueInput{{Description: "needs clinic", Referral: true, ReferralDetails: "clinic"}},
	})
	var referralID int64
	if err := d.QueryRowContext(ctx, "SELECT referral_id FROM Referral").Scan(&referralID); err != nil {
		t.Fatalf("referral lookup: %v", err)
	}

	owner, err := repo.UpdateReferral(ctx, referralID, "clinic, room 4", models.TrackedUpdate{
		StudentReport:     "went twice",
		StudentReportedAt: "2024-03-10",
	})
	if err != nil {
		t.Fatalf("UpdateReferral: %v", err)
	}
	if !owner.Found || owner.CounselorID != 1 {
		t.Errorf("owner = %+v, want counselor 1", owner)
	}
	if n := dbtest.Count(t, d, `
		SELECT COUNT(*) FROM Referral
		WHERE referral_id = $1 AND details = 'clinic, room 4'
		  AND student_report = 'went twice' AND student_reported_at = '2024-03-10'`, referralID); n != 1 {
		t.Error("referral fields not updated")
	}
}

func TestUpdateFinancialWithoutAssignmentFallsBack(t *testing.T) {
	repo, d := newRepo(t)
	ctx := context.Background()
	studentID := mustStudent(t, repo, "Ada")
	mustIntake(t, repo, models.VisitIntake{
		StudentID: studentID,
		Date:      "2024-03-01",
		Mode:      "remote",
		Issues:    []models.IssueInput{{Description: "rent", Financial: true}},
	})
	var financialID int64
	if err := d.QueryRowContext(ctx, "SELECT financial_id FROM Financial").Scan(&financialID); err != nil {
		t.Fatalf("financial lookup: %v", err)
	}

	owner, err := repo.UpdateFinancial(ctx, financialID, "campus job", models.TrackedUpdate{})
	if err != nil {
		t.Fatalf("UpdateFinancial: %v", err)
	}
	if owner.Found {
		t.Errorf("owner = %+v, want none", owner)
	}
	if n := dbtest.Count(t, d,
		"SELECT COUNT(*) FROM Financial WHERE job_notes = 'campus job' AND student_reported_at IS NULL"); n != 1 {
		t.Error("financial record not updated")
	}
}

func TestUpdateCourseworkToleratesOrphanedIssue(t *testing.T) {
	repo, d := newRepo(t)
	dbtest.Exec(t, d, "INSERT INTO Coursework (coursework_id, issue_id, course_id) VALUES (5, 999, 7)")

	owner, err := repo.UpdateCoursework(context.Background(), 5, models.TrackedUpdate{StudentReport: "passed", StudentReportedAt: "2024-05-01"})
	if err != nil {
		t.Fatalf("UpdateCoursework: %v", err)
	}
	if owner.Found {
		t.Errorf("owner = %+v, want none", owner)
	}
}

func TestUpdateMutatorsNotFound(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	calls := map[string]func() error{
		"referral": func() error {
			_, err := repo.UpdateReferral(ctx, 1, "", models.TrackedUpdate{})
			return err
		},
		"financial": func() error {
			_, err := repo.UpdateFinancial(ctx, 1, "", models.TrackedUpdate{})
			return err
		},
		"coursework": func() error {
			_, err := repo.UpdateCoursework(ctx, 1, models.TrackedUpdate{})
			return err
		},
		"suggestion": func() error {
			_, _, err := repo.UpdateSuggestion(ctx, 1, models.TrackedUpdate{})
			return err
		},
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", name, err)
		}
	}
}

func TestUpdateSuggestionReturnsVisit(t *testing.T) {
	repo, d := newRepo(t)
	ctx := context.Background()
	studentID := mustStudent(t, repo, "Ada")
	res := mustIntake(t, repo, models.VisitIntake{
		StudentID:   studentID,
		Date:        "2024-03-01",
		Mode:        "remote",
		Suggestions: []models.SuggestionInput{{CounselorID: "2", Details: "sleep schedule"}},
	})

	visitID, owner, err := repo.UpdateSuggestion(ctx, res.SuggestionIDs[0], models.TrackedUpdate{StudentReport: "trying", StudentReportedAt: "2024-03-05"})
	if err != nil {
		t.Fatalf("UpdateSuggestion: %v", err)
	}
	if visitID != res.VisitID || owner.CounselorID != 2 {
		t.Errorf("got visit %d owner %+v, want visit %d counselor 2", visitID, owner, res.VisitID)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Suggestion WHERE student_report = 'trying'"); n != 1 {
		t.Error("suggestion report not stored")
	}
}
