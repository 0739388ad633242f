package models_test

import (
	"context"
	"errors"
	"testing"

	"student-support-center/internal/db/dbtest"
	"student-support-center/internal/models"
)

func TestIntakeEscalatesCriticalIssueToSupervisor(t *testing.T) {
	repo, d := newRepo(t)
	studentID := mustStudent(t, repo, "Ada")

	res := mustIntake(t, repo, models.VisitIntake{
		StudentID:    studentID,
		Date:         "2024-03-01",
		Mode:         "in-person",
		CounselorIDs: []int64{1},
		Issues: []models.IssueInput{
			{Description: "panic attack", Critical: true},
			{Description: "missed deadlines"},
		},
	})

	if !res.Escalated {
		t.Error("expected escalation for a critical issue")
	}
	ids, err := repo.VisitCounselorIDs(context.Background(), res.VisitID)
	if err != nil {
		t.Fatalf("VisitCounselorIDs: %v", err)
	}
	if !containsID(ids, supervisorID) || !containsID(ids, 1) {
		t.Errorf("assigned counselors = %v, want 1 and %d", ids, supervisorID)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Issue WHERE visit_id = $1", res.VisitID); n != 2 {
		t.Errorf("issues persisted = %d, want 2", n)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Issue WHERE severity = 1"); n != 1 {
		t.Errorf("critical issues stored as 1 = %d, want 1", n)
	}
}

func TestIntakeSupervisorAlreadySelectedIsAssignedOnce(t *testing.T) {
	repo, d := newRepo(t)
	studentID := mustStudent(t, repo, "Ada")

	res := mustIntake(t, repo, models.VisitIntake{
		StudentID:    studentID,
		Date:         "2024-03-01",
		Mode:         "remote",
		CounselorIDs: []int64{supervisorID, supervisorID, 2},
		Issues:       []models.IssueInput{{Description: "crisis", Critical: true}},
	})

	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Visit_Counselor WHERE visit_id = $1", res.VisitID); n != 2 {
		t.Errorf("assignment rows = %d, want 2", n)
	}
}

func TestIntakeWithoutCriticalIssueDoesNotEscalate(t *testing.T) {
	repo, _ := newRepo(t)
	studentID := mustStudent(t, repo, "Ada")

	res := mustIntake(t, repo, models.VisitIntake{
		StudentID:    studentID,
		Date:         "2024-03-01",
		Mode:         "remote",
		CounselorIDs: []int64{2},
		Issues: []models.IssueInput{
			{Description: "budgeting"},
			{Description: ""},
		},
	})

	if res.Escalated {
		t.Error("did not expect escalation")
	}
	ids, _ := repo.VisitCounselorIDs(context.Background(), res.VisitID)
	if containsID(ids, supervisorID) {
		t.Errorf("assigned counselors = %v, supervisor should be absent", ids)
	}
}

func TestIntakeCriticalFlagOnEmptySlotEscalates(t *testing.T) {
	repo, d := newRepo(t)
	studentID := mustStudent(t, repo, "Ada")

	res := mustIntake(t, repo, models.VisitIntake{
		StudentID:    studentID,
		Date:         "2024-03-01",
		Mode:         "remote",
		CounselorIDs: []int64{2},
		Issues: []models.IssueInput{
			{Description: "budgeting"},
			{Description: "", Critical: true},
		},
	})

	if !res.Escalated {
		t.Error("expected escalation from the critical empty slot")
	}
	ids, _ := repo.VisitCounselorIDs(context.Background(), res.VisitID)
	if !containsID(ids, supervisorID) || !containsID(ids, 2) {
		t.Errorf("assigned counselors = %v, want 2 and %d", ids, supervisorID)
	}
	// The empty slot itself is still not stored.
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Issue WHERE visit_id = $1", res.VisitID); n != 1 {
		t.Errorf("issues = %d, want 1", n)
	}
}

func TestIntakeSkipsEmptyIssueAndItsNestedData(t *testing.T) {
	repo, d := newRepo(t)
	studentID := mustStudent(t, repo, "Ada")

	res := mustIntake(t, repo, models.VisitIntake{
		StudentID: studentID,
		Date:      "2024-03-01",
		Mode:      "in-person",
		Issues: []models.IssueInput{
			{
				Description:     "",
				CategoryIDs:     []string{"1", "2"},
				Referral:        true,
				ReferralDetails: "clinic",
				Coursework:      true,
				CourseID:        "7",
			},
		},
	})

	checks := map[string]string{
		"Issue":          "SELECT COUNT(*) FROM Issue",
		"Issue_Category": "SELECT COUNT(*) FROM Issue_Category",
		"Issue_Type":     "SELECT COUNT(*) FROM Issue_Type",
		"Referral":       "SELECT COUNT(*) FROM Referral",
		"Coursework":     "SELECT COUNT(*) FROM Coursework",
	}
	for table, q := range checks {
		if n := dbtest.Count(t, d, q); n != 0 {
			t.Errorf("%s rows = %d, want 0", table, n)
		}
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Visit WHERE visit_id = $1", res.VisitID); n != 1 {
		t.Errorf("visit rows = %d, want 1", n)
	}
}

func TestIntakeWritesCategoriesTypesAndSubRecords(t *testing.T) {
	repo, d := newRepo(t)
	studentID := mustStudent(t, repo, "Ada")

	res := mustIntake(t, repo, models.VisitIntake{
		StudentID:    studentID,
		Date:         "2024-03-01",
		Mode:         "in-person",
		CounselorIDs: []int64{1},
		Issues: []models.IssueInput{
			{
				Description:     "failing calc",
				CategoryIDs:     []string{"2", "abc", "99", "2"},
				Referral:        true,
				ReferralDetails: "tutoring center",
				Coursework:      true,
				CourseID:        "7",
				Financial:       true,
				JobNotes:        "work study",
			},
		},
		Suggestions: []models.SuggestionInput{
			{CounselorID: "1", Details: "attend office hours"},
			{CounselorID: "x", Details: "ignored"},
			{CounselorID: "404", Details: "unknown counselor"},
			{CounselorID: "2", Details: ""},
		},
	})

	if len(res.IssueIDs) != 1 {
		t.Fatalf("issue ids = %v, want one", res.IssueIDs)
	}
	issueID := res.IssueIDs[0]
	if res.SkippedCategories != 2 {
		t.Errorf("skipped categories = %d, want 2", res.SkippedCategories)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Issue_Category WHERE issue_id = $1", issueID); n != 1 {
		t.Errorf("category links = %d, want 1", n)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Issue_Type WHERE issue_id = $1", issueID); n != 3 {
		t.Errorf("issue types = %d, want 3", n)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Referral WHERE issue_id = $1 AND details = 'tutoring center'", issueID); n != 1 {
		t.Errorf("referral rows = %d, want 1", n)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Coursework WHERE issue_id = $1 AND course_id = 7", issueID); n != 1 {
		t.Errorf("coursework rows = %d, want 1", n)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Financial WHERE issue_id = $1 AND job_notes = 'work study'", issueID); n != 1 {
		t.Errorf("financial rows = %d, want 1", n)
	}
	if len(res.SuggestionIDs) != 1 {
		t.Errorf("suggestions saved = %v, want one", res.SuggestionIDs)
	}
	if res.SkippedSuggestions != 3 {
		t.Errorf("skipped suggestions = %d, want 3", res.SkippedSuggestions)
	}
}

func TestIntakeUnknownCourseStoresCourseworkWithoutCourse(t *testing.T) {
	repo, d := newRepo(t)
	studentID := mustStudent(t, repo, "Ada")

	mustIntake(t, repo, models.VisitIntake{
		StudentID: studentID,
		Date:      "2024-03-01",
		Mode:      "remote",
		Issues:    []models.IssueInput{{Description: "lab trouble", Coursework: true, CourseID: "55"}},
	})

	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Coursework WHERE course_id IS NULL"); n != 1 {
		t.Errorf("coursework without course = %d, want 1", n)
	}
}

func TestIntakeRollsBackWhenSupervisorMissing(t *testing.T) {
	repo, d := newRepo(t)
	studentID := mustStudent(t, repo, "Ada")
	dbtest.Exec(t, d, "DELETE FROM Counselor WHERE counselor_id = 113")

	_, err := repo.CreateVisitWithIntake(context.Background(), models.VisitIntake{
		StudentID:    studentID,
		Date:         "2024-03-01",
		Mode:         "in-person",
		CounselorIDs: []int64{1},
		Issues: []models.IssueInput{
			{Description: "first", CategoryIDs: []string{"1"}},
			{Description: "second", Critical: true},
		},
	})
	if !errors.Is(err, models.ErrSupervisorMissing) {
		t.Fatalf("err = %v, want ErrSupervisorMissing", err)
	}
	for _, table := range []string{"Visit", "Visit_Counselor", "Issue", "Issue_Category"} {
		if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM "+table); n != 0 {
			t.Errorf("%s rows after rollback = %d, want 0", table, n)
		}
	}
}

func TestIntakeRejectsUnknownStudent(t *testing.T) {
	repo, d := newRepo(t)

	_, err := repo.CreateVisitWithIntake(context.Background(), models.VisitIntake{
		StudentID: 42,
		Date:      "2024-03-01",
		Mode:      "remote",
	})
	if !errors.Is(err, models.ErrInvalidReference) {
		t.Fatalf("err = %v, want ErrInvalidReference", err)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Visit"); n != 0 {
		t.Errorf("visits = %d, want 0", n)
	}
}

func TestIntakeAllocatesPastExistingIDs(t *testing.T) {
	repo, d := newRepo(t)
	studentID := mustStudent(t, repo, "Ada")
	dbtest.Exec(t, d,
		"INSERT INTO Visit (visit_id, student_id, date, mode) VALUES (40, 1, '2023-01-01', 'remote')",
		"INSERT INTO Issue (issue_id, visit_id, issue_description, severity) VALUES (17, 40, 'old', 0)",
	)

	res := mustIntake(t, repo, models.VisitIntake{
		StudentID: studentID,
		Date:      "2024-03-01",
		Mode:      "remote",
		Issues:    []models.IssueInput{{Description: "a"}, {Description: "b"}},
	})

	if res.VisitID != 41 {
		t.Errorf("visit id = %d, want 41", res.VisitID)
	}
	if len(res.IssueIDs) != 2 || res.IssueIDs[0] != 18 || res.IssueIDs[1] != 19 {
		t.Errorf("issue ids = %v, want [18 19]", res.IssueIDs)
	}
}
