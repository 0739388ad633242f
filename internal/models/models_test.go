package models_test

import (
	"context"
	"testing"

	"student-support-center/internal/db"
	"student-support-center/internal/db/dbtest"
	"student-support-center/internal/models"
)

const supervisorID = 113

// newRepo returns a repository over a migrated in-memory database holding the
// lookup rows most tests need: counselors 1, 2 and the supervisor, categories
// 1 and 2, course 7, one provider, two diagnoses and two symptoms.
func newRepo(t *testing.T) (*models.Repository, *db.DB) {
	t.Helper()
	d := dbtest.Open(t)
	dbtest.Exec(t, d,
		`INSERT INTO Counselor (counselor_id, name, paid_volunteer, education, experience) VALUES
			(1, 'Grace', 'paid', 'MSW', 10),
			(2, 'Linus', 'volunteer', 'BA', 2),
			(113, 'Head Counselor', 'paid', 'PhD', 25)`,
		`INSERT INTO Counselor_Salary (counselor_id, salary) VALUES (1, 52000), (113, 90000)`,
		`INSERT INTO Category (category_id, name) VALUES (1, 'Anxiety'), (2, 'Academic')`,
		`INSERT INTO Course (course_id, course_name) VALUES (7, 'Calculus I'), (8, 'Biology')`,
		`INSERT INTO Provider (provider_id, name) VALUES (1, 'Campus Health')`,
		`INSERT INTO Diagnosis_List (diagnosis_code, diagnosis) VALUES ('F41', 'Anxiety disorder'), ('F32', 'Depressive episode')`,
		`INSERT INTO Symptom_List (symptom_code, symptom) VALUES ('S1', 'Insomnia'), ('S2', 'Fatigue')`,
	)
	return models.NewRepository(d, supervisorID), d
}

func mustStudent(t *testing.T, repo *models.Repository, name string) int64 {
	t.Helper()
	id, err := repo.CreateStudent(context.Background(), models.StudentInput{
		Name:           name,
		DOB:            "2004-05-06",
		CountryOfBirth: "Kenya",
		Gender:         "F",
		Consent:        true,
		ZipCode:        "02139",
	})
	if err != nil {
		t.Fatalf("CreateStudent(%q): %v", name, err)
	}
	return id
}

func mustIntake(t *testing.T, repo *models.Repository, in models.VisitIntake) *models.IntakeResult {
	t.Helper()
	res, err := repo.CreateVisitWithIntake(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateVisitWithIntake: %v", err)
	}
	return res
}

func containsID(ids []int64, want int64) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
