package models_test

import (
	"context"
	"errors"
	"testing"

	"student-support-center/internal/db/dbtest"
	"student-support-center/internal/models"
)

func TestDiagnosisLifecycle(t *testing.T) {
	repo, d := newRepo(t)
	ctx := context.Background()
	studentID := mustStudent(t, repo, "Ada")

	id, err := repo.AddDiagnosis(ctx, studentID, models.DiagnosisInput{
		ProviderID: 1,
		Code:       "F41",
		Date:       "2024-01-10",
		Symptoms:   []string{"S1", "S2", "S1", "S9"},
	})
	if err != nil {
		t.Fatalf("AddDiagnosis: %v", err)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Symptom WHERE diagnosis_id = $1", id); n != 2 {
		t.Errorf("symptoms = %d, want 2", n)
	}

	owner, err := repo.UpdateDiagnosis(ctx, id, models.DiagnosisInput{ProviderID: 1, Code: "F32", Symptoms: []string{"S2"}})
	if err != nil {
		t.Fatalf("UpdateDiagnosis: %v", err)
	}
	if owner != studentID {
		t.Errorf("student = %d, want %d", owner, studentID)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Symptom WHERE diagnosis_id = $1 AND symptom_code = 'S2'", id); n != 1 {
		t.Error("symptom set not replaced")
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Diagnosis WHERE diagnosis_code = 'F32' AND diagnosis_date IS NULL"); n != 1 {
		t.Error("diagnosis not updated")
	}

	if _, err := repo.DeleteDiagnosis(ctx, id); err != nil {
		t.Fatalf("DeleteDiagnosis: %v", err)
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Symptom"); n != 0 {
		t.Errorf("symptoms after delete = %d, want 0", n)
	}
	if _, err := repo.DeleteDiagnosis(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDiagnosisRejectsUnknownReferences(t *testing.T) {
	repo, d := newRepo(t)
	ctx := context.Background()
	studentID := mustStudent(t, repo, "Ada")

	tests := []struct {
		name string
		in   models.DiagnosisInput
	}{
		{name: "provider", in: models.DiagnosisInput{ProviderID: 9, Code: "F41"}},
		{name: "code", in: models.DiagnosisInput{ProviderID: 1, Code: "Z99"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.AddDiagnosis(ctx, studentID, tt.in); !errors.Is(err, models.ErrInvalidReference) {
				t.Errorf("err = %v, want ErrInvalidReference", err)
			}
		})
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Diagnosis"); n != 0 {
		t.Errorf("diagnoses = %d, want 0", n)
	}
	if _, err := repo.AddDiagnosis(ctx, 404, models.DiagnosisInput{ProviderID: 1, Code: "F41"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown student err = %v, want ErrNotFound", err)
	}
}

func TestUpdateDiagnosisRollsBackOnBadReference(t *testing.T) {
	repo, d := newRepo(t)
	ctx := context.Background()
	studentID := mustStudent(t, repo, "Ada")
	id, err := repo.AddDiagnosis(ctx, studentID, models.DiagnosisInput{ProviderID: 1, Code: "F41", Symptoms: []string{"S1"}})
	if err != nil {
		t.Fatalf("AddDiagnosis: %v", err)
	}

	if _, err := repo.UpdateDiagnosis(ctx, id, models.DiagnosisInput{ProviderID: 7, Code: "F32"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if n := dbtest.Count(t, d, "SELECT COUNT(*) FROM Symptom WHERE diagnosis_id = $1", id); n != 1 {
		t.Errorf("symptoms = %d, want 1 after failed update", n)
	}
}
