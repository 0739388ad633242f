package models

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"student-support-center/internal/db"

	"github.com/rs/zerolog/log"
)

// DiagnosisInput is a diagnosis as submitted from the student page.
type DiagnosisInput struct {
	ProviderID int64  `validate:"required,gt=0"`
	Code       string `validate:"required,max=20"`
	Date       string `validate:"omitempty,datetime=2006-01-02"`
	Symptoms   []string
}

func (r *Repository) diagnosesForStudent(ctx context.Context, studentID, editDiagID int64) ([]Diagnosis, error) {
	var out []Diagnosis
	err := eachRow(ctx, r.db, `
		SELECT d.diagnosis_id, d.student_id, d.provider_id, COALESCE(p.name, ''),
		       d.diagnosis_code, COALESCE(dl.diagnosis, ''), d.diagnosis_date
		FROM Diagnosis d
		LEFT JOIN Diagnosis_List dl ON d.diagnosis_code = dl.diagnosis_code
		LEFT JOIN Provider p ON d.provider_id = p.provider_id
		WHERE d.student_id = $1
		ORDER BY d.diagnosis_date DESC, d.diagnosis_id
	`, []any{studentID}, func(rows *sql.Rows) error {
		var d Diagnosis
		if err := rows.Scan(&d.ID, &d.StudentID, &d.ProviderID, &d.ProviderName, &d.Code, &d.Name, &d.Date); err != nil {
			return err
		}
		d.Editable = d.ID == editDiagID
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load diagnoses: %w", err)
	}

	for i := range out {
		err := eachRow(ctx, r.db, `
			SELECT s.symptom_code, COALESCE(sl.symptom, s.symptom_code)
			FROM Symptom s
			LEFT JOIN Symptom_List sl ON s.symptom_code = sl.symptom_code
			WHERE s.diagnosis_id = $1
			ORDER BY s.symptom_code
		`, []any{out[i].ID}, func(rows *sql.Rows) error {
			var code, name string
			if err := rows.Scan(&code, &name); err != nil {
				return err
			}
			out[i].SymptomCodes = append(out[i].SymptomCodes, code)
			out[i].Symptoms = append(out[i].Symptoms, name)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load symptoms: %w", err)
		}
	}
	return out, nil
}

// AddDiagnosis records a diagnosis and its symptoms for a student.
func (r *Repository) AddDiagnosis(ctx context.Context, studentID int64, in DiagnosisInput) (int64, error) {
	var id int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := getStudent(ctx, tx, studentID); err != nil {
			return err
		}
		if err := checkDiagnosisRefs(ctx, tx, in); err != nil {
			return err
		}
		var err error
		if id, err = r.db.NextID(ctx, tx, db.TableDiagnosis); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO Diagnosis (diagnosis_id, student_id, provider_id, diagnosis_code, diagnosis_date)
			VALUES ($1, $2, $3, $4, $5)
		`, id, studentID, in.ProviderID, in.Code, nullString(in.Date))
		if err != nil {
			return fmt.Errorf("failed to insert diagnosis: %w", err)
		}
		return insertSymptoms(ctx, tx, id, in.Symptoms)
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("diagnosis_id", id).Int64("student_id", studentID).Msg("diagnosis added")
	return id, nil
}

// UpdateDiagnosis replaces a diagnosis and its symptom set and returns the
// student it belongs to.
func (r *Repository) UpdateDiagnosis(ctx context.Context, id int64, in DiagnosisInput) (int64, error) {
	var studentID int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		if studentID, err = diagnosisStudent(ctx, tx, id); err != nil {
			return err
		}
		if err := checkDiagnosisRefs(ctx, tx, in); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE Diagnosis
			SET diagnosis_date = $1, provider_id = $2, diagnosis_code = $3
			WHERE diagnosis_id = $4
		`, nullString(in.Date), in.ProviderID, in.Code, id)
		if err != nil {
			return fmt.Errorf("failed to update diagnosis: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM Symptom WHERE diagnosis_id = $1", id); err != nil {
			return fmt.Errorf("failed to clear symptoms: %w", err)
		}
		return insertSymptoms(ctx, tx, id, in.Symptoms)
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("diagnosis_id", id).Msg("diagnosis updated")
	return studentID, nil
}

// DeleteDiagnosis removes a diagnosis with its symptom links and returns the
// student it belonged to.
func (r *Repository) DeleteDiagnosis(ctx context.Context, id int64) (int64, error) {
	var studentID int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		if studentID, err = diagnosisStudent(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM Symptom WHERE diagnosis_id = $1", id); err != nil {
			return fmt.Errorf("failed to delete symptoms: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM Diagnosis WHERE diagnosis_id = $1", id); err != nil {
			return fmt.Errorf("failed to delete diagnosis: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("diagnosis_id", id).Int64("student_id", studentID).Msg("diagnosis deleted")
	return studentID, nil
}

func diagnosisStudent(ctx context.Context, q querier, id int64) (int64, error) {
	var studentID int64
	err := q.QueryRowContext(ctx, "SELECT student_id FROM Diagnosis WHERE diagnosis_id = $1", id).Scan(&studentID)
	if err == sql.ErrNoRows {
		return 0, notFound("diagnosis", id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get diagnosis: %w", err)
	}
	return studentID, nil
}

func checkDiagnosisRefs(ctx context.Context, q querier, in DiagnosisInput) error {
	found, err := exists(ctx, q, "SELECT 1 FROM Provider WHERE provider_id = $1", in.ProviderID)
	if err != nil {
		return fmt.Errorf("failed to check provider: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: provider %d", ErrInvalidReference, in.ProviderID)
	}
	found, err = exists(ctx, q, "SELECT 1 FROM Diagnosis_List WHERE diagnosis_code = $1", in.Code)
	if err != nil {
		return fmt.Errorf("failed to check diagnosis code: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: diagnosis code %q", ErrInvalidReference, in.Code)
	}
	return nil
}

// insertSymptoms links each known symptom code once. Unknown codes are
// skipped.
func insertSymptoms(ctx context.Context, tx *sql.Tx, diagnosisID int64, codes []string) error {
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		found, err := exists(ctx, tx, "SELECT 1 FROM Symptom_List WHERE symptom_code = $1", code)
		if err != nil {
			return fmt.Errorf("failed to check symptom: %w", err)
		}
		if !found {
			log.Warn().Int64("diagnosis_id", diagnosisID).Str("symptom_code", code).Msg("unknown symptom skipped")
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO Symptom (diagnosis_id, symptom_code) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, diagnosisID, code)
		if err != nil {
			return fmt.Errorf("failed to insert symptom %s: %w", code, err)
		}
	}
	return nil
}
