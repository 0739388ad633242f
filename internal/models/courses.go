package models

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// EnrollStudent links a student to a course. Enrolling twice is not an error.
func (r *Repository) EnrollStudent(ctx context.Context, studentID, courseID int64) error {
	if _, err := getStudent(ctx, r.db, studentID); err != nil {
		return err
	}
	found, err := exists(ctx, r.db, "SELECT 1 FROM Course WHERE course_id = $1", courseID)
	if err != nil {
		return fmt.Errorf("failed to check course: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: course %d", ErrInvalidReference, courseID)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO Student_Course (student_id, course_id) VALUES ($1, $2)", studentID, courseID)
	if IsUniqueViolation(err) {
		log.Debug().Int64("student_id", studentID).Int64("course_id", courseID).Msg("student already enrolled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enroll student: %w", err)
	}
	log.Info().Int64("student_id", studentID).Int64("course_id", courseID).Msg("student enrolled")
	return nil
}

// UnenrollStudent removes a student's course link. Removing a link that does
// not exist is not an error.
func (r *Repository) UnenrollStudent(ctx context.Context, studentID, courseID int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM Student_Course WHERE student_id = $1 AND course_id = $2", studentID, courseID)
	if err != nil {
		return fmt.Errorf("failed to unenroll student: %w", err)
	}
	return nil
}
