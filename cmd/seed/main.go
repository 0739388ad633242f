// Seeder command for populating lookup tables and demo visits.
//
// SAFETY: This command ONLY runs when:
//   - APP_ENV=development
//   - --confirm flag is provided
//
// Usage:
//
//	APP_ENV=development go run ./cmd/seed --count 12 --confirm
//
// Lookup rows (counselors including the supervisor, categories, courses,
// providers, diagnoses and symptoms) are inserted only when missing, so the
// seeder can be re-run against the same database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"student-support-center/internal/config"
	"student-support-center/internal/db"
	"student-support-center/internal/logger"
	"student-support-center/internal/models"

	"github.com/rs/zerolog/log"
)

var lookups = []string{
	`INSERT INTO Counselor (counselor_id, name, paid_volunteer, education, experience) VALUES
		(1, 'Grace Okafor', 'paid', 'MSW', 12),
		(2, 'Linus Berg', 'volunteer', 'BA Psychology', 2),
		(3, 'Mei Tanaka', 'paid', 'MA Counseling', 6),
		(4, 'Omar Haddad', 'volunteer', 'BSc', 1)
	 ON CONFLICT DO NOTHING`,
	`INSERT INTO Counselor_Salary (counselor_id, salary) VALUES (1, 61000), (3, 54000) ON CONFLICT DO NOTHING`,
	`INSERT INTO Category (category_id, name) VALUES
		(1, 'Anxiety'), (2, 'Academic'), (3, 'Housing'), (4, 'Family'), (5, 'Employment')
	 ON CONFLICT DO NOTHING`,
	`INSERT INTO Course (course_id, course_name) VALUES
		(1, 'Calculus I'), (2, 'Intro Biology'), (3, 'Composition'), (4, 'Statistics')
	 ON CONFLICT DO NOTHING`,
	`INSERT INTO Provider (provider_id, name) VALUES (1, 'Campus Health'), (2, 'City Clinic') ON CONFLICT DO NOTHING`,
	`INSERT INTO Diagnosis_List (diagnosis_code, diagnosis) VALUES
		('F41', 'Anxiety disorder'), ('F32', 'Depressive episode'), ('F90', 'ADHD')
	 ON CONFLICT DO NOTHING`,
	`INSERT INTO Symptom_List (symptom_code, symptom) VALUES
		('S1', 'Insomnia'), ('S2', 'Fatigue'), ('S3', 'Poor concentration')
	 ON CONFLICT DO NOTHING`,
}

func main() {
	count := flag.Int("count", 12, "Number of demo students to seed")
	confirm := flag.Bool("confirm", false, "Confirm seeding (required)")
	flag.Parse()

	cfg := config.Load()
	logger.Configure(logger.Config{Level: cfg.LogLevel, Pretty: true})

	// Safety check: APP_ENV must be development
	if os.Getenv("APP_ENV") != "development" {
		log.Fatal().Msg("seeder can only run with APP_ENV=development")
	}
	if !*confirm {
		log.Fatal().Msgf("--confirm flag is required. Usage: APP_ENV=development go run ./cmd/seed --count %d --confirm", *count)
	}

	ctx := context.Background()
	d, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer d.Close()
	if err := d.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	supervisor := fmt.Sprintf(`INSERT INTO Counselor (counselor_id, name, paid_volunteer, education, experience)
		VALUES (%d, 'Head Counselor', 'paid', 'PhD Clinical Psychology', 25) ON CONFLICT DO NOTHING`,
		cfg.SupervisorCounselorID)
	for _, stmt := range append(lookups, supervisor) {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			log.Fatal().Err(err).Msg("failed to seed lookup rows")
		}
	}

	repo := models.NewRepository(d, cfg.SupervisorCounselorID)
	stats, err := seedVisits(ctx, repo, *count)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed demo visits")
	}

	log.Info().
		Int("students", stats.students).
		Int("visits", stats.visits).
		Int("escalated", stats.escalated).
		Int("followups", stats.followups).
		Msg("seeding complete, visit /visits to see the data")
}

type seedStats struct {
	students, visits, escalated, followups int
}

var (
	countries = []string{"Kenya", "Mexico", "Vietnam", "Canada", "Brazil"}
	genders   = []string{"F", "M", "X"}
	modes     = []string{"In person", "Phone", "Video"}
	problems  = []string{
		"trouble sleeping before exams",
		"rent increase, may need to move",
		"falling behind in calculus",
		"lost part-time job",
		"conflict with roommate",
	}
)

// seedVisits creates students and one intake per student through the
// repository, so the escalation and sub-record rules apply to demo data too.
func seedVisits(ctx context.Context, repo *models.Repository, count int) (seedStats, error) {
	var stats seedStats
	for i := 1; i <= count; i++ {
		studentID, err := repo.CreateStudent(ctx, models.StudentInput{
			Name:           fmt.Sprintf("Seed Student %02d", i),
			DOB:            fmt.Sprintf("200%d-0%d-1%d", i%6, 1+i%9, i%9),
			CountryOfBirth: countries[i%len(countries)],
			Gender:         genders[i%len(genders)],
			Consent:        i%4 != 0,
			ZipCode:        fmt.Sprintf("021%02d", i),
		})
		if err != nil {
			return stats, fmt.Errorf("student %d: %w", i, err)
		}
		stats.students++

		counselor := int64(1 + i%4)
		issue := models.IssueInput{
			Description: problems[i%len(problems)],
			Critical:    i%5 == 0,
			CategoryIDs: []string{fmt.Sprint(1 + i%5)},
			Referral:    i%2 == 0,
			Financial:   i%3 == 0,
			Coursework:  i%3 == 1,
			CourseID:    fmt.Sprint(1 + i%4),
		}
		if issue.Referral {
			issue.ReferralDetails = "Referred to campus services"
		}
		res, err := repo.CreateVisitWithIntake(ctx, models.VisitIntake{
			StudentID:    studentID,
			Date:         fmt.Sprintf("2024-0%d-%02d", 1+i%9, 1+i%28),
			Mode:         modes[i%len(modes)],
			CounselorIDs: []int64{counselor},
			Issues:       []models.IssueInput{issue},
			Suggestions: []models.SuggestionInput{{
				CounselorID: fmt.Sprint(counselor),
				Details:     "Check in again next week",
			}},
		})
		if err != nil {
			return stats, fmt.Errorf("visit for student %d: %w", i, err)
		}
		stats.visits++
		if res.Escalated {
			stats.escalated++
		}

		if i%2 == 1 {
			if _, err := repo.ScheduleFollowup(ctx, res.VisitID, counselor); err != nil {
				return stats, fmt.Errorf("followup for visit %d: %w", res.VisitID, err)
			}
			stats.followups++
		}
	}
	return stats, nil
}
