package reports

import (
	"fmt"

	"student-support-center/internal/severity"
)

// Definition is one canned report.
type Definition struct {
	ID          int
	Title       string
	Description string
	// Keyword marks reports that take a free-text keyword parameter.
	Keyword bool

	sql   string
	extra *extraTable
}

type extraTable struct {
	title string
	sql   string
}

var catalog = []Definition{
	{
		ID:          1,
		Title:       "Counselor data (directory)",
		Description: "Lists all counselors with their type, education, and experience.",
		sql: `
			SELECT counselor_id, name, paid_volunteer, education, experience
			FROM Counselor
			ORDER BY name`,
	},
	{
		ID:          2,
		Title:       "Student data (directory)",
		Description: "Lists all students with basic demographics.",
		sql: `
			SELECT student_id, name, dob, country_of_birth, gender, consent, zip_code
			FROM Student
			ORDER BY name`,
	},
	{
		ID:          3,
		Title:       "Demographics: students by country",
		Description: "Counts how many students come from each country of birth, most common first.",
		sql: `
			SELECT country_of_birth AS country, COUNT(*) AS num_students
			FROM Student
			GROUP BY country_of_birth
			ORDER BY num_students DESC, country_of_birth`,
	},
	{
		ID:          4,
		Title:       "Types of issues & categories",
		Description: "Counts of issues by issue type and by category in one table.",
		sql: `
			SELECT 'Issue type' AS dimension_kind, it.issue_type AS dimension, COUNT(*) AS num_issues
			FROM Issue_Type it
			GROUP BY it.issue_type
			UNION ALL
			SELECT 'Category' AS dimension_kind, c.name AS dimension, COUNT(*) AS num_issues
			FROM Category c
			JOIN Issue_Category ic ON ic.category_id = c.category_id
			GROUP BY c.category_id, c.name
			ORDER BY dimension_kind, num_issues DESC, dimension`,
	},
	{
		ID:          5,
		Title:       "Visit frequency by student",
		Description: "How many visits each student has had.",
		sql: `
			SELECT s.student_id, s.name, COUNT(v.visit_id) AS num_visits
			FROM Student s
			LEFT JOIN Visit v ON v.student_id = s.student_id
			GROUP BY s.student_id, s.name
			ORDER BY num_visits DESC, s.name`,
	},
	{
		ID:          6,
		Title:       "Number of students per counselor",
		Description: "For each counselor, how many distinct students they have seen.",
		sql: `
			SELECT c.counselor_id, c.name, COUNT(DISTINCT v.student_id) AS num_students
			FROM Counselor c
			LEFT JOIN Visit_Counselor vc ON vc.counselor_id = c.counselor_id
			LEFT JOIN Visit v ON v.visit_id = vc.visit_id
			GROUP BY c.counselor_id, c.name
			ORDER BY num_students DESC, c.name`,
	},
	{
		ID:          7,
		Title:       "Number of students per issue category",
		Description: "How many distinct students have at least one issue in each category.",
		sql: `
			SELECT cat.category_id, cat.name AS category_name, COUNT(DISTINCT v.student_id) AS num_students
			FROM Category cat
			LEFT JOIN Issue_Category ic ON ic.category_id = cat.category_id
			LEFT JOIN Issue i ON i.issue_id = ic.issue_id
			LEFT JOIN Visit v ON v.visit_id = i.visit_id
			GROUP BY cat.category_id, cat.name
			ORDER BY num_students DESC, cat.name`,
	},
	{
		ID:          8,
		Title:       "Counts of referrals / financial / coursework help",
		Description: "Record counts for healthcare referrals, job/financial help and coursework support.",
		sql: `
			SELECT 'Healthcare referrals' AS type, COUNT(*) AS num_records FROM Referral
			UNION ALL
			SELECT 'Job / financial help' AS type, COUNT(*) AS num_records FROM Financial
			UNION ALL
			SELECT 'Coursework / dean / tutor support' AS type, COUNT(*) AS num_records FROM Coursework`,
	},
	{
		ID:          9,
		Title:       "Students flagged as critical",
		Description: "Students with at least one issue marked critical.",
		sql: fmt.Sprintf(`
			SELECT DISTINCT s.student_id, s.name, s.zip_code
			FROM Student s
			JOIN Visit v ON v.student_id = s.student_id
			JOIN Issue i ON i.visit_id = v.visit_id
			WHERE %s
			ORDER BY s.name, s.student_id`, severity.Predicate("i.severity")),
	},
	{
		ID:          10,
		Title:       "Students who have not reported back after support",
		Description: "Students with suggestions, referrals, financial or coursework items that have no reported-back date.",
		sql: fmt.Sprintf(`
			SELECT DISTINCT s.student_id, s.name, src.source
			FROM (
				SELECT v.student_id, 'Suggestion' AS source, sug.student_reported_at AS reported_at
				FROM Suggestion sug
				JOIN Visit v ON v.visit_id = sug.visit_id
				UNION ALL
				SELECT v.student_id, 'Referral' AS source, r.student_reported_at AS reported_at
				FROM Referral r
				JOIN Issue i ON i.issue_id = r.issue_id
				JOIN Visit v ON v.visit_id = i.visit_id
				UNION ALL
				SELECT v.student_id, 'Financial' AS source, f.student_reported_at AS reported_at
				FROM Financial f
				JOIN Issue i ON i.issue_id = f.issue_id
				JOIN Visit v ON v.visit_id = i.visit_id
				UNION ALL
				SELECT v.student_id, 'Coursework' AS source, cw.student_reported_at AS reported_at
				FROM Coursework cw
				JOIN Issue i ON i.issue_id = cw.issue_id
				JOIN Visit v ON v.visit_id = i.visit_id
			) src
			JOIN Student s ON s.student_id = src.student_id
			WHERE %s
			ORDER BY s.name, src.source, s.student_id`, severity.Unreported("src.reported_at")),
	},
	{
		ID:          11,
		Title:       "Counselors who have open follow ups",
		Description: "Counselors with at least one follow-up that is not complete.",
		sql: fmt.Sprintf(`
			SELECT DISTINCT c.counselor_id, c.name, c.paid_volunteer
			FROM Counselor c
			JOIN Followup f ON f.counselor_id = c.counselor_id
			WHERE %s
			ORDER BY c.name, c.counselor_id`, severity.OpenFollowup("f.complete")),
	},
	{
		ID:          12,
		Title:       "Counselors on payroll vs volunteers",
		Description: "Each counselor's role, plus counts by role.",
		sql: `
			SELECT counselor_id, name, paid_volunteer AS role
			FROM Counselor
			ORDER BY role, name`,
		extra: &extraTable{
			title: "Counselors by role",
			sql: `
				SELECT paid_volunteer AS role, COUNT(*) AS num_counselors
				FROM Counselor
				GROUP BY paid_volunteer
				ORDER BY role`,
		},
	},
	{
		ID:          13,
		Title:       "Min / Max / Avg salary of paid counselors",
		Description: "Summary statistics for counselor salaries.",
		sql: `
			SELECT MIN(salary) AS min_salary, MAX(salary) AS max_salary, AVG(salary) AS avg_salary
			FROM Counselor_Salary`,
	},
	{
		ID:          14,
		Title:       "Students with multiple issues",
		Description: "Students with two or more distinct issues recorded.",
		sql: `
			SELECT s.student_id, s.name, COUNT(DISTINCT i.issue_id) AS num_issues
			FROM Student s
			JOIN Visit v ON v.student_id = s.student_id
			JOIN Issue i ON i.visit_id = v.visit_id
			GROUP BY s.student_id, s.name
			HAVING COUNT(DISTINCT i.issue_id) >= 2
			ORDER BY num_issues DESC, s.name`,
	},
	{
		ID:          15,
		Title:       "Students with keyword-related issues",
		Description: "Students who reported issues whose description contains the keyword.",
		Keyword:     true,
		sql: `
			SELECT DISTINCT s.student_id, s.name, i.issue_id, i.issue_description
			FROM Issue i
			JOIN Visit v ON v.visit_id = i.visit_id
			JOIN Student s ON s.student_id = v.student_id
			WHERE LOWER(i.issue_description) LIKE LOWER($1) ESCAPE '\'
			ORDER BY s.name, i.issue_id`,
	},
	{
		ID:          16,
		Title:       "Students with health issues per ZIP code",
		Description: "Distinct students with at least one diagnosis, per ZIP code.",
		sql: `
			SELECT s.zip_code, COUNT(DISTINCT s.student_id) AS num_students_with_health_issues
			FROM Diagnosis d
			JOIN Student s ON s.student_id = d.student_id
			GROUP BY s.zip_code
			ORDER BY num_students_with_health_issues DESC, s.zip_code`,
	},
	{
		ID:          17,
		Title:       "Courses with academic difficulty",
		Description: "Courses and how many distinct students have coursework issues in them.",
		sql: `
			SELECT c.course_id, c.course_name, COUNT(DISTINCT s.student_id) AS num_students_with_difficulty
			FROM Coursework cw
			JOIN Course c ON c.course_id = cw.course_id
			JOIN Issue i ON i.issue_id = cw.issue_id
			JOIN Visit v ON v.visit_id = i.visit_id
			JOIN Student s ON s.student_id = v.student_id
			GROUP BY c.course_id, c.course_name
			ORDER BY num_students_with_difficulty DESC, c.course_name`,
	},
}

// Catalog lists every report in id order.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the report with the given id.
func Lookup(id int) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}
