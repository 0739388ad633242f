package forms

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"student-support-center/internal/models"
	"student-support-center/internal/severity"
)

// ErrTooManyRows is returned when a nested row index is at or above the
// configured bound.
var ErrTooManyRows = errors.New("too many form rows")

// ErrMalformed is returned when a field that must be numeric is not.
var ErrMalformed = errors.New("malformed form field")

// nestedKey matches issues[0][description], issues[2][categories][] and
// suggestions[1][details].
var nestedKey = regexp.MustCompile(`^(issues|suggestions)\[(\d+)\]\[([a-z_]+)\](\[\])?$`)

type rows map[int]url.Values

func (r rows) indices() []int {
	out := make([]int, 0, len(r))
	for i := range r {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// nested splits the issues[..] and suggestions[..] keys of form into per-row
// value sets. Indices may be sparse; rows come back ordered by index.
func nested(form url.Values, maxRows int) (issues, suggestions rows, err error) {
	issues, suggestions = rows{}, rows{}
	for key, values := range form {
		m := nestedKey.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil || idx >= maxRows {
			return nil, nil, fmt.Errorf("%w: %s (limit %d)", ErrTooManyRows, key, maxRows)
		}
		target := issues
		if m[1] == "suggestions" {
			target = suggestions
		}
		if target[idx] == nil {
			target[idx] = url.Values{}
		}
		field := m[3]
		target[idx][field] = append(target[idx][field], values...)
	}
	return issues, suggestions, nil
}

func checked(v url.Values, field string) bool {
	_, ok := v[field]
	return ok
}

func critical(raw string) bool {
	return raw == "on" || severity.IsCritical(raw)
}

func trimmed(v url.Values, field string) string {
	return strings.TrimSpace(v.Get(field))
}

// CounselorIDs reads counselor_ids and counselor_ids[] together. Values that
// do not parse are skipped.
func CounselorIDs(form url.Values) []int64 {
	raw := append(append([]string{}, form["counselor_ids"]...), form["counselor_ids[]"]...)
	var ids []int64
	for _, s := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// DecodeIntake builds a visit intake from the new-visit form.
func DecodeIntake(form url.Values, maxRows int) (models.VisitIntake, error) {
	in := models.VisitIntake{
		Date:         trimmed(form, "date"),
		Mode:         trimmed(form, "mode"),
		CounselorIDs: CounselorIDs(form),
	}
	if s := trimmed(form, "student_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return in, fmt.Errorf("%w: student_id %q", ErrMalformed, s)
		}
		in.StudentID = id
	}

	issues, suggestions, err := nested(form, maxRows)
	if err != nil {
		return in, err
	}
	for _, i := range issues.indices() {
		in.Issues = append(in.Issues, issueInput(issues[i]))
	}
	for _, i := range suggestions.indices() {
		row := suggestions[i]
		in.Suggestions = append(in.Suggestions, models.SuggestionInput{
			CounselorID: trimmed(row, "counselor_id"),
			Details:     trimmed(row, "details"),
		})
	}
	return in, nil
}

func issueInput(v url.Values) models.IssueInput {
	return models.IssueInput{
		Description:     trimmed(v, "description"),
		Critical:        critical(v.Get("critical")),
		CategoryIDs:     v["categories"],
		Referral:        checked(v, "referral"),
		ReferralDetails: v.Get("referral_details"),
		Coursework:      checked(v, "coursework"),
		CourseID:        trimmed(v, "course_id"),
		Financial:       checked(v, "financial"),
		JobNotes:        v.Get("job_notes"),
	}
}

// DecodeIssue reads the single-issue edit form, which uses flat field names.
func DecodeIssue(form url.Values) models.IssueInput {
	v := url.Values{}
	for key, values := range form {
		v[strings.TrimSuffix(key, "[]")] = append(v[strings.TrimSuffix(key, "[]")], values...)
	}
	return issueInput(v)
}

// DecodeStudent reads the student create and edit forms.
func DecodeStudent(form url.Values) models.StudentInput {
	return models.StudentInput{
		Name:           trimmed(form, "name"),
		DOB:            trimmed(form, "dob"),
		CountryOfBirth: trimmed(form, "country_of_birth"),
		Gender:         trimmed(form, "gender"),
		Consent:        form.Get("consent") == "on" || form.Get("consent") == "1",
		ZipCode:        trimmed(form, "zip_code"),
	}
}

// DecodeCounselor reads the new-counselor form. Blank numeric fields stay nil.
func DecodeCounselor(form url.Values) (models.CounselorInput, error) {
	in := models.CounselorInput{
		Name:          trimmed(form, "name"),
		PaidVolunteer: strings.ToLower(trimmed(form, "paid_volunteer")),
		Education:     trimmed(form, "education"),
	}
	var err error
	if in.Experience, err = optionalInt(form, "experience"); err != nil {
		return in, err
	}
	if in.Salary, err = optionalInt(form, "salary"); err != nil {
		return in, err
	}
	return in, nil
}

// DecodeVisitUpdate reads the visit edit form.
func DecodeVisitUpdate(form url.Values) (models.VisitUpdate, error) {
	in := models.VisitUpdate{
		Date:         trimmed(form, "date"),
		Mode:         trimmed(form, "mode"),
		CounselorIDs: CounselorIDs(form),
	}
	id, err := requiredInt(form, "student_id")
	in.StudentID = id
	return in, err
}

// DecodeDiagnosis reads the add and edit diagnosis forms.
func DecodeDiagnosis(form url.Values) (models.DiagnosisInput, error) {
	in := models.DiagnosisInput{
		Code:     trimmed(form, "diagnosis_code"),
		Date:     trimmed(form, "diagnosis_date"),
		Symptoms: form["symptoms"],
	}
	id, err := requiredInt(form, "provider_id")
	in.ProviderID = id
	return in, err
}

// DecodeTracked reads the student report fields shared by suggestion,
// referral, financial and coursework updates.
func DecodeTracked(form url.Values) models.TrackedUpdate {
	return models.TrackedUpdate{
		StudentReport:     trimmed(form, "student_report"),
		StudentReportedAt: trimmed(form, "student_reported_at"),
	}
}

// DecodeFollowup reads the followup completion form. The "complete" checkbox
// means the counselor considers the matter fully resolved.
func DecodeFollowup(form url.Values) models.FollowupUpdate {
	return models.FollowupUpdate{
		Date:     trimmed(form, "date"),
		Notes:    trimmed(form, "notes"),
		Resolved: form.Get("complete") != "",
	}
}

// ParseID parses a positive path or form id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", ErrMalformed, raw)
	}
	return id, nil
}

func optionalInt(form url.Values, field string) (*int64, error) {
	s := trimmed(form, field)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", ErrMalformed, field, s)
	}
	return &n, nil
}

func requiredInt(form url.Values, field string) (int64, error) {
	s := trimmed(form, field)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformed, field, s)
	}
	return n, nil
}
