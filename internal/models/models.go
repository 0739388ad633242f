package models

import (
	"database/sql"
)

// Issue types are a fixed enumeration stored in Issue_Type.
const (
	IssueTypeReferral   = "Referral"
	IssueTypeCoursework = "Coursework"
	IssueTypeFinancial  = "Financial"
)

// Counselor employment types.
const (
	EmploymentPaid      = "paid"
	EmploymentVolunteer = "volunteer"
)

type Student struct {
	ID             int64
	Name           string
	DOB            sql.NullString
	CountryOfBirth sql.NullString
	Gender         sql.NullString
	Consent        bool
	ZipCode        sql.NullString
}

type Counselor struct {
	ID            int64
	Name          string
	PaidVolunteer string
	Education     sql.NullString
	Experience    sql.NullInt64
	Salary        sql.NullInt64
}

type Visit struct {
	ID          int64
	StudentID   int64
	StudentName string
	Date        string
	Mode        string
}

type VisitListItem struct {
	Visit
	IssueCount  int
	HasCritical bool
}

type Issue struct {
	ID          int64
	VisitID     int64
	Description string
	Critical    bool
	Types       []string
	Categories  []string
	CategoryIDs []int64
	Referrals   []Referral
}

// HasType reports whether the issue carries the given Issue_Type.
func (i *Issue) HasType(t string) bool {
	for _, it := range i.Types {
		if it == t {
			return true
		}
	}
	return false
}

// Tracked is the follow-up pair shared by suggestions, referrals, financial
// and coursework records.
type Tracked struct {
	StudentReport     sql.NullString
	StudentReportedAt sql.NullString
}

// Outstanding reports whether the student has not reported back yet.
func (t Tracked) Outstanding() bool {
	return !t.StudentReportedAt.Valid || t.StudentReportedAt.String == ""
}

type Referral struct {
	ID          int64
	IssueID     int64
	Details     sql.NullString
	CreatedAt   string
	StudentID   int64
	StudentName string
	Tracked
}

type Financial struct {
	ID          int64
	IssueID     int64
	JobNotes    sql.NullString
	CreatedAt   string
	StudentID   int64
	StudentName string
	Tracked
}

type Coursework struct {
	ID          int64
	IssueID     int64
	CourseID    sql.NullInt64
	CourseName  sql.NullString
	CreatedAt   string
	StudentID   int64
	StudentName string
	Tracked
}

type Suggestion struct {
	ID            int64
	VisitID       int64
	CounselorID   int64
	CounselorName string
	Details       string
	Tracked
}

type Followup struct {
	ID            int64
	VisitID       int64
	VisitDate     string
	CounselorID   int64
	CounselorName string
	StudentID     int64
	StudentName   string
	Date          sql.NullString
	Notes         sql.NullString
	Complete      sql.NullString
	Open          bool
}

type Diagnosis struct {
	ID           int64
	StudentID    int64
	ProviderID   int64
	ProviderName string
	Code         string
	Name         string
	Date         sql.NullString
	Symptoms     []string
	SymptomCodes []string
	Editable     bool
}

type Course struct {
	ID   int64
	Name string
}

// Option is an id/label pair for dropdowns.
type Option struct {
	ID   int64
	Name string
}

// CodeOption is a code/label pair for lookups keyed by text codes.
type CodeOption struct {
	Code string
	Name string
}

// VisitDetail is a visit with everything recorded against it.
type VisitDetail struct {
	Visit       Visit
	Counselors  []Option
	Issues      []*Issue
	Suggestions []Suggestion
	Followups   []Followup
}

// StudentVisit groups a student's visit with its issues and suggestions.
type StudentVisit struct {
	Visit       Visit
	Issues      []*Issue
	Suggestions []Suggestion
}

type StudentDetail struct {
	Student   *Student
	Visits    []StudentVisit
	Diagnoses []Diagnosis
	Courses   []Course
}

// CounselorStudent is a student seen by a counselor with the visit count.
type CounselorStudent struct {
	StudentID  int64
	Name       string
	VisitCount int
}

type CounselorDetail struct {
	Counselor          *Counselor
	Students           []CounselorStudent
	Visits             []Visit
	OpenFollowups      []Followup
	CompletedFollowups []Followup
	Referrals          []Referral
	Financial          []Financial
	Coursework         []Coursework
}
