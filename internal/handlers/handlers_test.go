package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"student-support-center/internal/config"
	"student-support-center/internal/db"
	"student-support-center/internal/db/dbtest"
	"student-support-center/internal/handlers"
	"student-support-center/internal/metrics"
	"student-support-center/internal/middleware"
	"student-support-center/internal/models"
	"student-support-center/internal/reports"
)

type testServer struct {
	handler http.Handler
	repo    *models.Repository
	db      *db.DB
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	if err := handlers.InitTemplates(); err != nil {
		t.Fatalf("InitTemplates: %v", err)
	}
	d := dbtest.Open(t)
	dbtest.Exec(t, d,
		`INSERT INTO Counselor (counselor_id, name, paid_volunteer, education, experience) VALUES
			(1, 'Grace', 'paid', 'MSW', 10),
			(2, 'Linus', 'volunteer', 'BA', 2),
			(113, 'Head Counselor', 'paid', 'PhD', 25)`,
		`INSERT INTO Counselor_Salary (counselor_id, salary) VALUES (1, 52000), (113, 90000)`,
		`INSERT INTO Category (category_id, name) VALUES (1, 'Anxiety'), (2, 'Academic')`,
		`INSERT INTO Course (course_id, course_name) VALUES (7, 'Calculus I')`,
		`INSERT INTO Provider (provider_id, name) VALUES (1, 'Campus Health')`,
		`INSERT INTO Diagnosis_List (diagnosis_code, diagnosis) VALUES ('F41', 'Anxiety disorder')`,
		`INSERT INTO Symptom_List (symptom_code, symptom) VALUES ('S1', 'Insomnia')`,
	)

	cfg := &config.Config{SupervisorCounselorID: 113, MaxFormRows: 5}
	repo := models.NewRepository(d, cfg.SupervisorCounselorID)
	m := metrics.New()
	mux := http.NewServeMux()
	handlers.Register(mux, handlers.Deps{
		Config:  cfg,
		Repo:    repo,
		Reports: reports.New(d),
		Metrics: m,
	})
	return &testServer{handler: middleware.Chain(mux, m), repo: repo, db: d}
}

func (s *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (s *testServer) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) student(t *testing.T, name string) int64 {
	t.Helper()
	id, err := s.repo.CreateStudent(context.Background(), models.StudentInput{Name: name, Consent: true})
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	return id
}

func (s *testServer) intake(t *testing.T, in models.VisitIntake) *models.IntakeResult {
	t.Helper()
	res, err := s.repo.CreateVisitWithIntake(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateVisitWithIntake: %v", err)
	}
	return res
}

func TestIntakeFormEscalatesCriticalIssue(t *testing.T) {
	s := newServer(t)
	studentID := s.student(t, "Ada")

	rec := s.post(t, "/visits/new", url.Values{
		"student_id":                   {fmt.Sprint(studentID)},
		"date":                         {"2024-03-01"},
		"mode":                         {"In person"},
		"counselor_ids[]":              {"1"},
		"issues[0][description]":       {"panic attack"},
		"issues[0][critical]":          {"on"},
		"issues[0][categories][]":      {"1", "99"},
		"issues[1][description]":       {""},
		"suggestions[0][counselor_id]": {"2"},
		"suggestions[0][details]":      {"breathing exercises"},
	})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body %s", rec.Code, rec.Body.String())
	}
	visitID := dbtest.Count(t, s.db, "SELECT MAX(visit_id) FROM Visit")
	if want := fmt.Sprintf("/visits/%d", visitID); rec.Header().Get("Location") != want {
		t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), want)
	}
	if rec := s.get(t, rec.Header().Get("Location")); rec.Code != http.StatusOK {
		t.Errorf("GET new visit status = %d, want 200", rec.Code)
	}
	if n := dbtest.Count(t, s.db, "SELECT COUNT(*) FROM Visit_Counselor WHERE counselor_id = 113"); n != 1 {
		t.Errorf("supervisor assignments = %d, want 1", n)
	}
	if n := dbtest.Count(t, s.db, "SELECT COUNT(*) FROM Issue"); n != 1 {
		t.Errorf("issues = %d, want 1", n)
	}
	if n := dbtest.Count(t, s.db, "SELECT COUNT(*) FROM Issue_Category"); n != 1 {
		t.Errorf("issue categories = %d, want 1", n)
	}
	if n := dbtest.Count(t, s.db, "SELECT COUNT(*) FROM Suggestion"); n != 1 {
		t.Errorf("suggestions = %d, want 1", n)
	}
}

func TestIntakeFormRejects(t *testing.T) {
	tests := []struct {
		name     string
		form     url.Values
		wantBody string
	}{
		{
			name: "row index at the bound",
			form: url.Values{
				"student_id":             {"1"},
				"date":                   {"2024-03-01"},
				"mode":                   {"Phone"},
				"issues[5][description]": {"one too many"},
			},
			wantBody: "too many form rows",
		},
		{
			name: "missing date re-renders the form",
			form: url.Values{
				"student_id": {"1"},
				"mode":       {"Phone"},
			},
			wantBody: "is required",
		},
		{
			name: "unknown student",
			form: url.Values{
				"student_id": {"4040"},
				"date":       {"2024-03-01"},
				"mode":       {"Phone"},
			},
			wantBody: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			s.student(t, "Ada")

			rec := s.post(t, "/visits/new", tt.form)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
			if n := dbtest.Count(t, s.db, "SELECT COUNT(*) FROM Visit"); n != 0 {
				t.Errorf("visits = %d, want 0", n)
			}
		})
	}
}

func TestIntakeWithoutSupervisorIsConflict(t *testing.T) {
	s := newServer(t)
	studentID := s.student(t, "Ada")
	dbtest.Exec(t, s.db,
		"DELETE FROM Counselor_Salary WHERE counselor_id = 113",
		"DELETE FROM Counselor WHERE counselor_id = 113",
	)

	rec := s.post(t, "/visits/new", url.Values{
		"student_id":             {fmt.Sprint(studentID)},
		"date":                   {"2024-03-01"},
		"mode":                   {"Phone"},
		"issues[0][description]": {"panic attack"},
		"issues[0][critical]":    {"on"},
	})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "supervising counselor does not exist") {
		t.Errorf("body = %q, want the missing supervisor message", rec.Body.String())
	}
	if n := dbtest.Count(t, s.db, "SELECT COUNT(*) FROM Visit"); n != 0 {
		t.Errorf("visits = %d, want 0", n)
	}
}

func TestMissingRecordsAre404(t *testing.T) {
	s := newServer(t)
	for _, path := range []string{
		"/visits/999",
		"/visits/abc",
		"/students/999",
		"/counselor/999",
		"/issues/999/edit",
		"/api/visits/999",
	} {
		if rec := s.get(t, path); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
	if rec := s.post(t, "/update_followup/999", url.Values{"complete": {"1"}}); rec.Code != http.StatusNotFound {
		t.Errorf("POST /update_followup/999 = %d, want 404", rec.Code)
	}
}

func TestReportBackRedirects(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	studentID := s.student(t, "Ada")

	assigned := s.intake(t, models.VisitIntake{
		StudentID: studentID, Date: "2024-03-01", Mode: "Phone",
		CounselorIDs: []int64{2, 1},
		Issues:       []models.IssueInput{{Description: "rent", Referral: true, ReferralDetails: "legal aid"}},
	})
	unassigned := s.intake(t, models.VisitIntake{
		StudentID: studentID, Date: "2024-03-02", Mode: "Phone",
		Issues: []models.IssueInput{{Description: "job", Financial: true}},
	})
	followupID, err := s.repo.ScheduleFollowup(ctx, assigned.VisitID, 2)
	if err != nil {
		t.Fatalf("ScheduleFollowup: %v", err)
	}

	var referralID, financialID int64
	if err := s.db.QueryRowContext(ctx, "SELECT referral_id FROM Referral WHERE issue_id = $1", assigned.IssueIDs[0]).Scan(&referralID); err != nil {
		t.Fatalf("referral id: %v", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT financial_id FROM Financial WHERE issue_id = $1", unassigned.IssueIDs[0]).Scan(&financialID); err != nil {
		t.Fatalf("financial id: %v", err)
	}

	tests := []struct {
		name string
		path string
		form url.Values
		want string
	}{
		{"referral goes to lowest assigned counselor", fmt.Sprintf("/update_referral/%d", referralID),
			url.Values{"student_report": {"called them"}, "student_reported_at": {"2024-03-05"}}, "/counselor/1"},
		{"unassigned visit falls back to list", fmt.Sprintf("/update_financial/%d", financialID),
			url.Values{"student_report": {"applied"}}, "/counselors"},
		{"followup goes to its counselor", fmt.Sprintf("/update_followup/%d", followupID),
			url.Values{"date": {"2024-03-09"}, "notes": {"better"}}, "/counselor/2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.post(t, tt.path, tt.form)
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want 303; body %s", rec.Code, rec.Body.String())
			}
			if loc := rec.Header().Get("Location"); loc != tt.want {
				t.Errorf("Location = %q, want %q", loc, tt.want)
			}
		})
	}

	// The unresolved followup spawned the next one in the chain.
	if n := dbtest.Count(t, s.db, "SELECT COUNT(*) FROM Followup WHERE visit_id = $1", assigned.VisitID); n != 2 {
		t.Errorf("followups = %d, want 2", n)
	}
}

func TestReportAPI(t *testing.T) {
	s := newServer(t)
	studentID := s.student(t, "Ada")
	s.intake(t, models.VisitIntake{
		StudentID: studentID, Date: "2024-03-01", Mode: "Phone",
		Issues: []models.IssueInput{{Description: "a"}, {Description: "b"}},
	})

	rec := s.get(t, "/api/reports/14")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res reports.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Error != "" || len(res.Rows) != 1 {
		t.Errorf("report 14 = %+v, want one row", res)
	}

	rec = s.get(t, "/api/reports/99")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown report status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unknown report id: 99") {
		t.Errorf("unknown report body = %s", rec.Body.String())
	}
}

func TestConsoleRejectsWrites(t *testing.T) {
	s := newServer(t)
	s.student(t, "Ada")

	rec := s.post(t, "/sql", url.Values{"query": {"DELETE FROM Student"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "only SELECT") {
		t.Error("expected the read-only rejection message")
	}
	if n := dbtest.Count(t, s.db, "SELECT COUNT(*) FROM Student"); n != 1 {
		t.Errorf("students = %d, want 1", n)
	}

	rec = s.post(t, "/sql", url.Values{"query": {"SELECT name FROM Student"}})
	if !strings.Contains(rec.Body.String(), "Ada") {
		t.Error("expected the SELECT result in the page")
	}
}

func TestStudentFormValidation(t *testing.T) {
	s := newServer(t)

	rec := s.post(t, "/students/new", url.Values{"name": {"  "}, "dob": {"05/06/2004"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"is required", "must be a date"} {
		if !strings.Contains(body, want) {
			t.Errorf("body does not contain %q", want)
		}
	}

	rec = s.post(t, "/students/new", url.Values{"name": {"Ada"}, "consent": {"on"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("valid create status = %d, want 303", rec.Code)
	}
}

func TestPagesRender(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	studentID := s.student(t, "Ada")
	res := s.intake(t, models.VisitIntake{
		StudentID: studentID, Date: "2024-03-01", Mode: "Phone",
		CounselorIDs: []int64{1},
		Issues: []models.IssueInput{{
			Description: "overwhelmed", Critical: true, CategoryIDs: []string{"1"},
			Referral: true, Coursework: true, CourseID: "7", Financial: true,
		}},
		Suggestions: []models.SuggestionInput{{CounselorID: "1", Details: "weekly check-in"}},
	})
	if _, err := s.repo.ScheduleFollowup(ctx, res.VisitID, 1); err != nil {
		t.Fatalf("ScheduleFollowup: %v", err)
	}
	if _, err := s.repo.AddDiagnosis(ctx, studentID, models.DiagnosisInput{ProviderID: 1, Code: "F41", Symptoms: []string{"S1"}}); err != nil {
		t.Fatalf("AddDiagnosis: %v", err)
	}

	pages := []string{
		"/",
		"/students",
		"/students?country=Kenya",
		"/students/new",
		fmt.Sprintf("/students/%d", studentID),
		fmt.Sprintf("/students/%d?edit_diag_id=1", studentID),
		fmt.Sprintf("/students/%d/edit", studentID),
		"/counselors",
		"/counselors?exp_operator=%3E&exp_value=5",
		"/counselors/new",
		"/counselor/1",
		"/visits",
		"/visits?critical=1&issue_op=%3E%3D&issue_val=1",
		"/visits/new",
		fmt.Sprintf("/visits/%d", res.VisitID),
		fmt.Sprintf("/visits/%d/edit", res.VisitID),
		fmt.Sprintf("/issues/%d/edit", res.IssueIDs[0]),
		"/referrals",
		"/reports",
		"/reports/1",
		"/reports/15?keyword=over",
		"/reports/99",
		"/sql",
		"/healthz",
		fmt.Sprintf("/api/visits/%d", res.VisitID),
	}
	for _, path := range pages {
		rec := s.get(t, path)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200; body %s", path, rec.Code, rec.Body.String())
		}
	}
}
