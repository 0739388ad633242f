package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Home renders the dashboard. A database that cannot be counted shows the
// student count as unknown rather than failing the page.
func Home(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, ok := d.Repo.StudentCount(r.Context())
		renderTemplate(w, r, "home.html", map[string]interface{}{
			"Title":        "Student Support Center",
			"StudentCount": count,
			"CountKnown":   ok,
		})
	}
}

// Healthz pings the database.
func Healthz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Repo.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
			jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Register wires every route onto mux.
func Register(mux *http.ServeMux, d Deps) {
	students := NewStudentsHandler(d)
	counselors := NewCounselorsHandler(d)
	visits := NewVisitsHandler(d)
	issues := NewIssuesHandler(d)
	reportsHandler := NewReportsHandler(d)
	api := NewAPIHandler(d)

	mux.HandleFunc("GET /{$}", Home(d))
	mux.HandleFunc("GET /healthz", Healthz(d))
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	mux.HandleFunc("GET /students", students.List)
	mux.HandleFunc("GET /students/new", students.NewForm)
	mux.HandleFunc("POST /students/new", students.Create)
	mux.HandleFunc("GET /students/{id}", students.Detail)
	mux.HandleFunc("POST /students/{id}", students.UpdateBasicInfo)
	mux.HandleFunc("GET /students/{id}/edit", students.EditForm)
	mux.HandleFunc("POST /students/{id}/edit", students.Edit)
	mux.HandleFunc("POST /students/{id}/delete", students.Delete)
	mux.HandleFunc("POST /students/{id}/diagnosis/add", students.AddDiagnosis)
	mux.HandleFunc("POST /students/{id}/course/add", students.AddCourse)
	mux.HandleFunc("GET /students/{id}/course/{cid}/remove", students.RemoveCourse)
	mux.HandleFunc("POST /students/{id}/course/{cid}/remove", students.RemoveCourse)
	mux.HandleFunc("POST /diagnosis/{id}/edit", students.EditDiagnosis)
	mux.HandleFunc("GET /diagnosis/{id}/delete", students.DeleteDiagnosis)
	mux.HandleFunc("POST /diagnosis/{id}/delete", students.DeleteDiagnosis)

	mux.HandleFunc("GET /counselors", counselors.List)
	mux.HandleFunc("GET /counselors/new", counselors.NewForm)
	mux.HandleFunc("POST /counselors/new", counselors.Create)
	mux.HandleFunc("GET /counselor/{id}", counselors.Detail)

	mux.HandleFunc("GET /visits", visits.List)
	mux.HandleFunc("GET /visits/new", visits.NewForm)
	mux.HandleFunc("POST /visits/new", visits.Create)
	mux.HandleFunc("GET /visits/{id}", visits.Detail)
	mux.HandleFunc("GET /visits/{id}/edit", visits.EditForm)
	mux.HandleFunc("POST /visits/{id}/edit", visits.Edit)
	mux.HandleFunc("POST /visits/{id}/delete", visits.Delete)
	mux.HandleFunc("POST /visits/{id}/followups", visits.ScheduleFollowup)
	mux.HandleFunc("GET /referrals", visits.Referrals)

	mux.HandleFunc("GET /issues/{id}/edit", issues.EditForm)
	mux.HandleFunc("POST /issues/{id}/edit", issues.Edit)
	mux.HandleFunc("POST /update_referral/{id}", issues.UpdateReferral)
	mux.HandleFunc("POST /update_financial/{id}", issues.UpdateFinancial)
	mux.HandleFunc("POST /update_coursework/{id}", issues.UpdateCoursework)
	mux.HandleFunc("POST /update_followup/{id}", issues.UpdateFollowup)
	mux.HandleFunc("POST /suggestions/{id}/update", issues.UpdateSuggestion)

	mux.HandleFunc("GET /reports", reportsHandler.Index)
	mux.HandleFunc("GET /reports/{id}", reportsHandler.Detail)
	mux.HandleFunc("GET /sql", reportsHandler.ConsoleForm)
	mux.HandleFunc("POST /sql", reportsHandler.Console)

	mux.HandleFunc("GET /api/reports/{id}", api.Report)
	mux.HandleFunc("GET /api/visits/{id}", api.Visit)

	if d.Config != nil {
		d.Config.Debugf("routes registered")
	}
}
