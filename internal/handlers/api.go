package handlers

import (
	"encoding/json"
	"net/http"

	"student-support-center/internal/forms"
	"student-support-center/internal/models"
	"student-support-center/internal/reports"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type APIHandler struct {
	Deps
	reports *ReportsHandler
}

func NewAPIHandler(d Deps) *APIHandler {
	return &APIHandler{Deps: d, reports: NewReportsHandler(d)}
}

// JSON response helpers
func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// GET /api/reports/{id} - the report as headers and rows. An unknown id is a
// 404 with the same message the page shows.
func (h *APIHandler) Report(w http.ResponseWriter, r *http.Request) {
	res, ok := h.reports.run(w, r)
	if !ok {
		return
	}
	status := http.StatusOK
	if _, known := reports.Lookup(res.ID); !known {
		status = http.StatusNotFound
	}
	jsonResponse(w, status, res)
}

type visitJSON struct {
	ID          int64            `json:"id"`
	StudentID   int64            `json:"student_id"`
	StudentName string           `json:"student_name"`
	Date        string           `json:"date"`
	Mode        string           `json:"mode"`
	Critical    bool             `json:"critical"`
	Counselors  []models.Option  `json:"counselors"`
	Issues      []issueJSON      `json:"issues"`
	Suggestions []suggestionJSON `json:"suggestions"`
	Followups   []followupJSON   `json:"followups"`
}

type issueJSON struct {
	ID          int64    `json:"id"`
	Description string   `json:"description"`
	Critical    bool     `json:"critical"`
	Types       []string `json:"types"`
	Categories  []string `json:"categories"`
}

type suggestionJSON struct {
	ID                int64  `json:"id"`
	CounselorID       int64  `json:"counselor_id"`
	CounselorName     string `json:"counselor_name"`
	Details           string `json:"details"`
	StudentReport     string `json:"student_report,omitempty"`
	StudentReportedAt string `json:"student_reported_at,omitempty"`
}

type followupJSON struct {
	ID          int64  `json:"id"`
	CounselorID int64  `json:"counselor_id"`
	Date        string `json:"date,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Open        bool   `json:"open"`
}

// GET /api/visits/{id} - a visit with its issues, suggestions and followups.
func (h *APIHandler) Visit(w http.ResponseWriter, r *http.Request) {
	id, err := forms.ParseID(r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusNotFound, "Visit not found")
		return
	}
	detail, err := h.Repo.GetVisitDetail(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			zerolog.Ctx(r.Context()).Error().Err(err).Int64("visit_id", id).Msg("failed to load visit")
			jsonError(w, status, "Internal server error")
			return
		}
		jsonError(w, status, "Visit not found")
		return
	}

	out := visitJSON{
		ID:          detail.Visit.ID,
		StudentID:   detail.Visit.StudentID,
		StudentName: detail.Visit.StudentName,
		Date:        detail.Visit.Date,
		Mode:        detail.Visit.Mode,
		Counselors:  detail.Counselors,
		Issues:      []issueJSON{},
		Suggestions: []suggestionJSON{},
		Followups:   []followupJSON{},
	}
	if out.Counselors == nil {
		out.Counselors = []models.Option{}
	}
	for _, i := range detail.Issues {
		out.Critical = out.Critical || i.Critical
		out.Issues = append(out.Issues, issueJSON{
			ID:          i.ID,
			Description: i.Description,
			Critical:    i.Critical,
			Types:       nonNil(i.Types),
			Categories:  nonNil(i.Categories),
		})
	}
	for _, s := range detail.Suggestions {
		out.Suggestions = append(out.Suggestions, suggestionJSON{
			ID:                s.ID,
			CounselorID:       s.CounselorID,
			CounselorName:     s.CounselorName,
			Details:           s.Details,
			StudentReport:     s.StudentReport.String,
			StudentReportedAt: s.StudentReportedAt.String,
		})
	}
	for _, f := range detail.Followups {
		out.Followups = append(out.Followups, followupJSON{
			ID:          f.ID,
			CounselorID: f.CounselorID,
			Date:        f.Date.String,
			Notes:       f.Notes.String,
			Open:        f.Open,
		})
	}
	jsonResponse(w, http.StatusOK, out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
