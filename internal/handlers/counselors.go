package handlers

import (
	"net/http"

	"student-support-center/internal/forms"
	"student-support-center/internal/models"
	"student-support-center/internal/query"

	"github.com/rs/zerolog"
)

type CounselorsHandler struct {
	Deps
}

func NewCounselorsHandler(d Deps) *CounselorsHandler {
	return &CounselorsHandler{Deps: d}
}

// List renders the counselor directory. Comparison operators default to >=
// and anything outside the whitelist drops the filter.
func (h *CounselorsHandler) List(w http.ResponseWriter, r *http.Request) {
	// Build filter from query params
	q := r.URL.Query()
	filter := models.CounselorFilter{
		Type:           q.Get("type"),
		Education:      q.Get("education"),
		ExpOperator:    withDefault(q.Get("exp_operator"), ">="),
		ExpValue:       q.Get("exp_value"),
		SalaryOperator: withDefault(q.Get("salary_operator"), ">="),
		SalaryValue:    q.Get("salary_value"),
	}

	counselors, err := h.Repo.ListCounselors(r.Context(), filter)
	if err != nil {
		fail(w, r, err)
		return
	}
	educations, err := h.Repo.EducationOptions(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	renderTemplate(w, r, "counselors.html", map[string]interface{}{
		"Title":      "Counselors",
		"Counselors": counselors,
		"Filter":     filter,
		"Educations": educations,
		"Operators":  query.Operators,
	})
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (h *CounselorsHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "counselor_form.html", map[string]interface{}{
		"Title": "New counselor",
		"Form":  formCounselor{PaidVolunteer: models.EmploymentVolunteer},
	})
}

// formCounselor is the counselor form as typed, for re-rendering.
type formCounselor struct {
	Name          string
	PaidVolunteer string
	Education     string
	Experience    string
	Salary        string
}

func (h *CounselorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	// Keep the raw values so the form can be shown again on error
	typed := formCounselor{
		Name:          r.PostForm.Get("name"),
		PaidVolunteer: r.PostForm.Get("paid_volunteer"),
		Education:     r.PostForm.Get("education"),
		Experience:    r.PostForm.Get("experience"),
		Salary:        r.PostForm.Get("salary"),
	}

	in, err := forms.DecodeCounselor(r.PostForm)
	if err == nil {
		err = forms.Validate(in)
	}
	if err != nil {
		fields := fieldErrors(err)
		if fields == nil {
			fields = map[string]string{"Form": err.Error()}
		}
		renderStatus(w, r, http.StatusBadRequest, "counselor_form.html", map[string]interface{}{
			"Title":  "New counselor",
			"Form":   typed,
			"Errors": fields,
		})
		return
	}

	id, err := h.Repo.CreateCounselor(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Int64("counselor_id", id).Msg("counselor created")
	redirect(w, r, "/counselors")
}

// Detail renders a counselor's caseload: students, visits, followups and the
// referral, financial and coursework items linked through their visits.
func (h *CounselorsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.Repo.GetCounselorDetail(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	renderTemplate(w, r, "counselor_detail.html", map[string]interface{}{
		"Title":  detail.Counselor.Name,
		"Detail": detail,
	})
}
