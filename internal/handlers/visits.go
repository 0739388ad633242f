package handlers

import (
	"net/http"

	"student-support-center/internal/forms"
	"student-support-center/internal/metrics"
	"student-support-center/internal/models"
	"student-support-center/internal/query"

	"github.com/rs/zerolog"
)

type VisitsHandler struct {
	Deps
}

func NewVisitsHandler(d Deps) *VisitsHandler {
	return &VisitsHandler{Deps: d}
}

func (h *VisitsHandler) List(w http.ResponseWriter, r *http.Request) {
	// Build filter from query params
	q := r.URL.Query()
	filter := models.VisitFilter{
		StudentIDs: q["students"],
		Mode:       q.Get("mode"),
		IssueOp:    q.Get("issue_op"),
		IssueVal:   q.Get("issue_val"),
		Critical:   q.Get("critical"),
	}

	visits, err := h.Repo.ListVisits(r.Context(), filter)
	if err != nil {
		fail(w, r, err)
		return
	}
	// Get students for the filter dropdown
	students, err := h.Repo.StudentOptions(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	renderTemplate(w, r, "visits.html", map[string]interface{}{
		"Title":     "Visits",
		"Visits":    visits,
		"Students":  students,
		"Filter":    filter,
		"Operators": query.Operators,
	})
}

// intakeFormData loads the dropdowns of the new-visit form.
func (h *VisitsHandler) intakeFormData(r *http.Request) (map[string]interface{}, error) {
	ctx := r.Context()
	students, err := h.Repo.StudentOptions(ctx)
	if err != nil {
		return nil, err
	}
	counselors, err := h.Repo.CounselorOptions(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := h.Repo.CategoryOptions(ctx)
	if err != nil {
		return nil, err
	}
	courses, err := h.Repo.CourseOptions(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"Title":        "New visit",
		"Students":     students,
		"Counselors":   counselors,
		"Categories":   categories,
		"Courses":      courses,
		"SupervisorID": h.Repo.SupervisorID(),
		"MaxRows":      h.Config.MaxFormRows,
	}, nil
}

func (h *VisitsHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	data, err := h.intakeFormData(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	renderTemplate(w, r, "visit_new.html", data)
}

// Create runs the visit intake: one visit with its counselors, issues and
// suggestions, saved as a unit.
func (h *VisitsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	logger := zerolog.Ctx(r.Context())

	// Decode the nested issue and suggestion rows
	in, err := forms.DecodeIntake(r.PostForm, h.Config.MaxFormRows)
	if err == nil {
		err = forms.Validate(in)
	}
	if err != nil {
		h.Metrics.Intake(metrics.IntakeRejected, false)
		fields := fieldErrors(err)
		if fields == nil {
			fail(w, r, err)
			return
		}
		data, loadErr := h.intakeFormData(r)
		if loadErr != nil {
			fail(w, r, loadErr)
			return
		}
		// Show the form again with field errors
		data["Errors"] = fields
		renderStatus(w, r, http.StatusBadRequest, "visit_new.html", data)
		return
	}
	logger.Debug().
		Int64("student_id", in.StudentID).
		Int("issue_slots", len(in.Issues)).
		Int("suggestion_slots", len(in.Suggestions)).
		Ints64("counselor_ids", in.CounselorIDs).
		Msg("intake decoded")

	// Save visit, counselors, issues and suggestions together
	res, err := h.Repo.CreateVisitWithIntake(r.Context(), in)
	if err != nil {
		outcome := metrics.IntakeFailed
		if statusFor(err) == http.StatusBadRequest {
			outcome = metrics.IntakeRejected
		}
		h.Metrics.Intake(outcome, false)
		fail(w, r, err)
		return
	}
	h.Metrics.Intake(metrics.IntakeSaved, res.Escalated)
	// Land on the new visit so the caller gets its id back
	redirect(w, r, "/visits/%d", res.VisitID)
}

func (h *VisitsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.Repo.GetVisitDetail(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	counselors, err := h.Repo.CounselorOptions(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	renderTemplate(w, r, "visit_detail.html", map[string]interface{}{
		"Title":         "Visit " + detail.Visit.Date,
		"Detail":        detail,
		"AllCounselors": counselors,
	})
}

func (h *VisitsHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	visit, err := h.Repo.GetVisit(ctx, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	assigned, err := h.Repo.VisitCounselorIDs(ctx, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	students, err := h.Repo.StudentOptions(ctx)
	if err != nil {
		fail(w, r, err)
		return
	}
	counselors, err := h.Repo.CounselorOptions(ctx)
	if err != nil {
		fail(w, r, err)
		return
	}
	renderTemplate(w, r, "visit_edit.html", map[string]interface{}{
		"Title":      "Edit visit",
		"Visit":      visit,
		"Assigned":   assigned,
		"Students":   students,
		"Counselors": counselors,
	})
}

func (h *VisitsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	in, err := forms.DecodeVisitUpdate(r.PostForm)
	if err == nil {
		err = forms.Validate(in)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Repo.UpdateVisit(r.Context(), id, in); err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/visits/%d", id)
}

func (h *VisitsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Repo.DeleteVisit(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Int64("visit_id", id).Msg("visit deleted")
	redirect(w, r, "/visits")
}

// ScheduleFollowup opens a followup chain for a counselor on the visit.
func (h *VisitsHandler) ScheduleFollowup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	counselorID, err := forms.ParseID(r.PostForm.Get("counselor_id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := h.Repo.ScheduleFollowup(r.Context(), id, counselorID); err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/visits/%d", id)
}

// Referrals lists every referral and followup.
func (h *VisitsHandler) Referrals(w http.ResponseWriter, r *http.Request) {
	referrals, err := h.Repo.ListReferrals(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	followups, err := h.Repo.ListFollowups(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	renderTemplate(w, r, "referrals.html", map[string]interface{}{
		"Title":     "Referrals & follow-ups",
		"Referrals": referrals,
		"Followups": followups,
	})
}
