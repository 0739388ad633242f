package handlers

import (
	"net/http"
	"strings"

	"student-support-center/internal/forms"
)

type IssuesHandler struct {
	Deps
}

func NewIssuesHandler(d Deps) *IssuesHandler {
	return &IssuesHandler{Deps: d}
}

func (h *IssuesHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	edit, err := h.Repo.GetIssue(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	categories, err := h.Repo.CategoryOptions(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	courses, err := h.Repo.CourseOptions(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	renderTemplate(w, r, "issue_edit.html", map[string]interface{}{
		"Title":      "Edit issue",
		"Edit":       edit,
		"Categories": categories,
		"Courses":    courses,
	})
}

func (h *IssuesHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	in := forms.DecodeIssue(r.PostForm)
	if strings.TrimSpace(in.Description) == "" {
		http.Error(w, "Description is required", http.StatusBadRequest)
		return
	}
	visitID, err := h.Repo.UpdateIssue(r.Context(), id, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/visits/%d", visitID)
}

// The handlers below record a student's report-back on an item and return
// to the owning counselor's page.

func (h *IssuesHandler) UpdateReferral(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	u := forms.DecodeTracked(r.PostForm)
	if err := forms.Validate(u); err != nil {
		fail(w, r, err)
		return
	}
	owner, err := h.Repo.UpdateReferral(r.Context(), id, r.PostForm.Get("details"), u)
	if err != nil {
		fail(w, r, err)
		return
	}
	redirectOwner(w, r, owner)
}

func (h *IssuesHandler) UpdateFinancial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	u := forms.DecodeTracked(r.PostForm)
	if err := forms.Validate(u); err != nil {
		fail(w, r, err)
		return
	}
	owner, err := h.Repo.UpdateFinancial(r.Context(), id, r.PostForm.Get("job_notes"), u)
	if err != nil {
		fail(w, r, err)
		return
	}
	redirectOwner(w, r, owner)
}

func (h *IssuesHandler) UpdateCoursework(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	u := forms.DecodeTracked(r.PostForm)
	if err := forms.Validate(u); err != nil {
		fail(w, r, err)
		return
	}
	owner, err := h.Repo.UpdateCoursework(r.Context(), id, u)
	if err != nil {
		fail(w, r, err)
		return
	}
	redirectOwner(w, r, owner)
}

// UpdateSuggestion returns to the suggestion's visit rather than a counselor.
func (h *IssuesHandler) UpdateSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	u := forms.DecodeTracked(r.PostForm)
	if err := forms.Validate(u); err != nil {
		fail(w, r, err)
		return
	}
	visitID, _, err := h.Repo.UpdateSuggestion(r.Context(), id, u)
	if err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/visits/%d", visitID)
}

// UpdateFollowup completes a followup. Leaving "complete" unchecked schedules
// the next one in the chain.
func (h *IssuesHandler) UpdateFollowup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	u := forms.DecodeFollowup(r.PostForm)
	if err := forms.Validate(u); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.Repo.CompleteFollowup(r.Context(), id, u)
	if err != nil {
		fail(w, r, err)
		return
	}
	redirectOwner(w, r, res.Owner)
}
