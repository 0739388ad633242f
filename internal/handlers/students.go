package handlers

import (
	"net/http"
	"strconv"

	"student-support-center/internal/forms"
	"student-support-center/internal/models"

	"github.com/rs/zerolog"
)

type StudentsHandler struct {
	Deps
}

func NewStudentsHandler(d Deps) *StudentsHandler {
	return &StudentsHandler{Deps: d}
}

// List renders the student directory with its filters.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	// Build filter from query params
	q := r.URL.Query()
	filter := models.StudentFilter{
		Search:  q.Get("search"),
		Country: q.Get("country"),
		Gender:  q.Get("gender"),
		Zip:     q.Get("zip"),
	}

	students, err := h.Repo.ListStudents(r.Context(), filter)
	if err != nil {
		fail(w, r, err)
		return
	}
	// Get distinct values for the filter dropdowns
	options, err := h.Repo.StudentFilterOptions(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	renderTemplate(w, r, "students.html", map[string]interface{}{
		"Title":    "Students",
		"Students": students,
		"Filter":   filter,
		"Options":  options,
	})
}

func (h *StudentsHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "student_form.html", map[string]interface{}{
		"Title":  "New student",
		"Action": "/students/new",
		"Form":   models.StudentInput{},
	})
}

func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	in := forms.DecodeStudent(r.PostForm)
	if err := forms.Validate(in); err != nil {
		h.rerender(w, r, "New student", "/students/new", in, err)
		return
	}

	id, err := h.Repo.CreateStudent(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Int64("student_id", id).Msg("student created")
	redirect(w, r, "/students")
}

func (h *StudentsHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	s, err := h.Repo.GetStudent(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	renderTemplate(w, r, "student_form.html", map[string]interface{}{
		"Title":  "Edit " + s.Name,
		"Action": "/students/" + strconv.FormatInt(id, 10) + "/edit",
		"Form": models.StudentInput{
			Name:           s.Name,
			DOB:            s.DOB.String,
			CountryOfBirth: s.CountryOfBirth.String,
			Gender:         s.Gender.String,
			Consent:        s.Consent,
			ZipCode:        s.ZipCode.String,
		},
	})
}

func (h *StudentsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	in := forms.DecodeStudent(r.PostForm)
	if err := forms.Validate(in); err != nil {
		h.rerender(w, r, "Edit student", "/students/"+strconv.FormatInt(id, 10)+"/edit", in, err)
		return
	}
	if err := h.Repo.UpdateStudent(r.Context(), id, in); err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/students/%d", id)
}

func (h *StudentsHandler) rerender(w http.ResponseWriter, r *http.Request, title, action string, in models.StudentInput, err error) {
	fields := fieldErrors(err)
	if fields == nil {
		fail(w, r, err)
		return
	}
	renderStatus(w, r, http.StatusBadRequest, "student_form.html", map[string]interface{}{
		"Title":  title,
		"Action": action,
		"Form":   in,
		"Errors": fields,
	})
}

func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Repo.DeleteStudent(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Int64("student_id", id).Msg("student deleted")
	redirect(w, r, "/students")
}

// Detail renders a student with visits, diagnoses and courses. The optional
// edit_diag_id query value opens that diagnosis for inline editing.
func (h *StudentsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	editDiagID, _ := strconv.ParseInt(r.URL.Query().Get("edit_diag_id"), 10, 64)

	// Get student with visits, diagnoses and courses
	ctx := r.Context()
	detail, err := h.Repo.GetStudentDetail(ctx, id, editDiagID)
	if err != nil {
		fail(w, r, err)
		return
	}
	// Load options for the diagnosis and course forms
	providers, err := h.Repo.ProviderOptions(ctx)
	if err != nil {
		fail(w, r, err)
		return
	}
	diagnosisList, err := h.Repo.DiagnosisListOptions(ctx)
	if err != nil {
		fail(w, r, err)
		return
	}
	symptoms, err := h.Repo.SymptomOptions(ctx)
	if err != nil {
		fail(w, r, err)
		return
	}
	courses, err := h.Repo.CourseOptions(ctx)
	if err != nil {
		fail(w, r, err)
		return
	}

	renderTemplate(w, r, "student_detail.html", map[string]interface{}{
		"Title":         detail.Student.Name,
		"Detail":        detail,
		"Providers":     providers,
		"DiagnosisList": diagnosisList,
		"Symptoms":      symptoms,
		"Courses":       courses,
		"EditDiagID":    editDiagID,
	})
}

// UpdateBasicInfo handles the basic-info form embedded in the detail page.
func (h *StudentsHandler) UpdateBasicInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	// Only the basic info form posts here
	if ft := r.PostForm.Get("form_type"); ft != "" && ft != "basic_info" {
		http.Error(w, "Unknown form type", http.StatusBadRequest)
		return
	}
	in := forms.DecodeStudent(r.PostForm)
	if err := forms.Validate(in); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Repo.UpdateStudent(r.Context(), id, in); err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/students/%d", id)
}

func (h *StudentsHandler) AddDiagnosis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	in, err := forms.DecodeDiagnosis(r.PostForm)
	if err == nil {
		err = forms.Validate(in)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := h.Repo.AddDiagnosis(r.Context(), id, in); err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/students/%d", id)
}

func (h *StudentsHandler) EditDiagnosis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	in, err := forms.DecodeDiagnosis(r.PostForm)
	if err == nil {
		err = forms.Validate(in)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	studentID, err := h.Repo.UpdateDiagnosis(r.Context(), id, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/students/%d", studentID)
}

func (h *StudentsHandler) DeleteDiagnosis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	studentID, err := h.Repo.DeleteDiagnosis(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/students/%d", studentID)
}

func (h *StudentsHandler) AddCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok || !parseForm(w, r) {
		return
	}
	courseID, err := forms.ParseID(r.PostForm.Get("course_id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Repo.EnrollStudent(r.Context(), id, courseID); err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/students/%d", id)
}

func (h *StudentsHandler) RemoveCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "cid")
	if !ok {
		return
	}
	if err := h.Repo.UnenrollStudent(r.Context(), id, courseID); err != nil {
		fail(w, r, err)
		return
	}
	redirect(w, r, "/students/%d", id)
}
