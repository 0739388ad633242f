package handlers

import (
	"net/http"
	"strconv"

	"student-support-center/internal/reports"
)

type ReportsHandler struct {
	Deps
}

func NewReportsHandler(d Deps) *ReportsHandler {
	return &ReportsHandler{Deps: d}
}

func (h *ReportsHandler) Index(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "reports.html", map[string]interface{}{
		"Title":   "Reports",
		"Reports": reports.Catalog(),
	})
}

// run executes the report named by the path. Unknown and failed reports come
// back as a result carrying an error message, never as an HTTP error.
func (h *ReportsHandler) run(w http.ResponseWriter, r *http.Request) (*reports.Result, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	res := h.Reports.Run(r.Context(), id, r.URL.Query().Get("keyword"))
	if res.Error != "" {
		h.Metrics.ReportError(strconv.Itoa(id))
	}
	return res, true
}

func (h *ReportsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	res, ok := h.run(w, r)
	if !ok {
		return
	}
	title := res.Title
	if title == "" {
		title = "Report"
	}
	def, _ := reports.Lookup(res.ID)
	renderTemplate(w, r, "report_detail.html", map[string]interface{}{
		"Title":      title,
		"Result":     res,
		"HasKeyword": def.Keyword,
	})
}

func (h *ReportsHandler) ConsoleForm(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, r, "sql_console.html", map[string]interface{}{
		"Title":  "SQL console",
		"Query":  "",
		"Result": &reports.Result{},
	})
}

func (h *ReportsHandler) Console(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	stmt := r.PostForm.Get("query")
	res := h.Reports.Console(r.Context(), stmt)
	if res.Error != "" {
		h.Metrics.ReportError("console")
	}
	renderTemplate(w, r, "sql_console.html", map[string]interface{}{
		"Title":  "SQL console",
		"Query":  stmt,
		"Result": res,
	})
}
