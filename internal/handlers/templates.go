package handlers

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"student-support-center/internal/config"
	"student-support-center/internal/models"
	"student-support-center/internal/views"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	templates     *template.Template
	templatesErr  error
	templatesOnce sync.Once
	cfg           *config.Config
)

// SetConfig sets the config for debug logging
func SetConfig(c *config.Config) {
	cfg = c
}

// InitTemplates parses the embedded templates. Call it at startup so a broken
// template fails the process before it serves traffic.
func InitTemplates() error {
	initTemplates()
	return templatesErr
}

var funcMap = template.FuncMap{
	"len": func(slice interface{}) int {
		if slice == nil {
			return 0
		}
		val := reflect.ValueOf(slice)
		switch val.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
			return val.Len()
		}
		return 0
	},
	"add":            func(a, b int) int { return a + b },
	"status":         models.GetStatusDisplayInfo,
	"criticalStatus": models.CriticalStatus,
	"followupStatus": models.FollowupStatus,
	"trackedStatus":  models.TrackedStatus,
	"hasType": func(issue *models.Issue, t string) bool {
		return issue != nil && issue.HasType(t)
	},
	"containsID": func(ids []int64, id int64) bool {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	},
	"containsStr": func(values []string, s string) bool {
		for _, v := range values {
			if v == s {
				return true
			}
		}
		return false
	},
	"nullStr": func(v interface{}) string {
		switch x := v.(type) {
		case driver.Valuer:
			raw, _ := x.Value()
			if raw == nil {
				return ""
			}
			return fmt.Sprint(raw)
		default:
			return fmt.Sprint(v)
		}
	},
	"join": strings.Join,
	"seq": func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	},
	"fieldError": func(errs map[string]string, field string) string {
		return errs[field]
	},
}

func initTemplates() {
	templatesOnce.Do(func() {
		entries, err := fs.ReadDir(views.TemplatesFS, ".")
		if err != nil {
			templatesErr = fmt.Errorf("failed to read template directory: %w", err)
			return
		}
		for _, entry := range entries {
			if cfg != nil && !entry.IsDir() {
				cfg.Debugf("template file: %s", entry.Name())
			}
		}

		templates, templatesErr = template.New("").Funcs(funcMap).ParseFS(views.TemplatesFS, "*.html")
		if templatesErr != nil {
			templatesErr = fmt.Errorf("failed to parse templates: %w", templatesErr)
			return
		}
		for name, content := range contentTemplateMap {
			if templates.Lookup(content) == nil {
				templatesErr = fmt.Errorf("content template %q for %s not defined", content, name)
				return
			}
		}
	})
}

// contentTemplateMap maps a page to the content block the layout renders.
var contentTemplateMap = map[string]string{
	"home.html":             "home_content",
	"students.html":         "students_content",
	"student_form.html":     "student_form_content",
	"student_detail.html":   "student_detail_content",
	"counselors.html":       "counselors_content",
	"counselor_form.html":   "counselor_form_content",
	"counselor_detail.html": "counselor_detail_content",
	"visits.html":           "visits_content",
	"visit_new.html":        "visit_new_content",
	"visit_detail.html":     "visit_detail_content",
	"visit_edit.html":       "visit_edit_content",
	"issue_edit.html":       "issue_edit_content",
	"referrals.html":        "referrals_content",
	"reports.html":          "reports_content",
	"report_detail.html":    "report_detail_content",
	"sql_console.html":      "sql_console_content",
}

func renderTemplate(w http.ResponseWriter, r *http.Request, name string, data map[string]interface{}) {
	renderStatus(w, r, http.StatusOK, name, data)
}

// renderStatus executes the layout with the page's content block into a
// buffer first, so a template error still produces a clean 500.
func renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]interface{}) {
	logger := zerolog.Ctx(r.Context())
	if err := InitTemplates(); err != nil {
		logger.Error().Err(err).Msg("templates not initialized")
		http.Error(w, "Templates not initialized", http.StatusInternalServerError)
		return
	}

	contentTemplateName, ok := contentTemplateMap[name]
	if !ok {
		logger.Error().Str("template", name).Msg("no content template mapping")
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]interface{}{}
	}
	data["ContentTemplate"] = contentTemplateName
	if _, ok := data["Title"]; !ok {
		data["Title"] = "Student Support Center"
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.Error().Err(err).Str("template", name).Msg("template execute error")
		http.Error(w, "Template execute error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debug().Err(err).Msg("client went away while rendering")
	}
}
