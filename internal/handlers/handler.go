// Package handlers serves the support center's pages and JSON API.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"student-support-center/internal/config"
	"student-support-center/internal/forms"
	"student-support-center/internal/metrics"
	"student-support-center/internal/models"
	"student-support-center/internal/reports"

	"github.com/rs/zerolog"
)

// maxFormBytes bounds a submitted form body.
const maxFormBytes = 1 << 20

// Deps are the collaborators every handler needs.
type Deps struct {
	Config  *config.Config
	Repo    *models.Repository
	Reports *reports.Engine
	Metrics *metrics.Metrics
}

// statusFor maps a repository or decoding error to an HTTP status.
func statusFor(err error) int {
	var ve *models.ValidationError
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ve),
		errors.Is(err, models.ErrInvalidReference),
		errors.Is(err, forms.ErrMalformed),
		errors.Is(err, forms.ErrTooManyRows):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSupervisorMissing):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes a plain error response for err. Server errors are logged with
// the request's logger and their detail is not sent to the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := zerolog.Ctx(r.Context())
	switch status {
	case http.StatusInternalServerError:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "Internal server error", status)
	case http.StatusNotFound:
		var nf *models.NotFoundError
		msg := "Not found"
		if errors.As(err, &nf) {
			msg = fmt.Sprintf("%s not found", capitalize(nf.Entity))
		}
		http.Error(w, msg, status)
	default:
		logger.Info().Err(err).Str("path", r.URL.Path).Msg("rejected submission")
		http.Error(w, err.Error(), status)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}

// pathID reads a numeric path value. A malformed id answers 404, the same as
// an id with no row.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := forms.ParseID(r.PathValue(name))
	if err != nil {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

// parseForm reads a bounded form body. On failure it answers 400.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return false
	}
	return true
}

func redirect(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	http.Redirect(w, r, fmt.Sprintf(format, args...), http.StatusSeeOther)
}

// redirectOwner sends the browser to the counselor a mutated record belongs
// to, or to the counselor list when there is none.
func redirectOwner(w http.ResponseWriter, r *http.Request, owner models.Owner) {
	if owner.Found {
		redirect(w, r, "/counselor/%d", owner.CounselorID)
		return
	}
	redirect(w, r, "/counselors")
}

// fieldErrors returns the per-field messages of a validation failure.
func fieldErrors(err error) map[string]string {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
