// Package forms turns submitted HTML forms into the typed inputs the
// repository accepts, and validates them.
package forms

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"student-support-center/internal/models"
	"student-support-center/internal/util"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterValidation("notfuture", notFuture)
	})
	return validate
}

// Validate checks v's struct tags. A failed check comes back as a
// *models.ValidationError keyed by field name.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	fields := FieldErrors(err)
	if fields == nil {
		return err
	}
	return &models.ValidationError{Fields: fields}
}

// FieldErrors maps validator failures to a field -> message map for
// templates. It returns nil when err is not a validation failure.
func FieldErrors(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = message(fe)
	}
	return out
}

// notFuture accepts an empty or unparseable value; datetime reports those.
func notFuture(fl validator.FieldLevel) bool {
	t, err := util.ParseDateLocal(fl.Field().String())
	if err != nil {
		return true
	}
	return util.ValidateNotFutureDate(t) == nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "notfuture":
		return "cannot be in the future"
	case "gt":
		return "must be selected"
	default:
		return "is invalid"
	}
}
