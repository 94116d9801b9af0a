package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldProblem describes one failed constraint on a showtime field.
type FieldProblem struct {
	Field   string
	Message string
}

// ValidationError is returned for a showtime that breaks a data invariant.
type ValidationError struct {
	Title    string
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "invalid showtime"
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+" "+p.Message)
	}
	label := "showtime"
	if e.Title != "" {
		label = fmt.Sprintf("showtime %q", e.Title)
	}
	return fmt.Sprintf("invalid %s: %s", label, strings.Join(parts, "; "))
}

// HasField reports whether the named json field failed validation.
func (e *ValidationError) HasField(field string) bool {
	for _, p := range e.Problems {
		if p.Field == field {
			return true
		}
	}
	return false
}

// Validate checks the required fields and that the showtime ends after it
// starts.
func (s Showtime) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate showtime: %w", err)
	}
	verr := &ValidationError{Title: s.Title}
	for _, fe := range fieldErrs {
		verr.Problems = append(verr.Problems, FieldProblem{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}
	return verr
}

// ValidateAll validates every showtime and joins all failures.
func ValidateAll(showtimes []Showtime) error {
	var errs []error
	for i, s := range showtimes {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("showtime %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gtfield":
		return "must be after startTime"
	default:
		return "is invalid"
	}
}
