package forms

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	errNotBool    = errors.New("must be true or false")
	errNotNumber  = errors.New("must be a number")
	errNotInteger = errors.New("must be a whole number")
	errNotString  = errors.New("must be a string")
)

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Missing []string
	Invalid validation.Errors
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid: "+e.Invalid.Error())
	}
	return strings.Join(parts, "; ")
}

// Message is the short client-facing summary.
func (e *ValidationError) Message() string {
	switch {
	case len(e.Missing) > 0:
		return "Missing required fields"
	case e.onlyBooleans():
		return "Invalid boolean fields"
	case len(e.Invalid) == 1:
		return "Invalid " + e.InvalidFields()[0]
	}
	return "Invalid fields"
}

// InvalidFields returns the invalid field names, sorted.
func (e *ValidationError) InvalidFields() []string {
	names := make([]string, 0, len(e.Invalid))
	for name := range e.Invalid {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Details maps each invalid field to its reason.
func (e *ValidationError) Details() map[string]string {
	out := make(map[string]string, len(e.Invalid))
	for name, err := range e.Invalid {
		out[name] = err.Error()
	}
	return out
}

func (e *ValidationError) onlyBooleans() bool {
	if len(e.Invalid) == 0 {
		return false
	}
	for _, err := range e.Invalid {
		if !errors.Is(err, errNotBool) {
			return false
		}
	}
	return true
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	ok := errors.As(err, &verr)
	return verr, ok
}
