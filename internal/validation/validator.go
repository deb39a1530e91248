// Package validation holds the request form schemas and the Echo validator that enforces them.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ScheduleLayout is the wire format for appointment times.
const ScheduleLayout = time.RFC3339

var (
	phonePattern      = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	resourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)
)

// FieldErrors maps a JSON field name to the rule it failed.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Validator implements echo.Validator.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// New registers the custom rules (phone, future, resourceid) and JSON field naming.
func New() *Validator {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Validator {
	cv := &Validator{v: validator.New(), now: now}

	cv.v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// registration cannot fail for these static tags
	_ = cv.v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = cv.v.RegisterValidation("resourceid", func(fl validator.FieldLevel) bool {
		return resourceIDPattern.MatchString(fl.Field().String())
	})
	_ = cv.v.RegisterValidation("future", func(fl validator.FieldLevel) bool {
		ts, err := time.Parse(ScheduleLayout, fl.Field().String())
		if err != nil {
			return false
		}
		return ts.After(cv.now())
	})

	return cv
}

// Validate returns FieldErrors when i breaks one of its rules.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %T: %w", i, err)
	}

	fe := make(FieldErrors, len(verrs))
	for _, e := range verrs {
		fe[e.Field()] = e.Tag()
	}
	return fe
}

// Fields extracts FieldErrors from err.
func Fields(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
