package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is returned when the CDN has no such resource.
	ErrNotFound = errors.New("catalog: not found")

	// ErrInvalidParam is returned for accessor arguments that cannot form a request.
	ErrInvalidParam = errors.New("catalog: invalid parameter")
)

// ValidationError reports an upstream record that does not fit the
// canonical shape.
type ValidationError struct {
	Resource string `json:"resource"`
	// Index is the record's position in a list, -1 for single records
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	where := e.Resource
	if e.Index >= 0 {
		where = fmt.Sprintf("%s[%d]", e.Resource, e.Index)
	}
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", where, e.Message)
	}
	return fmt.Sprintf("invalid %s: field %q %s", where, e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs struct-tag validation and reports the first failing field.
func check(resource string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Resource: resource, Index: -1, Rule: "struct", Message: err.Error()}
	}

	fe := fieldErrs[0]
	return &ValidationError{
		Resource: resource,
		Index:    -1,
		Field:    fe.Field(),
		Rule:     fe.Tag(),
		Message:  ruleMessage(fe),
	}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "uppercase":
		return "must be upper case"
	case "email":
		return "must be a valid email address"
	default:
		return "failed rule " + fe.Tag()
	}
}

func missing(resource, field string) error {
	return &ValidationError{Resource: resource, Index: -1, Field: field, Rule: "required", Message: "is required"}
}

func malformed(resource string, err error) error {
	return &ValidationError{Resource: resource, Index: -1, Rule: "decode", Message: err.Error()}
}

// atIndex stamps a list position on a validation error.
func atIndex(err error, i int) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		stamped := *ve
		stamped.Index = i
		return &stamped
	}
	return err
}
