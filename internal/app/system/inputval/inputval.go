// Package inputval validates decoded request bodies against struct tags.
//
// Input structs carry `validate:"..."` rules (go-playground/validator) and a
// `label:"..."` used in human-readable messages:
//
//	type createInput struct {
//	    Hospital string `json:"hospital" validate:"required,max=200" label:"Hospital"`
//	}
//
//	if result := inputval.Validate(in); result.HasErrors() {
//	    jsonutil.Invalid(w, result.First(), result.Fields())
//	}
package inputval

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Same leniency as bloodgroup.Parse, which handlers call afterwards.
		_ = v.RegisterValidation("bloodgroup", func(fl validator.FieldLevel) bool {
			_, err := bloodgroup.Parse(fl.Field().String())
			return err == nil
		})
		validate = v
	})
	return validate
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string // JSON name of the field
	Message string
}

// Result holds every failed rule in struct field order.
type Result struct {
	Errors []FieldError
}

// HasErrors reports whether any rule failed.
func (r Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "" when valid.
func (r Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// Fields maps JSON field names to their first message.
func (r Result) Fields() map[string]string {
	if len(r.Errors) == 0 {
		return nil
	}
	m := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, seen := m[e.Field]; !seen {
			m[e.Field] = e.Message
		}
	}
	return m
}

// Validate runs the struct's validate tags. v must be a struct or pointer to one.
func Validate(v any) Result {
	err := instance().Struct(v)
	if err == nil {
		return Result{}
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Result{Errors: []FieldError{{Message: err.Error()}}}
	}

	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	out := Result{Errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		name, label := fe.Field(), fe.Field()
		if sf, found := t.FieldByName(fe.StructField()); found {
			if j := strings.Split(sf.Tag.Get("json"), ",")[0]; j != "" && j != "-" {
				name = j
			}
			if l := sf.Tag.Get("label"); l != "" {
				label = l
			}
		}
		out.Errors = append(out.Errors, FieldError{Field: name, Message: message(label, fe)})
	}
	return out
}

func message(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", label)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s.", label, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s.", label, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s.", label, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address.", label)
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL.", label)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.Join(strings.Fields(fe.Param()), ", "))
	case "bloodgroup":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.Join(bloodgroup.Strings(), ", "))
	default:
		return fmt.Sprintf("%s is invalid.", label)
	}
}

// IsValidEmail reports whether s is a plain address (no display name).
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return instance().Var(s, "email") == nil
}
