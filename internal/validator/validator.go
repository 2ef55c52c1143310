// Package validator accumulates field-level validation errors and returns them as a map.
// Struct tags are checked with go-playground/validator; rules that span several fields
// are added by callers through Check.
package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"bookcatalog/internal/apperr"
)

var (
	EmailRX    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	UsernameRX = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

var structs = newStructValidator()

func newStructValidator() *playground.Validate {
	v := playground.New(playground.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	patterns := map[string]*regexp.Regexp{
		"emailaddr": EmailRX,
		"username":  UsernameRX,
	}
	for tag, rx := range patterns {
		if err := v.RegisterValidation(tag, func(fl playground.FieldLevel) bool {
			return Matches(fl.Field().String(), rx)
		}); err != nil {
			panic(fmt.Sprintf("registering %s validation: %v", tag, err))
		}
	}

	return v
}

type Validator struct {
	Errors map[string]string
}

func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records key as failing. The first failure for a field wins.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check adds an error for key only when ok is false:
//
//	v.Check(price > 0, "price", "must be greater than zero for premium books")
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Struct checks the `validate` tags of s and records every failing field under its JSON name.
func (v *Validator) Struct(s any) {
	err := structs.Struct(s)
	if err == nil {
		return
	}

	var fes playground.ValidationErrors
	if !asValidationErrors(err, &fes) {
		v.AddError("_", err.Error())
		return
	}

	for _, fe := range fes {
		v.AddError(fe.Field(), message(fe))
	}
}

// Err returns nil when valid and an *apperr.ValidationError otherwise.
func (v *Validator) Err() error {
	if v.Valid() {
		return nil
	}
	return apperr.NewValidationError(v.Errors)
}

func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

func asValidationErrors(err error, target *playground.ValidationErrors) bool {
	fes, ok := err.(playground.ValidationErrors)
	if ok {
		*target = fes
	}
	return ok
}

func message(fe playground.FieldError) string {
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return "must be provided"
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters long", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if isString {
			return fmt.Sprintf("must not be more than %s characters long", fe.Param())
		}
		return "must not be more than " + fe.Param()
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", fe.Param())
	case "number":
		return "must contain only digits"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "http_url":
		return "must be an http or https URL"
	case "emailaddr":
		return "must be a valid email address"
	case "username":
		return "may contain only letters, digits and underscores"
	default:
		return "is invalid"
	}
}
