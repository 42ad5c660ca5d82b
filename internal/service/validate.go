package service

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// fieldMessages overrides the generic message for a field and tag.
// Slice elements are keyed as "field[]".
var fieldMessages = map[string]string{
	"title.required":        "Title is required",
	"abstract.required":     "Abstract is required",
	"authors.required":      "At least one author is required",
	"authors.min":           "At least one author is required",
	"authors[].required":    "Author name is required",
	"categories.required":   "At least one category is required",
	"categories.min":        "At least one category is required",
	"categories[].required": "Category name is required",
	"tags[].required":       "Tag name is required",
	"pdfUrl.required":       "Invalid PDF URL",
	"pdfUrl.url":            "Invalid PDF URL",
	"bio.max":               fmt.Sprintf("Bio must be at most %d characters", domain.MaxBioLength),
}

// newValidator returns a validator that reports fields by their json names.
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

// validateStruct validates s and converts failures to domain.ValidationErrors.
// Failures on fields listed in skip are dropped.
func validateStruct(v *validator.Validate, s any, skip ...string) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %T: %w", s, err)
	}

	out := make(domain.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		path, key := fieldPath(fe)
		if slices.Contains(skip, key) {
			continue
		}
		out = append(out, domain.FieldError{Field: path, Message: fieldMessage(fe, key)})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// fieldPath turns "authors[1]" into the path "authors.1" and the lookup key "authors[]".
func fieldPath(fe validator.FieldError) (path, key string) {
	name := fe.Field()
	base, index, ok := strings.Cut(name, "[")
	if !ok {
		return name, name
	}
	return base + "." + strings.TrimSuffix(index, "]"), base + "[]"
}

func fieldMessage(fe validator.FieldError, key string) string {
	if msg, ok := fieldMessages[key+"."+fe.Tag()]; ok {
		return msg
	}

	field := fe.Field()
	isList := fe.Kind() == reflect.Slice
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if isList {
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		if isList {
			return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	default:
		return field + " is invalid"
	}
}
