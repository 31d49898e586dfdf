package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator. Field names in errors follow
// the json tags so they match the wire format.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateRequest validates a DTO and converts the first failure into a
// field-scoped validation error.
func validateRequest(op string, req any) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return shared.WrapError("http", op, shared.ErrValidation, "invalid request", err)
	}

	fe := verrs[0]
	return shared.NewFieldError("http", op, fe.Field(), reasonFor(fe.Tag()), translateError(fe))
}

func reasonFor(tag string) error {
	switch tag {
	case "required":
		return shared.ErrEmptyValue
	case "gte", "lte", "min", "max":
		return shared.ErrValueOutOfRange
	default:
		return shared.ErrInvalidFormat
	}
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	if fe.Tag() == "required" {
		return fe.Field() + " is required"
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
