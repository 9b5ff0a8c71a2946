package dto

import (
	"errors"
	"strings"

	"learner-portal/internal/apperror"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

func GetValidator() *validator.Validate {
	return validate
}

// Validate checks v and reports the first failing field as a ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return err
	}

	fe := fieldErrors[0]
	field := strings.ToLower(fe.Field())
	var message string
	switch fe.Tag() {
	case "required", "notblank":
		message = field + " is required"
	case "min", "max":
		message = field + " must be between 1 and 5"
	case "oneof":
		message = field + " must be one of: " + fe.Param()
	case "gt":
		message = field + " must be positive"
	default:
		message = field + " is invalid"
	}

	return apperror.NewValidation(field, message)
}
