// Package validation wraps go-playground/validator with the service's error conventions.
package validation

import (
	"errors"
	"fmt"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/go-playground/validator/v10"
)

// FieldError represents a validation error with field-level details
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Global validator instance (reused across services and handlers)
var validate = validator.New()

// Struct validates v and returns an error wrapping models.ErrValidation that
// names the first failing field
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := Fields(ve)
		if len(fields) > 0 {
			return fmt.Errorf("%w: %s: %s", models.ErrValidation, fields[0].Field, fields[0].Message)
		}
	}
	return fmt.Errorf("%w: %v", models.ErrValidation, err)
}

// Fields flattens validator errors into user-facing messages
func Fields(ve validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return out
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "required_if":
		return fmt.Sprintf("this field is required when %s", fe.Param())
	case "required_without":
		return fmt.Sprintf("this field is required when %s is not present", fe.Param())
	case "excluded_if":
		return fmt.Sprintf("this field must be empty when %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "ip":
		return "must be a valid IP address"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
