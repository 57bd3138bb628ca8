package apiclient

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// FillAllFields is the message for missing required input.
const FillAllFields = "Please fill in all fields"

var validate = validator.New()

// Validate checks struct tags on v and converts the first violation into a *ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Message: messageFor(fe)}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return FillAllFields
	case "email":
		return "Please enter a valid email address"
	case "min", "max", "gte", "lte":
		if fe.Field() == "Rating" || fe.Field() == "Value" {
			return "Rating must be between 1 and 5"
		}
	}
	return "Invalid " + fe.Field()
}
