package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate          *validator.Validate
	entityTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,49}$`)
)

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Fraud check resolution
	validate.RegisterValidation("fraud_resolution", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "approved", "rejected":
			return true
		}
		return false
	})

	// Business entity type a credit is applied to, e.g. "loan_fee"
	validate.RegisterValidation("entity_type", func(fl validator.FieldLevel) bool {
		return entityTypePattern.MatchString(fl.Field().String())
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range validationErrors {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "oneof":
			errors[field] = "Must be one of: " + err.Param()
		case "fraud_resolution":
			errors[field] = "Invalid resolution. Must be: approved or rejected"
		case "entity_type":
			errors[field] = "Must be lowercase letters, digits or underscores"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}
