package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

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
	// ISO 4217-ish currency code
	validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if len(code) != 3 {
			return false
		}
		for _, r := range code {
			if r < 'A' || r > 'Z' {
				return false
			}
		}
		return true
	})

	// Ledger transaction type
	validate.RegisterValidation("tx_type", func(fl validator.FieldLevel) bool {
		t := fl.Field().String()
		validTypes := []string{"deposit", "withdrawal", "transfer", "referral", ""}
		for _, v := range validTypes {
			if t == v {
				return true
			}
		}
		return false
	})

	// Ledger transaction status
	validate.RegisterValidation("tx_status", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		validStatuses := []string{"pending", "completed", "failed", ""}
		for _, v := range validStatuses {
			if s == v {
				return true
			}
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errs := make(map[string]string)
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["_"] = err.Error()
		return errs
	}

	for _, fieldErr := range validationErrors {
		errs[fieldErr.Field()] = messageForTag(fieldErr)
	}
	return errs
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "invalid email address"
	case "currency":
		return "invalid currency code"
	case "tx_type":
		return "invalid transaction type"
	case "tx_status":
		return "invalid transaction status"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "invalid value"
	}
}
