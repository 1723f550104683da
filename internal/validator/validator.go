package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// New creates a validator with the custom rules used by request DTOs.
// Field errors report the JSON name of the field, so handlers can echo it back to clients.
func New() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// notblank rejects whitespace-only strings such as "   " for staff ids and reward names
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	return v
}
