// Defines the validation interface for requests.

package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validatable is implemented by request types that can validate their fields.
// The Wrap function in handler_wrapper.go uses this interface as a type
// constraint to ensure all request types provide validation.
type Validatable interface {
	Validate() error
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so errors match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the `validate` struct tags of r and converts the first
// failure into an APIError.
func validateStruct(r any) error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return BadRequest("Invalid request").Wrap(err)
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return MissingField(field)
	case "email":
		return InvalidField(field, "Invalid email address")
	case "min":
		if fe.Kind() == reflect.String {
			return InvalidField(field, field+" must be at least "+fe.Param()+" characters")
		}
		return InvalidField(field, field+" must be at least "+fe.Param())
	default:
		return InvalidField(field, "Invalid value for "+field)
	}
}
