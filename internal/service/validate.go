package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names so messages match what the caller sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct checks s against its validate tags and returns an
// ErrValidation naming the first offending field.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%w: %s is required", ErrValidation, field)
		case "min":
			return fmt.Errorf("%w: %s must be at least %s", ErrValidation, field, fe.Param())
		case "max":
			return fmt.Errorf("%w: %s must be at most %s", ErrValidation, field, fe.Param())
		default:
			return fmt.Errorf("%w: %s is invalid", ErrValidation, field)
		}
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
