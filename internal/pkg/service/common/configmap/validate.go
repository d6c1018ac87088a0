package configmap

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// Validate the configuration structure by the "validate" tags and by the ValueWithValidation interface.
func Validate(target any) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get(configKeyTag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	errs := errors.NewMultiError()
	if err := validate.Struct(target); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return err
		}
		for _, fieldErr := range validationErrs {
			errs.Append(errors.New(formatFieldError(fieldErr)))
		}
	}

	if v, ok := target.(ValueWithValidation); ok {
		if err := v.Validate(); err != nil {
			errs.Append(err)
		}
	}

	return errs.ErrorOrNil()
}

func formatFieldError(err validator.FieldError) string {
	// Remove the root struct name
	key := err.Namespace()
	if _, after, found := strings.Cut(key, "."); found {
		key = after
	}

	switch err.Tag() {
	case "required":
		return fmt.Sprintf(`"%s" is a required field`, key)
	case "oneof":
		return fmt.Sprintf(`"%s" must be one of [%s]`, key, err.Param())
	case "min", "gte":
		return fmt.Sprintf(`"%s" must be %s or greater`, key, err.Param())
	case "max", "lte":
		return fmt.Sprintf(`"%s" must be %s or less`, key, err.Param())
	case "ltfield":
		return fmt.Sprintf(`"%s" must be less than "%s"`, key, err.Param())
	default:
		return fmt.Sprintf(`"%s" is not valid, rule "%s"`, key, err.Tag())
	}
}
