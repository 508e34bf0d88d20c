package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func GetValidator() *validator.Validate {
	once.Do(initValidator)
	return validate
}

func initValidator() {
	validate = validator.New()
	// report json names, not Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// Struct validates s and flattens the failures into readable messages.
func Struct(s interface{}) []string {
	if err := GetValidator().Struct(s); err != nil {
		return ParseErrors(err)
	}
	return nil
}

func ParseErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	ok := errors.As(err, &validationErrors)
	if !ok {
		return []string{"Unknown error"}
	}

	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, prettyError(e))
	}

	return errs
}

func prettyError(e validator.FieldError) string {
	if strings.Contains(e.Tag(), "eq=") {
		params := e.Tag()
		params = strings.ReplaceAll(params, "|", "")
		splitted := strings.Split(params, "eq=")

		var values []string
		for _, str := range splitted {
			if str != "" {
				values = append(values, str)
			}
		}
		names := strings.Join(values, " or ")

		return fmt.Sprintf("%s must be %s", e.Field(), names)
	}

	switch e.Tag() {
	case "required":
		return e.Field() + " field is required"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s length must be greater than or equal to %s", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be greater than or equal to %s", e.Field(), e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s length must be less than or equal to %s", e.Field(), e.Param())
		}
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s items", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be less than or equal to %s", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
	case "url":
		return e.Field() + " must be a valid URL"
	case "email":
		return e.Field() + " must be a valid email"
	default:
		return e.Error()
	}
}
