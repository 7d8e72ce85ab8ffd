package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// requestValidator plugs go-playground/validator into echo's c.Validate.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON/query names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	v.RegisterStructValidation(validateListQuery, listQuery{})

	return &requestValidator{validate: v}
}

// Validate implements echo.Validator; failures become 400 responses.
func (rv *requestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return echo.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, "; ")).SetInternal(err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
		}
		return field + " must be between 1 and 100"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "boolean":
		return field + " must be true or false"
	case "category":
		return fmt.Sprintf("unknown category %q", fe.Value())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// validateListQuery checks the category against the enumeration of the routed kind.
func validateListQuery(sl validator.StructLevel) {
	q := sl.Current().Interface().(listQuery)
	if q.Category != "" && !q.Kind.ValidCategory(q.Category) {
		sl.ReportError(q.Category, "category", "Category", "category", "")
	}
}
