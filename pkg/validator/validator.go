// ==============================================================================
// VALIDATOR PACKAGE - pkg/validator/validator.go
// ==============================================================================
package validator

import (
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var documentPattern = regexp.MustCompile(`^[0-9]{6,20}$`)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	v.registerCustomValidations()
	return v
}

// ValidateStructured returns a map of json field -> error message for API responses
func (v *Validator) ValidateStructured(i interface{}) map[string]string {
	errs := make(map[string]string)
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				msg := fmt.Sprintf("failed validation on '%s'", e.Tag())
				switch e.Tag() {
				case "required":
					msg = "This field is required"
				case "min":
					msg = fmt.Sprintf("Must be at least %s", e.Param())
				case "max":
					msg = fmt.Sprintf("Must be at most %s", e.Param())
				case "gt", "dgt":
					msg = fmt.Sprintf("Must be greater than %s", e.Param())
				case "lte", "dlte":
					msg = fmt.Sprintf("Must be at most %s", e.Param())
				case "decimal_places":
					msg = fmt.Sprintf("Must have at most %s decimal places", e.Param())
				case "oneof":
					msg = fmt.Sprintf("Must be one of: %s", e.Param())
				case "document":
					msg = "Document must contain 6 to 20 digits"
				case "past_date":
					msg = "Date cannot be in the future"
				}
				errs[e.Field()] = msg
			}
		} else {
			errs["_global"] = err.Error()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (v *Validator) registerCustomValidations() {
	// Report json names so field errors match the request body
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Decimals are handed to validations as their exact string form. Use the
	// dgt, dlte and decimal_places tags on them; gt and lte would compare
	// string lengths.
	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(decimal.Decimal); ok {
			return val.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.validate.RegisterValidation("dgt", func(fl validator.FieldLevel) bool {
		d, limit, ok := decimalAndParam(fl)
		return ok && d.GreaterThan(limit)
	})

	_ = v.validate.RegisterValidation("dlte", func(fl validator.FieldLevel) bool {
		d, limit, ok := decimalAndParam(fl)
		return ok && d.LessThanOrEqual(limit)
	})

	// decimal_places=N rejects values that would be rounded by a NUMERIC(p,N) column.
	_ = v.validate.RegisterValidation("decimal_places", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		places, err := strconv.ParseInt(fl.Param(), 10, 32)
		if err != nil {
			return false
		}
		return d.Equal(d.Truncate(int32(places)))
	})

	_ = v.validate.RegisterValidation("document", func(fl validator.FieldLevel) bool {
		return documentPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})

	_ = v.validate.RegisterValidation("past_date", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return !t.After(time.Now())
	})
}

func decimalAndParam(fl validator.FieldLevel) (decimal.Decimal, decimal.Decimal, bool) {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	limit, err := decimal.NewFromString(fl.Param())
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	return d, limit, true
}

// Sanitize cleans string input to prevent XSS attacks
func Sanitize(input string) string {
	return html.EscapeString(strings.TrimSpace(input))
}
