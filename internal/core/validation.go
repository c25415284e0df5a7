package core

// validation.go checks records before they are staged.
//
// Field rules live in struct tags on Record and run through validator/v10.
// Rules that span fields (sale_price against regular_price) are checked here
// after the tag pass. Violations are keyed by record field name, one message
// per field.

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("field")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "recordid", func(fl validator.FieldLevel) bool {
		return ValidRecordID(fl.Field().String())
	})
	mustRegister(v, "nocomma", func(fl validator.FieldLevel) bool {
		return !strings.Contains(fl.Field().String(), ",")
	})
	mustRegister(v, "status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsKnown()
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// Validate checks the record and returns one violation per offending field.
// An empty result means the record is valid.
func (r Record) Validate() Violations {
	out := Violations{}

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			out["record"] = err.Error()
			return out
		}
		for _, fe := range verrs {
			field := fieldName(fe)
			if _, seen := out[field]; seen {
				continue
			}
			out[field] = violationMessage(field, fe)
		}
	}

	if isNegative(r.RegularPrice) {
		out["regular_price"] = "must not be negative"
	}
	if isNegative(r.SalePrice) {
		out["sale_price"] = "must not be negative"
	}
	if _, bad := out["sale_price"]; !bad && r.SalePrice.Valid && r.RegularPrice.Valid &&
		r.SalePrice.Decimal.GreaterThan(r.RegularPrice.Decimal) {
		out["sale_price"] = "must not exceed regular_price"
	}

	return out
}

// fieldName strips slice subscripts so "categories[2]" reports as "categories".
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

func violationMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if field == "categories" {
			return "must not contain empty entries"
		}
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "slug":
		return "must contain only lowercase letters, digits and single hyphens"
	case "recordid":
		return "is not a valid record id"
	case "nocomma":
		return "must not contain commas"
	case "status":
		return "must be one of " + strings.Join(Columns[ColStatus].EnumValues, ", ")
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

func isNegative(p decimal.NullDecimal) bool {
	return p.Valid && p.Decimal.IsNegative()
}

func priceEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
