package middlewares

import (
	"errors"
	"reflect"
	"strings"

	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their JSON name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// decimals validate as numbers, so gt=0 works on amounts
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// BindAndValidate parses the request body into dst, normalizes it and
// validates it. Parse failures are 400s, rule violations 422s; both carry
// the validation_error kind.
func BindAndValidate(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.BadRequest("invalid request body", err)
	}
	utils.NormalizeDTO(dst)
	return ValidateStruct(dst)
}

// ValidateStruct validates any struct value using the shared validator instance.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return &apperrors.Error{
			Kind:    apperrors.KindValidation,
			Message: "validation failed",
			Err:     err,
			Fields:  fieldErrors(ve),
		}
	}
	return apperrors.Wrap(apperrors.KindValidation, "validation failed", err)
}

func fieldErrors(ve validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[fe.Field()] = rule
	}
	return out
}
