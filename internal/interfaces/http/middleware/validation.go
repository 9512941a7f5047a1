package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/erp/reconciler/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator makes binding errors report json (or form) field names,
// so details line up with what the client sent.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(fieldName)
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return ""
}

// ValidationDetails lists one detail per failed field; nil when err carries
// no field errors
func ValidationDetails(err error) []dto.ValidationDetail {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, dto.ValidationDetail{
			Field:   fe.Field(),
			Message: getValidationMessage(fe),
		})
	}
	return details
}

var validationMessages = map[string]func(validator.FieldError) string{
	"required": func(validator.FieldError) string { return "This field is required" },
	"required_without": func(e validator.FieldError) string {
		return "Required when " + e.Param() + " is not given"
	},
	"min":  func(e validator.FieldError) string { return "Must be at least " + e.Param() + unitOf(e) },
	"max":  func(e validator.FieldError) string { return "Must be at most " + e.Param() + unitOf(e) },
	"len":  func(e validator.FieldError) string { return "Must be exactly " + e.Param() + " characters" },
	"uuid": func(validator.FieldError) string { return "Invalid UUID format" },
	"oneof": func(e validator.FieldError) string {
		return "Must be one of: " + e.Param()
	},
	"gte":  func(e validator.FieldError) string { return "Must be greater than or equal to " + e.Param() },
	"lte":  func(e validator.FieldError) string { return "Must be less than or equal to " + e.Param() },
	"dive": func(validator.FieldError) string { return "Invalid element" },
}

// unitOf qualifies string length limits; numeric and slice limits stay bare
func unitOf(e validator.FieldError) string {
	if e.Kind() == reflect.String {
		return " characters"
	}
	return ""
}

func getValidationMessage(e validator.FieldError) string {
	if msg, ok := validationMessages[e.Tag()]; ok {
		return msg(e)
	}
	return "Invalid value"
}
