package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"TradeDesk/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string         `json:"code,omitempty"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

var validate = newValidator()

// newValidator registers the "symbol" tag, which accepts anything
// util.NormalizeSymbol can map to a canonical pair.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		_, err := util.NormalizeSymbol(fl.Field().String())
		return err == nil
	})
	return v
}

// ReadAndValidateRequest binds path, query and body, then defaults and validates.
// It returns nil or a []ValidationError ready to be sent back.
func ReadAndValidateRequest(c echo.Context, req any) any {
	if err := c.Bind(req); err != nil {
		return validationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return validationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return validationErrors(err)
	}
	return nil
}

func validationErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
				Params:  fieldParams(fe),
			})
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprintf("%v", he.Message)
	}
	return []ValidationError{{Code: CodeBadRequest, Message: msg}}
}

var boundWords = map[string]string{
	"gt":  "greater than",
	"gte": "greater than or equal to",
	"lt":  "less than",
	"lte": "less than or equal to",
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch tag := fe.Tag(); tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "symbol":
		return fmt.Sprintf("%s: unknown symbol %q", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "max":
		word := "least"
		if tag == "max" {
			word = "most"
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at %s %s items", field, word, fe.Param())
		}
		return fmt.Sprintf("%s must be at %s %s", field, word, fe.Param())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s", field, boundWords[tag], fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}

func fieldParams(fe validator.FieldError) map[string]any {
	switch fe.Tag() {
	case "min", "gte", "gt":
		return map[string]any{"min": fe.Param()}
	case "max", "lte", "lt":
		return map[string]any{"max": fe.Param()}
	case "oneof":
		return map[string]any{"options": strings.Split(fe.Param(), " ")}
	}
	return nil
}
