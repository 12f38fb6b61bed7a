package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by the names clients send.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ErrValidationFailed is returned for bodies that fail their struct tags.
var ErrValidationFailed = shared.NewDomainError("http", "Validate", shared.ErrInvalidInput, "validation_failed", "request validation failed")

// ErrMalformedBody is returned for bodies that are not the expected JSON.
var ErrMalformedBody = shared.NewDomainError("http", "Decode", shared.ErrInvalidInput, "malformed_body", "request body is not valid JSON")

// Validate checks v's validator tags. Failures carry a "fields" detail
// mapping json field names to the violated rule.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %T: %w", v, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return ErrValidationFailed.WithDetails(map[string]any{"fields": fields})
}

// DecodeAndValidate reads a JSON body into dst and validates it. Unknown
// fields are rejected.
func DecodeAndValidate(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return ErrMalformedBody.WithMessage("request body is empty")
		case errors.As(err, &maxErr):
			return ErrMalformedBody.WithMessage("request body exceeds %d bytes", maxErr.Limit)
		default:
			return ErrMalformedBody.WithDetails(map[string]any{"reason": err.Error()})
		}
	}
	if dec.More() {
		return ErrMalformedBody.WithMessage("request body must hold a single JSON object")
	}
	return Validate(dst)
}

// fieldPath drops the top-level struct name: "CreateSessionRequest.question_ids[1]"
// becomes "question_ids[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + unit(fe)
	case "max":
		return "must be at most " + fe.Param() + unit(fe)
	case "len":
		return "must have exactly " + fe.Param() + " element(s)"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "unique":
		return "must not contain duplicates"
	case "datetime":
		return "must be a date formatted " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func unit(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return " characters long"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items long"
	}
	return ""
}
