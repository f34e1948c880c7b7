package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/idea-tracker/internal/apperror"
)

// maxBodyBytes caps request bodies. The largest legitimate body is an
// idea description.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name so errors match the request body.
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return sf.Name
		}
		return name
	})
	return v
}

// normalizer is implemented by request types that clean up their fields
// (trim, lower-case) before validation.
type normalizer interface {
	normalize()
}

// bindJSON decodes the request body into dst and validates its struct
// tags. Every failure is an apperror.ErrValidation naming the offending
// field where one is known.
func bindJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return decodeError(err)
	}

	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apperror.ValidationFailed(fe.Field(),
				fe.Field()+" "+validationMessage(fe.Tag(), fe.Param()))
		}
		return fmt.Errorf("validating request: %w", err)
	}
	return nil
}

func decodeError(err error) error {
	var (
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		tooLargeErr *http.MaxBytesError
	)

	switch {
	case errors.Is(err, io.EOF):
		return apperror.ValidationFailed("", "request body is required")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return apperror.ValidationFailed("", "request body is not valid JSON")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be of type %s", field, typeErr.Type.String()))
	case errors.As(err, &tooLargeErr):
		return apperror.ValidationFailed("", fmt.Sprintf("request body must be %d bytes or less", tooLargeErr.Limit))
	}
	return apperror.ValidationFailed("", "request body could not be decoded")
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "gte":
		return "must be at least " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	}
	if param != "" {
		return fmt.Sprintf("failed %s validation (%s)", rule, param)
	}
	return "failed " + rule + " validation"
}
