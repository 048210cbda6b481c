package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxRequestBodyBytes caps JSON request bodies.
const MaxRequestBodyBytes = 1 << 20

var (
	// ErrEmptyBody is returned by DecodeJSON when the request has no body.
	ErrEmptyBody = errors.New("request body is empty")

	// ErrInvalidJSON is returned by DecodeJSON for malformed or unexpected JSON.
	ErrInvalidJSON = errors.New("invalid JSON body")
)

var validate = newValidator()

// newValidator reports fields by their JSON names so error messages match
// the request payload.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into v. Unknown fields and trailing
// data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected trailing data", ErrInvalidJSON)
	}
	return nil
}

// ValidateRequest validates v with its `validate` struct tags. Types that
// implement Validate() error are validated by that method instead.
func ValidateRequest(v interface{}) error {
	if custom, ok := v.(interface{ Validate() error }); ok {
		return custom.Validate()
	}
	return validate.Struct(v)
}
