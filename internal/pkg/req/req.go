/*
Package req provides helper functions for HTTP request parsing and data binding.

It encapsulates the logic for parsing JSON bodies and integrates error handling to
ensure data format correctness and size constraints, facilitating subsequent business
logic processing.
*/
package req

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"listentogether/internal/pkg/errs"
)

// MaxJSONBodySize defines the maximum allowed size (64 KB) of a JSON request body.
const MaxJSONBodySize int64 = 64 << 10

// BindJSON attempts to bind the JSON data from the HTTP request body to the destination struct dst.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.NewError(errs.ErrInvalidParams)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
