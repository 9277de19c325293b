/*
Package resp writes the server's JSON envelope: a business code (0 on success),
a client-facing message and optional data.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"listentogether/internal/pkg/errs"
)

// RetryAfterSeconds is advertised on rate-limited responses.
const RetryAfterSeconds = "5"

// JSONResponse is the envelope of every REST response.
type JSONResponse struct {
	// Code is 0 for success, otherwise one of the errs codes.
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RespondJSON encodes payload with the given HTTP status. Encoding failures are
// logged through the request-scoped logger and answered with a bare 500.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("http_status", httpStatus).Msg("Error encoding JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")

	w.WriteHeader(httpStatus)
	w.Write(body)
}

// RespondSuccess answers 200 with data in the envelope.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{Code: 0, Message: "success", Data: data})
}

// RespondError answers with customErr's status, code and message. A nil error is
// reported as ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	switch {
	case customErr.Status == http.StatusTooManyRequests:
		w.Header().Set("Retry-After", RetryAfterSeconds)
	case customErr.Status >= http.StatusInternalServerError:
		zerolog.Ctx(r.Context()).Warn().Int("code", customErr.Code).Msg(customErr.Message)
	}

	RespondJSON(w, r, customErr.Status, JSONResponse{Code: customErr.Code, Message: customErr.Message})
}
