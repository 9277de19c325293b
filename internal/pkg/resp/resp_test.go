package resp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"listentogether/internal/pkg/errs"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		name       string
		err        *errs.CustomError
		wantStatus int
		wantCode   int
		retryAfter string
	}{
		{"not found", errs.NewError(errs.ErrRoomNotFound), http.StatusNotFound, errs.ErrRoomNotFound, ""},
		{"rate limited", errs.NewError(errs.ErrRateLimitExceeded), http.StatusTooManyRequests, errs.ErrRateLimitExceeded, RetryAfterSeconds},
		{"nil", nil, http.StatusInternalServerError, errs.ErrUnknown, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := rec.Header().Get("Retry-After"); got != tc.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tc.retryAfter)
			}

			var body JSONResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tc.wantCode || body.Message == "" || body.Data != nil {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestRespondSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondSuccess(rec, httptest.NewRequest(http.MethodGet, "/", nil), map[string]int{"rooms": 2})

	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if got := rec.Body.String(); got != `{"code":0,"message":"success","data":{"rooms":2}}` {
		t.Errorf("body = %s", got)
	}
}

func TestRespondJSONEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondJSON(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, func() {})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
