package jwt

import (
	"context"
	"net/http"
	"strings"

	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/logx"
	"listentogether/internal/pkg/resp"
)

type contextKey string

// sessionKey holds the verified *Payload in a request context.
const sessionKey contextKey = "session"

// bearerToken returns the token of an "Authorization: Bearer <token>" header, if any.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// IdentityExtractorMiddleware verifies a bearer session token when one is present and
// stores the session in the request context. Requests without a usable token pass
// through as anonymous; RequireSession turns them away where a session is mandatory.
func IdentityExtractorMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := VerifySession(token, secretKey)
			if err != nil {
				logx.Warn("Session token rejected, treating as anonymous", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests that carry no valid session token with ErrUnauthorized.
// It must run after IdentityExtractorMiddleware.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetPayloadFromContext(r) == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetPayloadFromContext returns the verified session, or nil for an anonymous request.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, _ := r.Context().Value(sessionKey).(*Payload)
	return payload
}
