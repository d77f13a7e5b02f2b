package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Verifier is the part of *goIdentity.Engine the guards need.
type Verifier interface {
	VerifyAccessToken(ctx context.Context, token string) (goIdentity.AccessClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by [Guard] or [GuardPartial].
func ClaimsFromContext(ctx context.Context) (goIdentity.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(goIdentity.AccessClaims)
	return claims, ok
}

// WithClaims stores claims in ctx. Handlers under test use it to skip the guard.
func WithClaims(ctx context.Context, claims goIdentity.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// Guard admits only full-session access tokens. A valid pre-2FA token is answered with
// 403 and code "second_factor_required".
func Guard(v Verifier) func(http.Handler) http.Handler {
	return guard(v, true)
}

// GuardPartial also admits pre-2FA access tokens. It belongs on the second-factor
// authenticate route only.
func GuardPartial(v Verifier) func(http.Handler) http.Handler {
	return guard(v, false)
}

func guard(v Verifier, requireSecondFactor bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				writeErr(w, http.StatusUnauthorized, "unauthorized", goIdentity.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeErr(w, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid authorization"))
				return
			}

			claims, err := v.VerifyAccessToken(r.Context(), token)
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "invalid_token", goIdentity.ErrTokenInvalid)
				return
			}
			if requireSecondFactor && !claims.SecondFactorAuthenticated {
				writeErr(w, http.StatusForbidden, "second_factor_required", goIdentity.ErrSecondFactorRequired)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeErr(w http.ResponseWriter, status int, code string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "code": code})
}
