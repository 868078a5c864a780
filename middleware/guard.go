package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	authcore "github.com/Afolstee/authcore"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity attached by [Guard], or false
// if the request did not pass through it.
func AuthResultFromContext(ctx context.Context) (*authcore.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authcore.AuthResult)
	return res, ok
}

// Guard validates the bearer token on every request and attaches the
// resulting [authcore.AuthResult] to the request context.
func Guard(engine *authcore.Engine, routeMode authcore.RouteMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Validate(r.Context(), token, routeMode)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireJWTOnly overrides the validation mode to stateless for the
// wrapped handler, skipping Redis entirely.
func RequireJWTOnly(engine *authcore.Engine) func(http.Handler) http.Handler {
	return Guard(engine, authcore.RouteJWTOnly)
}

// RequireStrict forces session-backed validation for the wrapped handler
// regardless of the engine default.
func RequireStrict(engine *authcore.Engine) func(http.Handler) http.Handler {
	return Guard(engine, authcore.RouteStrict)
}

// writeAuthError maps engine errors onto HTTP statuses. 403 only for
// identities the engine verified and then refused; everything else that
// failed authentication is 401, and backend trouble is 503.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authcore.ErrAccountDisabled),
		errors.Is(err, authcore.ErrAccountLocked),
		errors.Is(err, authcore.ErrPermissionDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, authcore.ErrBackendUnavailable):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
