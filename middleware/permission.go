package middleware

import (
	"net/http"

	authcore "github.com/Afolstee/authcore"
)

// RequirePermission gates the wrapped handler on a permission name. It
// must run after [Guard]; a request with no attached identity is rejected
// with 401 rather than passed through.
func RequirePermission(engine *authcore.Engine, perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok || engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !engine.HasPermission(res.Mask, perm) {
				writeAuthError(w, authcore.ErrPermissionDenied)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
