package httpx

import (
	"net/http"

	"bookdash/internal/auth"
)

// AuthorizationCapture copies the Authorization header onto the request
// context. It never rejects: each operation runs the guard itself.
func AuthorizationCapture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithAuthorization(r.Context(), r.Header.Get("Authorization"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
