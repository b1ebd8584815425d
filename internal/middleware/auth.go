package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminAuth returns middleware that requires the X-Admin-Token header to
// match token. An empty configured token disables the surface entirely
// rather than leaving it open.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, `{"error": "admin API disabled"}`, http.StatusForbidden)
				return
			}

			got := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
