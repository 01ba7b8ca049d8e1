// Package authmw provides HTTP middleware for shared-token API authentication.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader is the alternative to a bearer Authorization header.
const APIKeyHeader = "X-API-Key"

// RequireToken returns middleware that accepts a request only if it carries
// token as "Authorization: Bearer <token>" or in the X-API-Key header.
// Comparison is constant-time.
func RequireToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := credential(r)
			if !ok {
				writeUnauthorized(w, "missing credentials")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				writeUnauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// credential extracts the presented token. A malformed Authorization header
// falls back to X-API-Key.
func credential(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); len(auth) > len("Bearer ") &&
		strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return auth[len("Bearer "):], true
	}
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key, true
	}
	return "", false
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="apex"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"ok":false,"error":"` + msg + `"}`))
}
