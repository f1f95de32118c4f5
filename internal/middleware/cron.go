package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CronAuth decides whether a request may trigger a scheduled job.
type CronAuth struct {
	// Header is a header set by the hosting platform's scheduler. Its
	// presence alone authorizes the request.
	Header string
	// Secret is compared against the "secret" query parameter. A value
	// starting with "$2" is treated as a bcrypt hash. Empty disables the
	// check, leaving the endpoints open.
	Secret string
}

// Authorized reports whether r carries the platform header or the configured
// secret.
func (a CronAuth) Authorized(r *http.Request) bool {
	if a.Header != "" && r.Header.Get(a.Header) != "" {
		return true
	}
	if a.Secret == "" {
		return true
	}

	given := r.URL.Query().Get("secret")
	if given == "" {
		return false
	}
	if strings.HasPrefix(a.Secret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(a.Secret), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(a.Secret), []byte(given)) == 1
}

// RequireCron rejects requests that fail auth with 403 before any job runs.
func RequireCron(auth CronAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.Authorized(r) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
