// Package middleware holds HTTP middleware for the API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/newthinker/tradesim/internal/api/response"
	"github.com/newthinker/tradesim/internal/core"
)

// APIKeyAuth returns middleware that validates the X-API-Key header or an
// "Authorization: Bearer" token. If apiKey is empty, authentication is disabled.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if no key configured
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := requestKey(r)
			if providedKey == "" {
				response.Error(w, http.StatusUnauthorized,
					core.Errorf(core.ErrConfigMissing, "api key required"))
				return
			}

			if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
				response.Error(w, http.StatusUnauthorized,
					core.Errorf(core.ErrConfigInvalid, "api key rejected"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
