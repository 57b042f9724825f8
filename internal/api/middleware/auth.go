package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hindsightlab/hindsight/internal/api/response"
	"github.com/hindsightlab/hindsight/internal/core"
)

// BearerAuth returns middleware that validates an Authorization
// bearer token. An empty configured token disables authentication.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || provided == "" {
				response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
				return
			}

			// Constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
