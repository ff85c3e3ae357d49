package middleware

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/videoflix/videoflix-api/errors"
)

// IsAuthorized gates administrative endpoints behind the configured
// bearer token.
func IsAuthorized(apiToken string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if apiToken == "" {
			// Refuse to match an empty configured token against an empty
			// Bearer value; startup validation should have caught this.
			errors.WriteHTTPUnauthorized(w, "Admin token not configured", nil)
			return
		}

		authHeader := r.Header.Get("Authorization")

		if authHeader == "" {
			errors.WriteHTTPUnauthorized(w, "No authorization header", nil)
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")

		if token != apiToken {
			errors.WriteHTTPUnauthorized(w, "Invalid Token", nil)
			return
		}

		next(w, r, ps)
	}
}
