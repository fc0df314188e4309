package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/strata/internal/core"
)

// APIKeyAuth validates the X-API-Key header against keys (key to user id)
// and puts the matching user on the request context for createdBy.
//
// When required is false a missing key passes through anonymously, but a
// present key must still be valid.
func APIKeyAuth(keys map[string]string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				slog.Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			user, ok := lookupAPIKey(apiKey, keys)
			if !ok {
				slog.Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method, "remote_addr", r.RemoteAddr)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			ctx := core.ContextWithUser(r.Context(), &core.User{ID: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// lookupAPIKey compares against every configured key in constant time so
// the response time does not reveal which key, if any, matched.
func lookupAPIKey(key string, keys map[string]string) (string, bool) {
	var user string
	found := 0
	for valid, u := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			user = u
			found = 1
		}
	}
	return user, found == 1
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","code":"` + code + `"}`))
}
