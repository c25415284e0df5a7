package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/shopsheet/internal/config"
)

// authError mirrors the web layer's JSON error body.
type authError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// APIKeyAuth guards the API with the keys in cfg. The key is read from
// X-API-Key or an "Authorization: Bearer" header. With RequireAPIKey off
// every request passes; with it on and no keys configured, none do.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := requestKey(r)
			if key == "" {
				slog.Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method, "ip", r.RemoteAddr)
				denyJSON(w, http.StatusUnauthorized, authError{
					Message: "An API key is required",
					Action:  "Send the key in the X-API-Key header",
					Code:    "AUTH002",
				})
				return
			}

			if !isValidAPIKey(key, cfg.APIKeys) {
				slog.Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method, "ip", r.RemoteAddr)
				denyJSON(w, http.StatusForbidden, authError{
					Message: "The API key was not accepted",
					Action:  "Check the key and try again",
					Code:    "AUTH003",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func denyJSON(w http.ResponseWriter, status int, body authError) {
	body.Error = body.Message
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// isValidAPIKey compares key against every configured key in constant time,
// so timing does not reveal which key (if any) matched.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}
