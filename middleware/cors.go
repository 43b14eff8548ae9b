package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls the gateway's cross-origin policy. No library in the
// example corpus implements CORS, so this filter is a small hand-rolled
// concern rather than a wired third-party dependency.
type CORSConfig struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders string
	MaxAgeSecond int
}

// DefaultCORSConfig matches the gateway's permissive-by-default policy.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: "*",
		MaxAgeSecond: 3600,
	}
}

// CORS applies cfg's headers to every response and short-circuits preflight
// OPTIONS requests.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(cfg.AllowMethods, ", ")
	maxAge := strconv.Itoa(cfg.MaxAgeSecond)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", cfg.AllowOrigin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", cfg.AllowHeaders)
			h.Set("Access-Control-Max-Age", maxAge)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
