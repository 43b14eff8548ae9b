package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/relaygate/gateway/contracts"
	"github.com/relaygate/gateway/httpresp"
	"github.com/relaygate/gateway/metrics"
)

type contextKey string

const principalContextKey contextKey = "gateway:principal"

// WithPrincipal attaches p to ctx for downstream filters, the router, and
// the bridge to read.
func WithPrincipal(ctx context.Context, p *contracts.AuthPrincipal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the AuthPrincipal attached by Filter, if any.
func PrincipalFromContext(ctx context.Context) (*contracts.AuthPrincipal, bool) {
	p, ok := ctx.Value(principalContextKey).(*contracts.AuthPrincipal)
	return p, ok
}

const bearerPrefix = "Bearer "

// Filter resolves the Authorization header and, if it carries a valid
// bearer token, attaches the resulting AuthPrincipal to the request
// context. A missing or invalid token is never rejected here — the request
// simply proceeds with no principal, and Authorize decides downstream
// whether that is acceptable for the requested path.
func Filter(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := resolveBearerToken(r.Header.Get("Authorization"))
			if token != "" && verifier.Validate(token) {
				if principal, err := verifier.Authenticate(token); err == nil {
					r = r.WithContext(WithPrincipal(r.Context(), principal))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveBearerToken(header string) string {
	if strings.HasPrefix(header, bearerPrefix) {
		return header[len(bearerPrefix):]
	}
	return ""
}

// Authorize enforces the declarative public-path allow-list: requests
// whose path matches one of publicPrefixes proceed regardless of
// authentication; every other path requires a principal already attached
// by Filter, else it is rejected with 401.
func Authorize(publicPrefixes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range publicPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if _, ok := PrincipalFromContext(r.Context()); !ok {
				metrics.AuthFailureTotal.Inc()
				httpresp.WriteError(w, http.StatusUnauthorized, "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
