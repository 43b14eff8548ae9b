// Package auth implements the bearer-token authentication filter: a
// signature-and-expiry token verifier plus the http.Handler middleware that
// resolves the Authorization header, attaches the resulting AuthPrincipal
// to the request context, and enforces the declarative public-path
// allow-list.
package auth
