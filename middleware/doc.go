// Package middleware provides the gateway's non-blocking cross-cutting
// filters: correlation ID propagation, structured access logging, and a
// permissive-by-default CORS policy. None of these reject a request; the
// authentication and authorization decisions live in package auth.
package middleware
