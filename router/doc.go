// Package router implements the gateway's declarative path-prefix-to-
// routing-key table. The longest matching prefix wins; an unmatched path is
// always a 404, never a guessed destination.
package router
