// Package registry implements the correlation registry: a concurrent table
// from correlation ID to a single-shot PendingSlot, used to match an
// asynchronous broker reply back to the HTTP request that is waiting on it.
package registry
