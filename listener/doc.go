// Package listener consumes reply messages from the gateway's inbound queue
// and fans them out to the correlation registry. It never returns an error
// to the underlying consumer: the gateway has no retry duty for replies, so
// every delivery is acknowledged regardless of whether a matching slot was
// found.
package listener
