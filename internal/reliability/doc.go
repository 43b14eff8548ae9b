// Package reliability provides the gateway's publish backpressure patterns.
//
// This package implements:
//   - Circuit Breaker: prevents cascading failures when the broker is down
//     or slow to accept publishes
//   - Retry Policies: configurable retry strategies (exponential backoff,
//     linear, fixed) for the bridge's publish attempts
//
// Key features:
//   - Thread-safe implementations suitable for concurrent use
//   - Configurable thresholds and timeouts
//   - Support for custom error classification (retryable vs non-retryable)
//
// Example usage:
//
//	// Create a circuit breaker
//	cb := NewCircuitBreaker(
//	    WithFailureThreshold(5),
//	    WithSuccessThreshold(3),
//	    WithTimeout(30 * time.Second),
//	)
//
//	// Use it to protect a function
//	err := cb.Execute(ctx, func() error {
//	    return riskyOperation()
//	})
package reliability