package middleware

import "sync"

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 3
)

// CircuitBreaker counts consecutive limiter errors. It opens after
// failureThreshold failures, routing checks to the fallback, and closes again
// after successThreshold consecutive successful probes of the primary.
type CircuitBreaker struct {
	mu               sync.Mutex
	open             bool
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
}

func newCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
	}
}

func (c *CircuitBreaker) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// RecordFailure reports whether the circuit is open afterwards.
func (c *CircuitBreaker) RecordFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	c.successCount = 0
	if c.failureCount >= c.failureThreshold {
		c.open = true
	}
	return c.open
}

// RecordSuccess reports whether the circuit is closed afterwards.
func (c *CircuitBreaker) RecordSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		c.failureCount = 0
		return true
	}
	c.successCount++
	if c.successCount >= c.successThreshold {
		c.open = false
		c.failureCount = 0
		c.successCount = 0
		return true
	}
	return false
}
