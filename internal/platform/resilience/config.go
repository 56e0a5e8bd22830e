package resilience

import "time"

// CircuitBreakerConfig tunes the breaker in front of one upstream. Zero numeric
// fields take the values from DefaultCircuitBreakerConfig.
type CircuitBreakerConfig struct {
	Enabled bool
	// FailureThreshold is the run of consecutive counted failures that opens the circuit.
	FailureThreshold int
	OpenTimeout      time.Duration
	// HalfOpenMaxReq trial requests are let through before the circuit closes again.
	HalfOpenMaxReq int
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		OpenTimeout:      15 * time.Second,
		HalfOpenMaxReq:   2,
	}
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	defaults := DefaultCircuitBreakerConfig()
	c.FailureThreshold = positiveOr(c.FailureThreshold, defaults.FailureThreshold)
	c.HalfOpenMaxReq = positiveOr(c.HalfOpenMaxReq, defaults.HalfOpenMaxReq)
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = defaults.OpenTimeout
	}
	return c
}

func positiveOr(value, fallback int) int {
	if value < 1 {
		return fallback
	}
	return value
}
