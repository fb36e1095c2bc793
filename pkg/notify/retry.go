package notify

import (
	"math"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.BackoffMultiplier <= 1.0 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	return c
}

// Delay returns the wait before retry number attempt (1-based)
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return c.InitialDelay
	}
	delay := float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(delay)
}
