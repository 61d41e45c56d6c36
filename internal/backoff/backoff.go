// Package backoff provides delay strategies for retrying transient failures
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Strategy defines the backoff strategy interface
type Strategy interface {
	// NextDelay calculates the delay for the given retry attempt, starting at 1
	NextDelay(attempt int) time.Duration

	// Reset resets the backoff state
	Reset()
}

// Fixed implements a fixed delay strategy
type Fixed struct {
	delay  time.Duration
	jitter JitterFunc
}

// NewFixed creates a fixed backoff strategy
func NewFixed(delay time.Duration, opts ...Option) *Fixed {
	b := &Fixed{
		delay: delay,
	}

	for _, opt := range opts {
		opt.applyToFixed(b)
	}

	return b
}

// NextDelay calculates the delay for the next retry
func (b *Fixed) NextDelay(attempt int) time.Duration {
	delay := b.delay
	if b.jitter != nil {
		delay = b.jitter(delay)
	}
	return delay
}

// Reset resets the backoff state
func (b *Fixed) Reset() {
	// fixed backoff is stateless, no reset needed
}

// Exponential implements an exponential backoff strategy
type Exponential struct {
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
	jitter       JitterFunc
}

// NewExponential creates an exponential backoff strategy
func NewExponential(initialDelay time.Duration, opts ...Option) *Exponential {
	b := &Exponential{
		initialDelay: initialDelay,
		multiplier:   2.0,
		maxDelay:     30 * time.Second,
	}

	for _, opt := range opts {
		opt.applyToExponential(b)
	}

	return b
}

// NextDelay calculates the delay for the next retry
func (b *Exponential) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	// calculate exponential backoff delay
	delay := time.Duration(float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt-1)))

	// limit maximum delay
	if delay > b.maxDelay || delay <= 0 {
		delay = b.maxDelay
	}

	// apply jitter
	if b.jitter != nil {
		delay = b.jitter(delay)
	}

	return delay
}

// Reset resets the backoff state
func (b *Exponential) Reset() {
	// exponential backoff is stateless, no reset needed
}

// JitterFunc jitter function type
type JitterFunc func(time.Duration) time.Duration

// FullJitter full jitter function, random within the [0, delay) range
func FullJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(delay)))
}

// EqualJitter equal jitter function, delay/2 + random(0, delay/2)
func EqualJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	half := delay / 2
	if half == 0 {
		return delay
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}

// Option backoff strategy configuration option
type Option interface {
	applyToFixed(*Fixed)
	applyToExponential(*Exponential)
}

type option struct {
	multiplier *float64
	maxDelay   *time.Duration
	jitter     JitterFunc
}

func (o *option) applyToFixed(b *Fixed) {
	if o.jitter != nil {
		b.jitter = o.jitter
	}
}

func (o *option) applyToExponential(b *Exponential) {
	if o.multiplier != nil {
		b.multiplier = *o.multiplier
	}
	if o.maxDelay != nil {
		b.maxDelay = *o.maxDelay
	}
	if o.jitter != nil {
		b.jitter = o.jitter
	}
}

// WithMultiplier sets the growth multiplier (exponential backoff only)
func WithMultiplier(multiplier float64) Option {
	return &option{multiplier: &multiplier}
}

// WithMaxDelay sets the maximum delay time
func WithMaxDelay(maxDelay time.Duration) Option {
	return &option{maxDelay: &maxDelay}
}

// WithJitter sets the jitter function
func WithJitter(jitter JitterFunc) Option {
	return &option{jitter: jitter}
}
