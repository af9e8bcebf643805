package ratelimit

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Pacer computes the inter-download delay each task sleeps before
// contacting the extraction engine, plus an optional byte-rate cap that is
// passed through to the engine. Each worker paces itself independently.
type Pacer interface {
	// NextDelay returns the delay before the next download.
	NextDelay() time.Duration
	// ThrottleRate returns the transfer cap in bytes/second, 0 for none.
	ThrottleRate() int64
}

// DelayPacer draws delays from a configured policy: an explicit [min,max]
// range when both bounds are set, otherwise base ±50% jitter floored at
// zero. A disabled pacer returns zero everywhere.
type DelayPacer struct {
	base     time.Duration
	min      time.Duration
	max      time.Duration
	throttle int64
	disabled bool

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a DelayPacer.
type Option func(*DelayPacer)

// WithRange sets an explicit delay range, overriding base-delay jitter.
func WithRange(min, max time.Duration) Option {
	return func(p *DelayPacer) {
		p.min = min
		p.max = max
	}
}

// WithThrottleRate sets the byte-rate cap handed to the extraction engine.
func WithThrottleRate(bytesPerSecond int64) Option {
	return func(p *DelayPacer) {
		p.throttle = bytesPerSecond
	}
}

// WithSource injects the random source, for reproducible tests.
func WithSource(src rand.Source) Option {
	return func(p *DelayPacer) {
		p.rng = rand.New(src)
	}
}

// Disabled turns off all pacing and throttling. Callers are expected to
// warn the user once at configuration time.
func Disabled() Option {
	return func(p *DelayPacer) {
		p.disabled = true
	}
}

// NewDelayPacer creates a pacer around a base delay.
func NewDelayPacer(base time.Duration, opts ...Option) *DelayPacer {
	p := &DelayPacer{
		base: base,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NextDelay draws the next inter-download delay.
func (p *DelayPacer) NextDelay() time.Duration {
	if p.disabled {
		return 0
	}

	min, max := p.min, p.max
	if min <= 0 || max <= 0 {
		// Base delay with ±50% uniform jitter.
		min = p.base / 2
		max = p.base + p.base/2
	}
	if max <= min {
		return min
	}

	p.mu.Lock()
	d := min + time.Duration(p.rng.Int63n(int64(max-min)+1))
	p.mu.Unlock()

	if d < 0 {
		d = 0
	}
	return d
}

// ThrottleRate returns the configured transfer cap, 0 when disabled or unset.
func (p *DelayPacer) ThrottleRate() int64 {
	if p.disabled {
		return 0
	}
	return p.throttle
}

// ParseRate parses a throttle rate like "500K", "1M" or "4194304" into
// bytes per second.
func ParseRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(strings.ToUpper(s), "K"):
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(s), "M"):
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(s), "G"):
		multiplier = 1 << 30
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid throttle rate %q", s)
	}
	return int64(n * float64(multiplier)), nil
}
