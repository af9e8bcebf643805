package ratelimit

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDelayJitterBounds(t *testing.T) {
	p := NewDelayPacer(2*time.Second, WithSource(rand.NewSource(1)))

	for i := 0; i < 200; i++ {
		d := p.NextDelay()
		assert.GreaterOrEqual(t, d, time.Second, "lower jitter bound is base/2")
		assert.LessOrEqual(t, d, 3*time.Second, "upper jitter bound is base*1.5")
	}
}

func TestNextDelayExplicitRange(t *testing.T) {
	min, max := 500*time.Millisecond, 1500*time.Millisecond
	p := NewDelayPacer(2*time.Second, WithRange(min, max), WithSource(rand.NewSource(7)))

	for i := 0; i < 200; i++ {
		d := p.NextDelay()
		assert.GreaterOrEqual(t, d, min)
		assert.LessOrEqual(t, d, max)
	}
}

func TestNextDelayReproducibleWithSeed(t *testing.T) {
	a := NewDelayPacer(2*time.Second, WithSource(rand.NewSource(42)))
	b := NewDelayPacer(2*time.Second, WithSource(rand.NewSource(42)))
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.NextDelay(), b.NextDelay())
	}
}

func TestDisabledPacer(t *testing.T) {
	p := NewDelayPacer(2*time.Second, WithThrottleRate(1<<20), Disabled())
	for i := 0; i < 50; i++ {
		assert.Equal(t, time.Duration(0), p.NextDelay())
	}
	assert.Equal(t, int64(0), p.ThrottleRate(), "disabling also drops the throttle")
}

func TestThrottlePassthrough(t *testing.T) {
	p := NewDelayPacer(time.Second, WithThrottleRate(512000))
	assert.Equal(t, int64(512000), p.ThrottleRate())

	assert.Equal(t, int64(0), NewDelayPacer(time.Second).ThrottleRate())
}

func TestParseRate(t *testing.T) {
	cases := map[string]int64{
		"":        0,
		"500K":    500 << 10,
		"1M":      1 << 20,
		"2m":      2 << 20,
		"1G":      1 << 30,
		"4096":    4096,
		" 750K ":  750 << 10,
		"1.5M":    3 << 19,
	}
	for in, want := range cases {
		got, err := ParseRate(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	for _, in := range []string{"fast", "-1M", "K"} {
		_, err := ParseRate(in)
		assert.Error(t, err, "input %q", in)
	}
}
