package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(KindNotFound, "post removed")
	assert.Equal(t, KindNotFound, KindOf(err))

	wrapped := fmt.Errorf("resolve failed: %w", err)
	assert.Equal(t, KindNotFound, KindOf(wrapped))

	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestRetryability(t *testing.T) {
	retryable := []Kind{KindNetwork, KindRateLimit, KindServer}
	for _, k := range retryable {
		assert.True(t, IsRetryable(New(k, "x")), "kind %s", k)
		assert.False(t, IsTerminal(New(k, "x")), "kind %s", k)
	}

	terminal := []Kind{KindNotFound, KindForbidden, KindMalformed}
	for _, k := range terminal {
		assert.False(t, IsRetryable(New(k, "x")), "kind %s", k)
		assert.True(t, IsTerminal(New(k, "x")), "kind %s", k)
	}

	// Unknown errors are neither retried nor terminal-classified.
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsTerminal(errors.New("plain")))
}

func TestKindForStatusCode(t *testing.T) {
	cases := map[int]Kind{
		0:   KindNetwork,
		404: KindNotFound,
		410: KindNotFound,
		401: KindForbidden,
		403: KindForbidden,
		429: KindRateLimit,
		500: KindServer,
		503: KindServer,
		200: KindUnknown,
	}
	for code, want := range cases {
		assert.Equal(t, want, KindForStatusCode(code), "status %d", code)
	}
}

func TestErrorString(t *testing.T) {
	err := Wrap(KindForbidden, "https://example.com/v/1", errors.New("login required"))
	assert.Contains(t, err.Error(), "forbidden")
	assert.Contains(t, err.Error(), "https://example.com/v/1")
	assert.Contains(t, err.Error(), "login required")

	var target *Error
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &target))
	assert.Equal(t, KindForbidden, target.Kind)
}
