package identity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAgentFromConfiguredList(t *testing.T) {
	agents := []string{"agent-a", "agent-b", "agent-c"}
	r := NewRotatorWithAgents(agents, rand.NewSource(1))

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ua := r.UserAgent()
		assert.Contains(t, agents, ua)
		seen[ua] = true
	}
	assert.Len(t, seen, len(agents), "all agents get used over enough draws")
}

func TestRotationReproducibleWithSeed(t *testing.T) {
	a := NewRotatorWithAgents(nil, rand.NewSource(9))
	b := NewRotatorWithAgents(nil, rand.NewSource(9))
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.UserAgent(), b.UserAgent())
	}
}

func TestHeadersMatchChosenAgent(t *testing.T) {
	r := NewRotatorWithAgents([]string{"only-agent"}, rand.NewSource(1))
	h := r.Headers()

	require.Equal(t, "only-agent", h["User-Agent"])
	assert.NotEmpty(t, h["Accept"])
	assert.NotEmpty(t, h["Accept-Language"])
	assert.Equal(t, "keep-alive", h["Connection"])
}

func TestDefaultAgentsNonEmpty(t *testing.T) {
	r := NewRotator()
	assert.NotEmpty(t, r.UserAgent())
}
