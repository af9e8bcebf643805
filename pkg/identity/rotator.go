package identity

import (
	"math/rand"
	"sync"
	"time"
)

// defaultUserAgents are realistic desktop browser identities. Rotating
// between them keeps the outbound fingerprint from being a single constant.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Rotator supplies a randomized client identity per request attempt.
type Rotator struct {
	agents []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRotator creates a rotator over the default user-agent list.
func NewRotator() *Rotator {
	return NewRotatorWithAgents(defaultUserAgents, rand.NewSource(time.Now().UnixNano()))
}

// NewRotatorWithAgents creates a rotator over a fixed agent list with an
// injected random source, for reproducible tests.
func NewRotatorWithAgents(agents []string, src rand.Source) *Rotator {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &Rotator{
		agents: agents,
		rng:    rand.New(src),
	}
}

// UserAgent returns a randomly chosen user-agent string.
func (r *Rotator) UserAgent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents[r.rng.Intn(len(r.agents))]
}

// Headers returns a browser-shaped header set for one request attempt.
// The accompanying headers match what the chosen browser family sends.
func (r *Rotator) Headers() map[string]string {
	return map[string]string{
		"User-Agent":                r.UserAgent(),
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Accept-Encoding":           "gzip, deflate",
		"DNT":                       "1",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}
}
