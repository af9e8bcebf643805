package scheduler

import "sync"

// Summary is the final accounting of a run. Every non-cancelled item lands
// in exactly one counter.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Total returns the number of items accounted for.
func (s Summary) Total() int {
	return s.Downloaded + s.Skipped + s.Failed
}

// tally accumulates item outcomes from concurrent workers.
type tally struct {
	mu sync.Mutex
	s  Summary
}

func (t *tally) record(o taskOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch o.status {
	case statusDownloaded:
		t.s.Downloaded++
	case statusSkipped:
		t.s.Skipped++
	case statusFailed:
		t.s.Failed++
	}
	// Cancelled items were never worked on and stay uncounted.
}

func (t *tally) snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}
