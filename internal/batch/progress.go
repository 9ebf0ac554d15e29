package batch

import (
	"sync"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
)

type tracker struct {
	mu       sync.Mutex
	total    int
	finished int
	fn       ProgressFunc
}

func newTracker(total int, fn ProgressFunc) *tracker {
	return &tracker{total: total, fn: fn}
}

func (t *tracker) done(outcome domain.ExtractionOutcome) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished++
	t.fn(t.finished, t.total, outcome)
}
