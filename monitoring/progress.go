package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how many simulated hours of a bounded run are done.
type ProgressBar struct {
	sync.Mutex `json:"-"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     float64   `json:"total"`
	Finished  float64   `json:"finished"`
}

// SetFinished records the progress, capped at Total.
func (b *ProgressBar) SetFinished(hours float64) {
	b.Lock()
	defer b.Unlock()

	b.Finished = min(hours, b.Total)
}

// Done reports whether the bar is full.
func (b *ProgressBar) Done() bool {
	b.Lock()
	defer b.Unlock()

	return b.Finished >= b.Total
}

// Reset empties the bar and restarts its clock.
func (b *ProgressBar) Reset() {
	b.Lock()
	defer b.Unlock()

	b.Finished = 0
	b.StartTime = time.Now()
}
