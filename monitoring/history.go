package monitoring

// DefaultHistoryCapacity is how many samples a History keeps by default.
const DefaultHistoryCapacity = 500

// Sample is the clinic state at one tick.
type Sample struct {
	SimTime      float64 `json:"sim_time"`
	QueueLength  int     `json:"queue_length"`
	SystemLength int     `json:"system_length"`
	Served       int     `json:"served"`
}

// History keeps the most recent samples in a ring. It is not safe for
// concurrent use; the Driver guards it.
type History struct {
	samples []Sample
	start   int
	size    int
}

// NewHistory creates a History that keeps at most capacity samples. A
// non-positive capacity falls back to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}

	return &History{samples: make([]Sample, capacity)}
}

// Add appends a sample, dropping the oldest one when full.
func (h *History) Add(s Sample) {
	idx := (h.start + h.size) % len(h.samples)
	h.samples[idx] = s

	if h.size < len(h.samples) {
		h.size++
		return
	}

	h.start = (h.start + 1) % len(h.samples)
}

// Samples returns a copy of the kept samples, oldest first.
func (h *History) Samples() []Sample {
	out := make([]Sample, h.size)
	for i := range out {
		out[i] = h.samples[(h.start+i)%len(h.samples)]
	}

	return out
}

// Len returns the number of kept samples.
func (h *History) Len() int {
	return h.size
}

// Cap returns the maximum number of kept samples.
func (h *History) Cap() int {
	return len(h.samples)
}

// Clear drops every sample.
func (h *History) Clear() {
	h.start = 0
	h.size = 0
}
