// Package variate draws the random quantities of the clinic model from one
// explicitly seeded stream.
package variate

import (
	"math"
	"math/rand/v2"
)

// streamSelector picks the PCG stream. It is fixed so that a seed alone
// identifies a run.
const streamSelector = 0x9e3779b97f4a7c15

// A Source produces exponential interarrival and service samples and the
// per-patient priority draw. All draws come from the same generator, so a
// given seed reproduces an entire run.
//
// A Source is not safe for concurrent use.
type Source struct {
	seed uint64
	rng  *rand.Rand
}

// New creates a Source seeded with seed.
func New(seed uint64) *Source {
	return &Source{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, streamSelector)),
	}
}

// Seed returns the seed the Source was created with.
func (s *Source) Seed() uint64 {
	return s.seed
}

// Interarrival samples the time to the next arrival for an arrival rate
// lambda. A non-positive rate means no further arrivals ever and yields +Inf
// without consuming randomness.
func (s *Source) Interarrival(lambda float64) float64 {
	return s.exponential(lambda)
}

// Service samples a service duration for a per-server rate mu. A
// non-positive rate yields +Inf without consuming randomness; such a service
// would never finish.
func (s *Source) Service(mu float64) float64 {
	return s.exponential(mu)
}

// IsPriority reports whether a new patient is a priority patient. p is
// clamped to [0, 1]. Every call consumes exactly one uniform draw, whatever p
// is, so changing p does not shift the rest of the stream.
func (s *Source) IsPriority(p float64) bool {
	u := s.rng.Float64()

	switch {
	case math.IsNaN(p), p <= 0:
		return false
	case p >= 1:
		return true
	}

	return u < p
}

func (s *Source) exponential(rate float64) float64 {
	if !(rate > 0) {
		return math.Inf(1)
	}

	return s.rng.ExpFloat64() / rate
}
