// Package erlang computes the steady-state M/M/c (Erlang-C) metrics in closed
// form.
//
// Every metric is nullable. A nil field means the quantity does not exist for
// the given configuration: the inputs are invalid, or the system is loaded at
// or beyond capacity and has no steady state.
package erlang

import "math"

const (
	rescaleAbove = 1e250
	rescaleBy    = 1e-250
)

// Metrics are the steady-state performance measures of an M/M/c queue.
type Metrics struct {
	// Rho is the traffic intensity λ/(cμ).
	Rho *float64 `json:"rho" yaml:"rho"`

	// P0 is the probability that the system is empty.
	P0 *float64 `json:"p0" yaml:"p0"`

	// Pw is the probability that an arrival finds every server busy.
	Pw *float64 `json:"pw" yaml:"pw"`

	// Lq is the mean number of patients waiting.
	Lq *float64 `json:"lq" yaml:"lq"`

	// Wq is the mean time spent waiting.
	Wq *float64 `json:"wq" yaml:"wq"`

	// W is the mean time spent in the system.
	W *float64 `json:"w" yaml:"w"`

	// L is the mean number of patients in the system.
	L *float64 `json:"l" yaml:"l"`
}

// Stable reports whether the metrics describe a steady state.
func (m Metrics) Stable() bool {
	return m.P0 != nil
}

// C returns the Erlang-C metrics for arrival rate lambda, per-server service
// rate mu and c servers.
//
// Inputs are validated in order: c must be positive, mu finite and positive,
// lambda finite and non-negative. A violation yields all-nil metrics. When
// lambda/(c·mu) >= 1 only Rho is set.
func C(lambda, mu float64, c int) Metrics {
	if c < 1 {
		return Metrics{}
	}

	if !isFinite(mu) || mu <= 0 {
		return Metrics{}
	}

	if !isFinite(lambda) || lambda < 0 {
		return Metrics{}
	}

	if lambda == 0 {
		return Metrics{
			Rho: value(0),
			P0:  value(1),
			Pw:  value(0),
			Lq:  value(0),
			Wq:  value(0),
			W:   value(1 / mu),
			L:   value(0),
		}
	}

	capacity := float64(c) * mu
	rho := lambda / capacity
	if rho >= 1 {
		return Metrics{Rho: value(rho)}
	}

	a := lambda / mu

	// The Erlang terms a^n/n! are accumulated by recurrence. Evaluating the
	// powers and factorials separately overflows long before the ratio does.
	// For very large offered loads even the recurrence would overflow, so the
	// running sum is rescaled; Pw is a ratio and does not notice.
	term := 1.0
	partialSum := term
	rescaled := 0
	for n := 1; n < c; n++ {
		term *= a / float64(n)
		partialSum += term

		if partialSum > rescaleAbove {
			term *= rescaleBy
			partialSum *= rescaleBy
			rescaled++
		}
	}

	termC := term * a / float64(c)
	tail := capacity / (capacity - lambda)
	denominator := partialSum + termC*tail

	p0 := 1 / denominator
	for i := 0; i < rescaled; i++ {
		p0 *= rescaleBy
	}

	pw := termC * tail / denominator
	lq := pw * rho / (1 - rho)
	wq := lq / lambda
	w := wq + 1/mu
	l := lambda * w

	return Metrics{
		Rho: value(rho),
		P0:  value(p0),
		Pw:  value(pw),
		Lq:  value(lq),
		Wq:  value(wq),
		W:   value(w),
		L:   value(l),
	}
}

// OfferedLoad returns a = λ/μ, or nil when μ is not positive or either rate
// is not finite.
func OfferedLoad(lambda, mu float64) *float64 {
	if !isFinite(lambda) || !isFinite(mu) || mu <= 0 {
		return nil
	}

	return value(lambda / mu)
}

// Utilization returns ρ = λ/(cμ) without any stability or sign checks on
// lambda. It is nil when c or μ is not positive.
func Utilization(lambda, mu float64, c int) *float64 {
	if c < 1 || !(mu > 0) {
		return nil
	}

	return value(lambda / (float64(c) * mu))
}

func value(v float64) *float64 {
	return &v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
