// Package report tabulates the closed-form M/M/c metrics over ranges of
// parameters.
package report

import "github.com/sarchlab/clinicsim/erlang"

// Row is one stable configuration and its metrics.
type Row struct {
	Lambda  float64        `json:"lambda" yaml:"lambda"`
	Mu      float64        `json:"mu" yaml:"mu"`
	Servers int            `json:"servers" yaml:"servers"`
	Metrics erlang.Metrics `json:"metrics" yaml:"metrics"`
}

// Grid holds the waiting probability for every (server count, λ) pair.
// Pw[i][j] belongs to Servers[i] and Lambdas[j] and is nil where the system
// has no steady state.
type Grid struct {
	Mu      float64      `json:"mu" yaml:"mu"`
	Servers []int        `json:"servers" yaml:"servers"`
	Lambdas []float64    `json:"lambdas" yaml:"lambdas"`
	Pw      [][]*float64 `json:"pw" yaml:"pw"`
}

// LambdaSweep evaluates every λ for fixed μ and c. Unstable points are left
// out.
func LambdaSweep(mu float64, c int, lambdas []float64) []Row {
	rows := make([]Row, 0, len(lambdas))

	for _, lambda := range lambdas {
		rows = appendStable(rows, lambda, mu, c)
	}

	return rows
}

// MuSweep evaluates every μ for fixed λ and c. Unstable points are left out.
func MuSweep(lambda float64, c int, mus []float64) []Row {
	rows := make([]Row, 0, len(mus))

	for _, mu := range mus {
		rows = appendStable(rows, lambda, mu, c)
	}

	return rows
}

// ServerSweep evaluates every server count for fixed λ and μ. Unstable
// points are left out.
func ServerSweep(lambda, mu float64, cs []int) []Row {
	rows := make([]Row, 0, len(cs))

	for _, c := range cs {
		rows = appendStable(rows, lambda, mu, c)
	}

	return rows
}

// WaitProbabilityGrid evaluates Pw over every server count and λ.
func WaitProbabilityGrid(mu float64, cs []int, lambdas []float64) Grid {
	g := Grid{
		Mu:      mu,
		Servers: append([]int(nil), cs...),
		Lambdas: append([]float64(nil), lambdas...),
		Pw:      make([][]*float64, len(cs)),
	}

	for i, c := range cs {
		g.Pw[i] = make([]*float64, len(lambdas))
		for j, lambda := range lambdas {
			g.Pw[i][j] = erlang.C(lambda, mu, c).Pw
		}
	}

	return g
}

// Linspace returns n evenly spaced values from a to b inclusive.
func Linspace(a, b float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{a}
	}

	values := make([]float64, n)
	step := (b - a) / float64(n-1)

	for i := range values {
		values[i] = a + float64(i)*step
	}

	values[n-1] = b

	return values
}

func appendStable(rows []Row, lambda, mu float64, c int) []Row {
	m := erlang.C(lambda, mu, c)
	if !m.Stable() {
		return rows
	}

	return append(rows, Row{Lambda: lambda, Mu: mu, Servers: c, Metrics: m})
}
