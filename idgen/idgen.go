// Package idgen hands out patient identifiers.
package idgen

// ID is a unique identifier represented as a uint64. The zero ID is never
// issued and can be used to mean "nobody".
type ID uint64

// Generator produces unique identifiers.
type Generator interface {
	// Generate issues the next identifier.
	Generate() ID

	// Last returns the most recently issued identifier, or 0 if none has been
	// issued yet. Because identifiers are dense, it is also the number of
	// identifiers issued so far.
	Last() ID
}

// New returns a sequential generator whose first emitted ID is 1.
//
// The generator is not safe for concurrent use; each simulation run owns one.
func New() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	last ID
}

func (g *sequentialGenerator) Generate() ID {
	g.last++
	return g.last
}

func (g *sequentialGenerator) Last() ID {
	return g.last
}
