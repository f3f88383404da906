package ops

import "math/rand"

// float64Source is satisfied by *rand.Rand and lets tests pin dropout's mask
// sequence without touching the process-wide generator.
type float64Source interface {
	Float64() float64
}

// newDropoutRand wraps the package-level math/rand source: dropout is
// specified to use the process-wide PRNG (the original uses std::rand()),
// not a seeded-per-graph one like the dataset shuffler.
func newDropoutRand() float64Source {
	return globalSource{}
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
