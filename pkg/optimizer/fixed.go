package optimizer

import "github.com/Hirogava/graphrt/pkg/graph"

// Fixed is a no-op optimizer: it tracks error and grad-clip state like any
// other Optimizer but never touches a trainable tensor's data. Useful for
// inspecting gradients produced by a graph without letting them move the
// parameters — mirrors the reference runtime's Fixed stub.
type Fixed struct {
	base
}

// NewFixed builds a Fixed optimizer.
func NewFixed() *Fixed {
	return &Fixed{}
}

// Step intentionally does nothing.
func (f *Fixed) Step(g *graph.Graph) {}
