// Package optimizer implements the gradient-accumulating update rules that
// drive training: a running loss accumulator shared by every variant, and
// per-variant parameter update logic (Adam, Fixed).
package optimizer

import "github.com/Hirogava/graphrt/pkg/graph"

// Optimizer applies accumulated gradients to a graph's trainable tensors and
// tracks a running training-loss average between zeroings.
type Optimizer interface {
	// Step applies one update to every trainable tensor in g using its
	// current (possibly multi-sample-accumulated) grad buffers.
	Step(g *graph.Graph)

	// AddError folds x into the running loss accumulator.
	AddError(x float32)

	// GetError returns the accumulated loss average, or 0 if nothing has
	// been added since the last ZeroGrads.
	GetError() float32

	// ZeroGrads resets the loss accumulator and clears g's gradient state,
	// including its AccSteps counter.
	ZeroGrads(g *graph.Graph)

	// SetGradClip bounds every per-element gradient to [-clip, clip] before
	// it is applied. A nil clip disables clipping.
	SetGradClip(clip *float32)
}

// base holds the error accumulator and gradient-clip setting shared by every
// optimizer variant.
type base struct {
	error        float32
	errorCounter int
	gradClip     *float32
}

func (b *base) AddError(x float32) {
	b.error += x
	b.errorCounter++
}

func (b *base) GetError() float32 {
	if b.errorCounter == 0 {
		return 0
	}
	return b.error / float32(b.errorCounter)
}

func (b *base) ZeroGrads(g *graph.Graph) {
	b.error = 0
	b.errorCounter = 0
	g.ResetGrad()
}

func (b *base) SetGradClip(clip *float32) {
	b.gradClip = clip
}

func (b *base) clip(g float32) float32 {
	if b.gradClip == nil {
		return g
	}
	c := *b.gradClip
	if g > c {
		return c
	}
	if g < -c {
		return -c
	}
	return g
}
