// Package metrics accumulates simple running statistics over a graph's
// predictions during validation — accuracy for classification-shaped
// outputs, mean absolute error for regression-shaped ones.
package metrics

import (
	"math"
	"sync"

	"github.com/Hirogava/graphrt/pkg/tensor"
)

// Accuracy accumulates a running fraction of label matches across calls to
// Update, safe for concurrent use.
type Accuracy struct {
	mu      sync.Mutex
	correct int64
	total   int64
}

// NewAccuracy builds an empty Accuracy accumulator.
func NewAccuracy() *Accuracy { return &Accuracy{} }

// Update records whether predicted matches actual.
func (a *Accuracy) Update(predicted, actual int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if predicted == actual {
		a.correct++
	}
	a.total++
}

// Value returns correct/total, or 0 if nothing has been recorded.
func (a *Accuracy) Value() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.total == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.total)
}

// Reset zeroes the accumulator.
func (a *Accuracy) Reset() {
	a.mu.Lock()
	a.correct, a.total = 0, 0
	a.mu.Unlock()
}

// MAE accumulates the running mean absolute error between predicted and
// target vectors, element-wise.
type MAE struct {
	mu    sync.Mutex
	sum   float64
	count int64
}

// NewMAE builds an empty MAE accumulator.
func NewMAE() *MAE { return &MAE{} }

// Update folds one (predicted, target) pair into the running mean. The two
// slices must be the same length.
func (m *MAE) Update(predicted, target []tensor.Scalar) {
	var s float64
	for i := range predicted {
		s += math.Abs(float64(predicted[i] - target[i]))
	}
	m.mu.Lock()
	m.sum += s
	m.count += int64(len(predicted))
	m.mu.Unlock()
}

// Value returns the running mean absolute error, or 0 if nothing has been
// recorded.
func (m *MAE) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Reset zeroes the accumulator.
func (m *MAE) Reset() {
	m.mu.Lock()
	m.sum, m.count = 0, 0
	m.mu.Unlock()
}
