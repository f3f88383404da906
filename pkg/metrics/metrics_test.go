package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Hirogava/graphrt/pkg/tensor"
)

func TestAccuracyTracksRunningFraction(t *testing.T) {
	a := NewAccuracy()
	a.Update(1, 1)
	a.Update(0, 1)
	a.Update(1, 1)

	assert.InDelta(t, 2.0/3.0, a.Value(), 1e-9)
}

func TestAccuracyResetClearsState(t *testing.T) {
	a := NewAccuracy()
	a.Update(1, 1)
	a.Reset()
	assert.Equal(t, 0.0, a.Value())
}

func TestMAEAccumulatesAcrossUpdates(t *testing.T) {
	m := NewMAE()
	m.Update([]tensor.Scalar{1, 2}, []tensor.Scalar{0, 0})
	m.Update([]tensor.Scalar{4}, []tensor.Scalar{0})

	assert.InDelta(t, (1.0+2.0+4.0)/3.0, m.Value(), 1e-6)
}
