package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct(t *testing.T) {
	assert.Equal(t, 1, Product(nil))
	assert.Equal(t, 4, Product([]int{4}))
	assert.Equal(t, 12, Product([]int{3, 4}))
}

func TestNewAllocatesMatchingBuffers(t *testing.T) {
	tn := New(2, []int{3, 4}, Param, "W")
	require.Len(t, tn.Data, 12)
	require.Len(t, tn.Grad, 12)
	assert.Equal(t, Param, tn.Kind)
	assert.True(t, tn.IsBatched())
	assert.Equal(t, 3, tn.Rows())
	assert.Equal(t, 4, tn.Cols())
}

func TestZeroGrad(t *testing.T) {
	tn := New(0, []int{2}, Param, "")
	tn.Grad[0] = 1.5
	tn.Grad[1] = -2
	tn.ZeroGrad()
	assert.Equal(t, []Scalar{0, 0}, tn.Grad)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "#3", (&Tensor{ID: 3}).Label())
	assert.Equal(t, "w1(#3)", (&Tensor{ID: 3, Name: "w1"}).Label())
}
