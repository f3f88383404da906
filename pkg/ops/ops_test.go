package ops

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hirogava/graphrt/pkg/tensor"
)

func scalarTensor(id int, shape []int, kind tensor.Kind, data []tensor.Scalar) *tensor.Tensor {
	t := tensor.New(id, shape, kind, "")
	copy(t.Data, data)
	return t
}

// scenario 1: matmul (vector), spec.md §8.
func TestMatMulVectorScenario(t *testing.T) {
	a := scalarTensor(0, []int{2, 2}, tensor.Param, []tensor.Scalar{1, 2, 3, 4})
	b := scalarTensor(1, []int{2}, tensor.Input, []tensor.Scalar{5, 6})
	c := tensor.New(2, nil, tensor.Intermediate, "")
	arena := []*tensor.Tensor{a, b, c}

	require.NoError(t, Forward(MatMul, arena, []int{0, 1}, 2))
	assert.Equal(t, []tensor.Scalar{17, 39}, c.Data)

	c.Grad = []tensor.Scalar{1, 1}
	require.NoError(t, Backward(MatMul, arena, []int{0, 1}, 2))
	assert.Equal(t, []tensor.Scalar{5, 6, 5, 6}, a.Grad)
	assert.Equal(t, []tensor.Scalar{4, 6}, b.Grad)
}

// scenario 2: softmax_ce_logits_label_int, spec.md §8.
func TestSoftmaxCELogitsLabelIntScenario(t *testing.T) {
	logits := scalarTensor(0, []int{1, 3}, tensor.Intermediate, []tensor.Scalar{2, 1, 0.1})
	label := scalarTensor(1, []int{1}, tensor.Target, []tensor.Scalar{0})
	out := tensor.New(2, nil, tensor.Intermediate, "")
	arena := []*tensor.Tensor{logits, label, out}

	require.NoError(t, Forward(SoftmaxCELogitsLabelInt, arena, []int{0, 1}, 2))
	assert.InDelta(t, 0.4170, float64(out.Data[0]), 1e-3)

	out.Grad = []tensor.Scalar{1}
	Backward(SoftmaxCELogitsLabelInt, arena, []int{0, 1}, 2)

	p := softmaxOf(t, []float64{2, 1, 0.1})
	assert.InDelta(t, p[0]-1, float64(logits.Grad[0]), 1e-4)
	assert.InDelta(t, p[1], float64(logits.Grad[1]), 1e-4)
	assert.InDelta(t, p[2], float64(logits.Grad[2]), 1e-4)
}

func softmaxOf(t *testing.T, xs []float64) []float64 {
	t.Helper()
	max := xs[0]
	for _, v := range xs {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// scenario 6: ReLU backward at the zero boundary, spec.md §8.
func TestReLUBackwardBoundary(t *testing.T) {
	x := scalarTensor(0, []int{3}, tensor.Intermediate, []tensor.Scalar{-1, 0, 2})
	y := tensor.New(1, []int{3}, tensor.Intermediate, "")
	arena := []*tensor.Tensor{x, y}

	require.NoError(t, Forward(ReLU, arena, []int{0}, 1))
	y.Grad = []tensor.Scalar{1, 1, 1}
	require.NoError(t, Backward(ReLU, arena, []int{0}, 1))
	assert.Equal(t, []tensor.Scalar{0, 0, 1}, x.Grad)
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	x := scalarTensor(0, []int{2, 3}, tensor.Intermediate, []tensor.Scalar{1, 2, 3, -1, 0, 5})
	y := tensor.New(1, []int{2, 3}, tensor.Intermediate, "")
	arena := []*tensor.Tensor{x, y}
	require.NoError(t, Forward(Softmax, arena, []int{0}, 1))

	for r := 0; r < 2; r++ {
		row := rowOf(y.Data, r, 3)
		var sum float64
		for _, v := range row {
			sum += float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
}

func TestBackwardAccumulatesAcrossRepeatedCalls(t *testing.T) {
	a := scalarTensor(0, []int{2}, tensor.Param, []tensor.Scalar{1, 2})
	b := scalarTensor(1, []int{2}, tensor.Param, []tensor.Scalar{3, 4})
	c := tensor.New(2, []int{2}, tensor.Intermediate, "")
	arena := []*tensor.Tensor{a, b, c}

	require.NoError(t, Forward(Add, arena, []int{0, 1}, 2))
	c.Grad = []tensor.Scalar{1, 1}
	require.NoError(t, Backward(Add, arena, []int{0, 1}, 2))
	require.NoError(t, Backward(Add, arena, []int{0, 1}, 2))

	assert.Equal(t, []tensor.Scalar{2, 2}, a.Grad)
	assert.Equal(t, []tensor.Scalar{2, 2}, b.Grad)
}

func TestAddBroadcastRowWise(t *testing.T) {
	a := scalarTensor(0, []int{2, 2}, tensor.Intermediate, []tensor.Scalar{1, 2, 3, 4})
	b := scalarTensor(1, []int{2}, tensor.Param, []tensor.Scalar{10, 20})
	c := tensor.New(2, nil, tensor.Intermediate, "")
	arena := []*tensor.Tensor{a, b, c}

	require.NoError(t, Forward(Add, arena, []int{0, 1}, 2))
	assert.Equal(t, []tensor.Scalar{11, 22, 13, 24}, c.Data)

	c.Grad = []tensor.Scalar{1, 1, 1, 1}
	require.NoError(t, Backward(Add, arena, []int{0, 1}, 2))
	assert.Equal(t, []tensor.Scalar{2, 2}, b.Grad)
}

func TestMSEUnbatchedScalar(t *testing.T) {
	x := scalarTensor(0, nil, tensor.Intermediate, []tensor.Scalar{2})
	y := tensor.New(1, nil, tensor.Intermediate, "")
	arena := []*tensor.Tensor{x, y}
	require.NoError(t, Forward(MSE, arena, []int{0}, 1))
	assert.InDelta(t, 4.0, float64(y.Data[0]), 1e-6)
}

func TestUnknownOpRejected(t *testing.T) {
	_, err := Parse("not-a-real-op")
	assert.Error(t, err)
}

func TestDotProduct(t *testing.T) {
	a := scalarTensor(0, []int{3}, tensor.Param, []tensor.Scalar{1, 2, 3})
	b := scalarTensor(1, []int{3}, tensor.Param, []tensor.Scalar{4, 5, 6})
	c := tensor.New(2, nil, tensor.Intermediate, "")
	arena := []*tensor.Tensor{a, b, c}
	require.NoError(t, Forward(Dot, arena, []int{0, 1}, 2))
	assert.InDelta(t, 32, float64(c.Data[0]), 1e-6)

	c.Grad = []tensor.Scalar{2}
	Backward(Dot, arena, []int{0, 1}, 2)
	assert.Equal(t, []tensor.Scalar{8, 10, 12}, a.Grad)
	assert.Equal(t, []tensor.Scalar{2, 4, 6}, b.Grad)
}
