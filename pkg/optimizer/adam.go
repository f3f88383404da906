package optimizer

import (
	"math"

	"github.com/Hirogava/graphrt/pkg/graph"
)

// Adam is the Adaptive Moment Estimation update rule: it keeps a
// bias-corrected exponential moving average of the gradient (first moment)
// and of its square (second moment), keyed by trainable tensor id.
type Adam struct {
	base

	LearningRate float32
	Beta1        float32
	Beta2        float32
	Eps          float32

	m map[int][]float32
	v map[int][]float32

	step int // step number used for bias correction; starts at 1
}

// NewAdam builds an Adam optimizer with the given hyperparameters.
func NewAdam(lr, beta1, beta2, eps float32) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        beta1,
		Beta2:        beta2,
		Eps:          eps,
		m:            make(map[int][]float32),
		v:            make(map[int][]float32),
		step:         1,
	}
}

// Step updates every trainable tensor in g in place, averaging its
// accumulated gradient over g.AccSteps samples first.
func (a *Adam) Step(g *graph.Graph) {
	n := g.AccSteps
	if n < 1 {
		n = 1
	}

	beta1PowT := float32(math.Pow(float64(a.Beta1), float64(a.step)))
	beta2PowT := float32(math.Pow(float64(a.Beta2), float64(a.step)))

	for _, id := range g.Trainable {
		t := g.Tensors[id]

		mVec, ok := a.m[id]
		if !ok || len(mVec) < len(t.Data) {
			mVec = make([]float32, len(t.Data))
			a.m[id] = mVec
		}
		vVec, ok := a.v[id]
		if !ok || len(vVec) < len(t.Data) {
			vVec = make([]float32, len(t.Data))
			a.v[id] = vVec
		}

		for i := range t.Data {
			grad := a.clip(t.Grad[i] / float32(n))

			mt := a.Beta1*mVec[i] + (1-a.Beta1)*grad
			vt := a.Beta2*vVec[i] + (1-a.Beta2)*grad*grad
			mVec[i] = mt
			vVec[i] = vt

			mHat := mt / (1 - beta1PowT)
			vHat := vt / (1 - beta2PowT)

			t.Data[i] -= a.LearningRate * (mHat / (float32(math.Sqrt(float64(vHat))) + a.Eps))
		}
	}

	a.step++
}
