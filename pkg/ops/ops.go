package ops

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/Hirogava/graphrt/pkg/rterrors"
	"github.com/Hirogava/graphrt/pkg/tensor"
)

const eps = 1e-12
const lreluAlpha = 0.01
const dropKeepProb = 0.5
const dropScale = 1.0 / dropKeepProb

// rng is the package-level PRNG used by Dropout. It is swappable in tests so
// a mask sequence can be pinned; the training binary never reseeds it, so
// dropout behaves like the original's process-wide std::rand().
var rng = newDropoutRand()

// Forward executes op k in place, reading arena[inputs[i]] and writing
// arena[output]. Every input/output id is assumed already validated against
// the dense tensor array by the graph loader.
func Forward(k Kind, arena []*tensor.Tensor, inputs []int, output int) error {
	out := arena[output]
	switch k {
	case MatMul:
		return fwdMatMul(arena[inputs[0]], arena[inputs[1]], out)
	case Add:
		return fwdAdd(arena[inputs[0]], arena[inputs[1]], out)
	case Sub:
		return fwdSub(arena[inputs[0]], arena[inputs[1]], out)
	case Dot:
		return fwdDot(arena[inputs[0]], arena[inputs[1]], out)
	case Dropout:
		fwdDropout(arena[inputs[0]], out)
		return nil
	case Sigmoid:
		fwdSigmoid(arena[inputs[0]], out)
		return nil
	case ReLU:
		fwdReLU(arena[inputs[0]], out)
		return nil
	case LReLU:
		fwdLReLU(arena[inputs[0]], out)
		return nil
	case MSE:
		fwdMSE(arena[inputs[0]], out)
		return nil
	case MAE:
		fwdMAE(arena[inputs[0]], out)
		return nil
	case Mean:
		fwdMean(arena[inputs[0]], out)
		return nil
	case Softmax:
		fwdSoftmax(arena[inputs[0]], out)
		return nil
	case CE:
		return fwdCE(arena[inputs[0]], arena[inputs[1]], out)
	case SoftmaxCELogits:
		return fwdCELogits(arena[inputs[0]], arena[inputs[1]], out)
	case SoftmaxCELogitsLabelInt:
		return fwdCELogitsLabelInt(arena[inputs[0]], arena[inputs[1]], out)
	default:
		return rterrors.NewUnknownOpError(k.String())
	}
}

// Backward accumulates op k's gradient contribution: it reads arena[output]'s
// grad (already populated by later ops or the loss seed) and adds into
// arena[inputs[i]]'s grad. It never overwrites an input's grad.
func Backward(k Kind, arena []*tensor.Tensor, inputs []int, output int) error {
	out := arena[output]
	switch k {
	case MatMul:
		return bwdMatMul(arena[inputs[0]], arena[inputs[1]], out)
	case Add:
		return bwdAdd(arena[inputs[0]], arena[inputs[1]], out)
	case Sub:
		return bwdSub(arena[inputs[0]], arena[inputs[1]], out)
	case Dot:
		bwdDot(arena[inputs[0]], arena[inputs[1]], out)
		return nil
	case Dropout:
		bwdDropout(arena[inputs[0]], out)
		return nil
	case Sigmoid:
		bwdSigmoid(arena[inputs[0]], out)
		return nil
	case ReLU:
		bwdReLU(arena[inputs[0]], out)
		return nil
	case LReLU:
		bwdLReLU(arena[inputs[0]], out)
		return nil
	case MSE:
		bwdMSE(arena[inputs[0]], out)
		return nil
	case MAE:
		bwdMAE(arena[inputs[0]], out)
		return nil
	case Mean:
		bwdMean(arena[inputs[0]], out)
		return nil
	case Softmax:
		bwdSoftmax(arena[inputs[0]], out)
		return nil
	case CE:
		bwdCE(arena[inputs[0]], arena[inputs[1]], out)
		return nil
	case SoftmaxCELogits:
		bwdCELogits(arena[inputs[0]], arena[inputs[1]], out)
		return nil
	case SoftmaxCELogitsLabelInt:
		bwdCELogitsLabelInt(arena[inputs[0]], arena[inputs[1]], out)
		return nil
	default:
		return rterrors.NewUnknownOpError(k.String())
	}
}

// rows returns the row count of a tensor under the (matrix, vector) duality
// this runtime supports: rank-2 tensors are (batch, width), anything of
// lesser rank is a single row.
func rows(t *tensor.Tensor) int {
	if len(t.Shape) == 2 {
		return t.Shape[0]
	}
	return 1
}

func width(t *tensor.Tensor) int {
	return tensor.Product(t.Shape) / rows(t)
}

func rowOf(data []tensor.Scalar, r, w int) []tensor.Scalar {
	return data[r*w : r*w+w]
}

// f64 copies a float32 row into a float64 scratch buffer for gonum/floats,
// which only operates on float64 slices.
func f64(src []tensor.Scalar) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}

// --- matmul ---

func fwdMatMul(a, b, c *tensor.Tensor) error {
	if len(a.Shape) != 2 {
		return rterrors.NewShapeError("matmul", "left operand must be a matrix")
	}
	m, n := a.Shape[0], a.Shape[1]

	switch len(b.Shape) {
	case 1:
		if b.Shape[0] != n {
			return rterrors.NewShapeError("matmul", "dimension mismatch")
		}
		c.Shape = []int{m}
		c.Data = make([]tensor.Scalar, m)
		for i := 0; i < m; i++ {
			var sum tensor.Scalar
			row := a.Data[i*n : i*n+n]
			for k := 0; k < n; k++ {
				sum += row[k] * b.Data[k]
			}
			c.Data[i] = sum
		}
		return nil
	case 2:
		if b.Shape[0] != n {
			return rterrors.NewShapeError("matmul", "dimension mismatch")
		}
		k2 := b.Shape[1]
		c.Shape = []int{m, k2}
		c.Data = make([]tensor.Scalar, m*k2)
		for i := 0; i < m; i++ {
			for j := 0; j < k2; j++ {
				var sum tensor.Scalar
				for k := 0; k < n; k++ {
					sum += a.Data[i*n+k] * b.Data[k*k2+j]
				}
				c.Data[i*k2+j] = sum
			}
		}
		return nil
	default:
		return rterrors.NewShapeError("matmul", "unsupported right operand rank")
	}
}

func bwdMatMul(a, b, c *tensor.Tensor) error {
	m, n := a.Shape[0], a.Shape[1]

	switch len(b.Shape) {
	case 1:
		for i := 0; i < m; i++ {
			gradC := c.Grad[i]
			for k := 0; k < n; k++ {
				idx := i*n + k
				a.Grad[idx] += gradC * b.Data[k]
				b.Grad[k] += gradC * a.Data[idx]
			}
		}
		return nil
	case 2:
		k2 := b.Shape[1]
		for i := 0; i < m; i++ {
			for j := 0; j < k2; j++ {
				gradC := c.Grad[i*k2+j]
				for k := 0; k < n; k++ {
					a.Grad[i*n+k] += gradC * b.Data[k*k2+j]
					b.Grad[k*k2+j] += gradC * a.Data[i*n+k]
				}
			}
		}
		return nil
	default:
		return rterrors.NewShapeError("matmul", "unsupported right operand rank")
	}
}

// --- add / sub, with (B,N)+(N) broadcast ---

func fwdAdd(a, b, c *tensor.Tensor) error {
	if len(a.Data) == len(b.Data) {
		c.Shape = a.Shape
		c.Data = make([]tensor.Scalar, len(a.Data))
		for i := range a.Data {
			c.Data[i] = a.Data[i] + b.Data[i]
		}
		return nil
	}
	if broadcastable(a, b) {
		n := len(b.Data)
		c.Shape = a.Shape
		c.Data = make([]tensor.Scalar, len(a.Data))
		for i := range a.Data {
			c.Data[i] = a.Data[i] + b.Data[i%n]
		}
		return nil
	}
	return rterrors.NewShapeError("add", "dimension mismatch")
}

func bwdAdd(a, b, c *tensor.Tensor) error {
	if len(a.Data) == len(b.Data) {
		for i := range c.Grad {
			a.Grad[i] += c.Grad[i]
			b.Grad[i] += c.Grad[i]
		}
		return nil
	}
	if broadcastable(a, b) {
		n := len(b.Data)
		for i := range c.Grad {
			a.Grad[i] += c.Grad[i]
			b.Grad[i%n] += c.Grad[i]
		}
		return nil
	}
	return rterrors.NewShapeError("add", "dimension mismatch")
}

func fwdSub(a, b, c *tensor.Tensor) error {
	if len(a.Data) == len(b.Data) {
		c.Shape = a.Shape
		c.Data = make([]tensor.Scalar, len(a.Data))
		for i := range a.Data {
			c.Data[i] = a.Data[i] - b.Data[i]
		}
		return nil
	}
	if broadcastable(a, b) {
		n := len(b.Data)
		c.Shape = a.Shape
		c.Data = make([]tensor.Scalar, len(a.Data))
		for i := range a.Data {
			c.Data[i] = a.Data[i] - b.Data[i%n]
		}
		return nil
	}
	return rterrors.NewShapeError("sub", "dimension mismatch")
}

func bwdSub(a, b, c *tensor.Tensor) error {
	if len(a.Data) == len(b.Data) {
		for i := range c.Grad {
			a.Grad[i] += c.Grad[i]
			b.Grad[i] -= c.Grad[i]
		}
		return nil
	}
	if broadcastable(a, b) {
		n := len(b.Data)
		for i := range c.Grad {
			a.Grad[i] += c.Grad[i]
			b.Grad[i%n] -= c.Grad[i]
		}
		return nil
	}
	return rterrors.NewShapeError("sub", "dimension mismatch")
}

// broadcastable reports the (B,N)+(N) pattern: a is rank-2, b is rank-1 with
// the same width as a's columns.
func broadcastable(a, b *tensor.Tensor) bool {
	return len(a.Shape) == 2 && len(b.Shape) == 1 && a.Shape[1] == b.Shape[0]
}

// --- dot ---

func fwdDot(a, b, c *tensor.Tensor) error {
	if len(a.Data) != len(b.Data) {
		return rterrors.NewShapeError("dot", "dimension mismatch")
	}
	var sum tensor.Scalar
	for i := range a.Data {
		sum += a.Data[i] * b.Data[i]
	}
	c.Shape = nil
	c.Data = []tensor.Scalar{sum}
	return nil
}

func bwdDot(a, b, c *tensor.Tensor) {
	var gradOut tensor.Scalar
	if len(c.Grad) > 0 {
		gradOut = c.Grad[0]
	}
	for i := range a.Data {
		a.Grad[i] += gradOut * b.Data[i]
		b.Grad[i] += gradOut * a.Data[i]
	}
}

// --- dropout ---

func fwdDropout(x, y *tensor.Tensor) {
	y.Shape = x.Shape
	y.Data = make([]tensor.Scalar, len(x.Data))
	for i, v := range x.Data {
		mask := tensor.Scalar(0)
		if rng.Float64() < dropKeepProb {
			mask = dropScale
		}
		y.Data[i] = v * mask
	}
}

func bwdDropout(x, y *tensor.Tensor) {
	for i := range x.Data {
		xv, yv := x.Data[i], y.Data[i]
		var mask tensor.Scalar
		if xv != 0 {
			mask = yv / xv
		} else if yv == 0 {
			mask = 0
		} else {
			mask = 1
		}
		x.Grad[i] += y.Grad[i] * mask
	}
}

// --- sigmoid ---

func fwdSigmoid(x, y *tensor.Tensor) {
	y.Shape = x.Shape
	y.Data = make([]tensor.Scalar, len(x.Data))
	for i, v := range x.Data {
		y.Data[i] = tensor.Scalar(1 / (1 + math.Exp(float64(-v))))
	}
}

func bwdSigmoid(x, y *tensor.Tensor) {
	for i := range x.Data {
		yv := y.Data[i]
		x.Grad[i] += y.Grad[i] * yv * (1 - yv)
	}
}

// --- relu / leaky relu ---

func fwdReLU(x, y *tensor.Tensor) {
	y.Shape = x.Shape
	y.Data = make([]tensor.Scalar, len(x.Data))
	for i, v := range x.Data {
		if v > 0 {
			y.Data[i] = v
		}
	}
}

func bwdReLU(x, y *tensor.Tensor) {
	for i := range x.Data {
		if x.Data[i] > 0 {
			x.Grad[i] += y.Grad[i]
		}
	}
}

func fwdLReLU(x, y *tensor.Tensor) {
	y.Shape = x.Shape
	y.Data = make([]tensor.Scalar, len(x.Data))
	for i, v := range x.Data {
		if v > 0 {
			y.Data[i] = v
		} else {
			y.Data[i] = lreluAlpha * v
		}
	}
}

func bwdLReLU(x, y *tensor.Tensor) {
	for i := range x.Data {
		local := tensor.Scalar(lreluAlpha)
		if x.Data[i] > 0 {
			local = 1
		}
		x.Grad[i] += y.Grad[i] * local
	}
}

// --- MSE / MAE / mean: per-row reduction, X(B,N)->Y(B) or X(N)->Y scalar ---

func fwdMSE(x, y *tensor.Tensor) {
	n := rows(x)
	w := width(x)
	y.Shape = []int{n}
	if len(x.Shape) < 2 {
		y.Shape = nil
	}
	y.Data = make([]tensor.Scalar, n)
	if len(x.Data) == 0 {
		y.Data = []tensor.Scalar{0}
		return
	}
	for r := 0; r < n; r++ {
		row := f64(rowOf(x.Data, r, w))
		y.Data[r] = tensor.Scalar(floats.Dot(row, row) / float64(w))
	}
}

func bwdMSE(x, y *tensor.Tensor) {
	if len(x.Data) == 0 {
		return
	}
	n := rows(x)
	w := width(x)
	scale := tensor.Scalar(2.0 / float64(w))
	for r := 0; r < n; r++ {
		g := scale * y.Grad[r]
		row := rowOf(x.Data, r, w)
		grad := rowOf(x.Grad, r, w)
		for i, v := range row {
			grad[i] += g * v
		}
	}
}

func fwdMAE(x, y *tensor.Tensor) {
	n := rows(x)
	w := width(x)
	y.Shape = []int{n}
	if len(x.Shape) < 2 {
		y.Shape = nil
	}
	y.Data = make([]tensor.Scalar, n)
	if len(x.Data) == 0 {
		y.Data = []tensor.Scalar{0}
		return
	}
	for r := 0; r < n; r++ {
		row := f64(rowOf(x.Data, r, w))
		y.Data[r] = tensor.Scalar(floats.Norm(row, 1) / float64(w))
	}
}

func bwdMAE(x, y *tensor.Tensor) {
	if len(x.Data) == 0 {
		return
	}
	n := rows(x)
	w := width(x)
	scale := tensor.Scalar(1.0 / float64(w))
	for r := 0; r < n; r++ {
		g := scale * y.Grad[r]
		row := rowOf(x.Data, r, w)
		grad := rowOf(x.Grad, r, w)
		for i, v := range row {
			grad[i] += g * sign(v)
		}
	}
}

func fwdMean(x, y *tensor.Tensor) {
	n := rows(x)
	w := width(x)
	y.Shape = []int{n}
	if len(x.Shape) < 2 {
		y.Shape = nil
	}
	y.Data = make([]tensor.Scalar, n)
	if len(x.Data) == 0 {
		y.Data = []tensor.Scalar{0}
		return
	}
	for r := 0; r < n; r++ {
		row := f64(rowOf(x.Data, r, w))
		y.Data[r] = tensor.Scalar(floats.Sum(row) / float64(w))
	}
}

func bwdMean(x, y *tensor.Tensor) {
	if len(x.Data) == 0 {
		return
	}
	n := rows(x)
	w := width(x)
	scale := tensor.Scalar(1.0 / float64(w))
	for r := 0; r < n; r++ {
		g := scale * y.Grad[r]
		grad := rowOf(x.Grad, r, w)
		for i := range grad {
			grad[i] += g
		}
	}
}

func sign(v tensor.Scalar) tensor.Scalar {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// --- softmax, per row on 2-D, stable (max-subtracted) ---

func fwdSoftmax(x, y *tensor.Tensor) {
	y.Shape = x.Shape
	if len(x.Data) == 0 {
		y.Data = nil
		return
	}
	n := rows(x)
	w := width(x)
	y.Data = make([]tensor.Scalar, len(x.Data))
	for r := 0; r < n; r++ {
		row := rowOf(x.Data, r, w)
		out := rowOf(y.Data, r, w)
		softmaxRow(row, out)
	}
}

func softmaxRow(row, out []tensor.Scalar) {
	maxVal := float64(floats.Max(f64(row)))
	sum := 0.0
	for i, v := range row {
		e := math.Exp(float64(v) - maxVal)
		out[i] = tensor.Scalar(e)
		sum += e
	}
	invSum := 0.0
	if sum != 0 {
		invSum = 1 / sum
	}
	for i := range out {
		out[i] = tensor.Scalar(float64(out[i]) * invSum)
	}
}

func bwdSoftmax(x, y *tensor.Tensor) {
	n := rows(y)
	w := width(y)
	for r := 0; r < n; r++ {
		yRow := rowOf(y.Data, r, w)
		gyRow := rowOf(y.Grad, r, w)
		gxRow := rowOf(x.Grad, r, w)
		for i := 0; i < w; i++ {
			var grad tensor.Scalar
			for j := 0; j < w; j++ {
				delta := tensor.Scalar(0)
				if i == j {
					delta = 1
				}
				grad += gyRow[j] * yRow[j] * (delta - yRow[i])
			}
			gxRow[i] += grad
		}
	}
}

// --- CE: pred(B,N), target(B,N) one-hot-or-dense -> loss(B) ---

func fwdCE(pred, target, out *tensor.Tensor) error {
	if len(pred.Data) != len(target.Data) {
		return rterrors.NewShapeError("CE", "pred/target shape mismatch")
	}
	n := rows(pred)
	w := width(pred)
	out.Shape = []int{n}
	out.Data = make([]tensor.Scalar, n)
	if w == 0 {
		out.Data = []tensor.Scalar{0}
		return nil
	}
	for r := 0; r < n; r++ {
		p := rowOf(pred.Data, r, w)
		t := rowOf(target.Data, r, w)
		var loss float64
		for i := range p {
			if t[i] != 0 {
				loss += float64(t[i]) * math.Log(float64(p[i])+eps)
			}
		}
		out.Data[r] = tensor.Scalar(-loss)
	}
	return nil
}

func bwdCE(pred, target, out *tensor.Tensor) {
	n := rows(pred)
	w := width(pred)
	if w == 0 || len(pred.Data) != len(target.Data) {
		return
	}
	for r := 0; r < n; r++ {
		scale := tensor.Scalar(out.Grad[r])
		p := rowOf(pred.Data, r, w)
		t := rowOf(target.Data, r, w)
		g := rowOf(pred.Grad, r, w)
		for i := range p {
			g[i] += -scale * (t[i] / (p[i] + eps))
		}
	}
}

// --- softmax_ce_logits: fused stable softmax + cross-entropy ---

func fwdCELogits(logits, target, out *tensor.Tensor) error {
	if len(logits.Data) != len(target.Data) {
		return rterrors.NewShapeError("softmax_ce_logits", "logits/target shape mismatch")
	}
	n := rows(logits)
	w := width(logits)
	out.Shape = []int{n}
	out.Data = make([]tensor.Scalar, n)
	if w == 0 {
		out.Data = []tensor.Scalar{0}
		return nil
	}
	probs := make([]tensor.Scalar, w)
	for r := 0; r < n; r++ {
		row := rowOf(logits.Data, r, w)
		softmaxRow(row, probs)
		t := rowOf(target.Data, r, w)
		var loss float64
		for i := range probs {
			if t[i] > 0 {
				loss += -float64(t[i]) * math.Log(float64(probs[i])+eps)
			}
		}
		out.Data[r] = tensor.Scalar(loss)
	}
	return nil
}

func bwdCELogits(logits, target, out *tensor.Tensor) {
	n := rows(logits)
	w := width(logits)
	if w == 0 || len(logits.Data) != len(target.Data) {
		return
	}
	probs := make([]tensor.Scalar, w)
	for r := 0; r < n; r++ {
		row := rowOf(logits.Data, r, w)
		softmaxRow(row, probs)
		scale := tensor.Scalar(out.Grad[r])
		t := rowOf(target.Data, r, w)
		g := rowOf(logits.Grad, r, w)
		for i := range probs {
			g[i] += scale * (probs[i] - t[i])
		}
	}
}

// --- softmax_ce_logits_label_int: target is an integer class label per row ---

func fwdCELogitsLabelInt(logits, target, out *tensor.Tensor) error {
	n := rows(logits)
	w := width(logits)
	out.Shape = []int{n}
	out.Data = make([]tensor.Scalar, n)
	if w == 0 {
		out.Data = []tensor.Scalar{0}
		return nil
	}
	if rows(target) != n && len(target.Data) != n {
		return rterrors.NewShapeError("softmax_ce_logits_label_int", "label count mismatch")
	}
	probs := make([]tensor.Scalar, w)
	for r := 0; r < n; r++ {
		row := rowOf(logits.Data, r, w)
		softmaxRow(row, probs)
		label := int(labelAt(target, r))
		var loss float64
		if label >= 0 && label < w {
			loss = -math.Log(float64(probs[label]) + eps)
		}
		out.Data[r] = tensor.Scalar(loss)
	}
	return nil
}

func bwdCELogitsLabelInt(logits, target, out *tensor.Tensor) {
	n := rows(logits)
	w := width(logits)
	if w == 0 {
		return
	}
	probs := make([]tensor.Scalar, w)
	for r := 0; r < n; r++ {
		row := rowOf(logits.Data, r, w)
		softmaxRow(row, probs)
		label := int(labelAt(target, r))
		scale := tensor.Scalar(out.Grad[r])
		g := rowOf(logits.Grad, r, w)
		for i := range probs {
			if i == label {
				g[i] += scale * (probs[i] - 1)
			} else {
				g[i] += scale * probs[i]
			}
		}
	}
}

func labelAt(target *tensor.Tensor, r int) tensor.Scalar {
	if r < len(target.Data) {
		return target.Data[r]
	}
	return 0
}
