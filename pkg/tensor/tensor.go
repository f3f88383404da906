// Package tensor holds the numeric primitive and the tensor record the graph
// runtime operates on: a dense, shape-typed buffer of Scalars with a matching
// gradient buffer. The runtime only ever needs rank-0/1/2 row-major buffers
// of float32, so the type here stays deliberately small rather than modeling
// arbitrary-rank strided tensors.
package tensor

import "fmt"

// Scalar is the numeric primitive for all tensor data and gradients.
type Scalar = float32

// Kind distinguishes how a tensor's data buffer is owned and mutated.
type Kind string

const (
	// Param tensors are learnable weights; their grad accumulates across the
	// backward calls of one batch and is preserved across backward (never
	// zeroed at backward time, only by the optimizer after its step).
	Param Kind = "param"
	// Input tensors are driver-supplied, mutated only by SetInput.
	Input Kind = "input"
	// Target tensors hold the supervision signal, mutated only by SetTarget.
	Target Kind = "target"
	// Intermediate tensors are computed by forward and overwritten each call.
	Intermediate Kind = "intermediate"
	// Const tensors are fixed data that participates in ops but is never
	// trained and never set by the driver.
	Const Kind = "const"
)

// Tensor is a record with an id, a shape, a data buffer, a gradient buffer,
// a kind, and an optional display name.
type Tensor struct {
	ID    int
	Shape []int
	Data  []Scalar
	Grad  []Scalar
	Kind  Kind
	Name  string
}

// Product returns the number of elements implied by shape: the product of
// its dimensions, or 1 for an empty (scalar) shape.
func Product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// New builds a tensor with a zeroed data/grad buffer sized to shape.
func New(id int, shape []int, kind Kind, name string) *Tensor {
	size := Product(shape)
	return &Tensor{
		ID:    id,
		Shape: append([]int(nil), shape...),
		Data:  make([]Scalar, size),
		Grad:  make([]Scalar, size),
		Kind:  kind,
		Name:  name,
	}
}

// ZeroGrad overwrites Grad with zeros in place, leaving Data untouched.
func (t *Tensor) ZeroGrad() {
	for i := range t.Grad {
		t.Grad[i] = 0
	}
}

// Label returns a display string for error messages: the name if present,
// otherwise the numeric id.
func (t *Tensor) Label() string {
	if t.Name != "" {
		return fmt.Sprintf("%s(#%d)", t.Name, t.ID)
	}
	return fmt.Sprintf("#%d", t.ID)
}

// Rows returns shape[0] for a rank-2 (batch, width) tensor, or 1 otherwise.
func (t *Tensor) Rows() int {
	if len(t.Shape) == 2 {
		return t.Shape[0]
	}
	return 1
}

// Cols returns the per-row width: shape[1] for rank 2, shape[0] for rank 1,
// or 1 for a scalar.
func (t *Tensor) Cols() int {
	switch len(t.Shape) {
	case 2:
		return t.Shape[1]
	case 1:
		return t.Shape[0]
	default:
		return 1
	}
}

// IsBatched reports whether the tensor is a rank-2 (batch, width) matrix.
func (t *Tensor) IsBatched() bool {
	return len(t.Shape) == 2
}
