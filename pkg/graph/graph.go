// Package graph loads a JSON-declared computation graph (tensors + ops),
// executes it forward and backward, and persists the trainable tensors.
//
// The tensor array is an arena indexed by dense tensor id; ops take ids and
// briefly borrow slices of the arena's Data/Grad buffers in short,
// non-overlapping windows (forward writes Data, backward reads Data/out.Grad
// and writes in.Grad) rather than holding references across calls.
package graph

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/Hirogava/graphrt/pkg/ops"
	"github.com/Hirogava/graphrt/pkg/rterrors"
	"github.com/Hirogava/graphrt/pkg/tensor"
)

// op is a resolved graph op: its selector has already been turned into a
// closed ops.Kind, so forward/backward dispatch never re-parses a string.
type op struct {
	id       int
	kind     ops.Kind
	selector string
	inputs   []int
	output   int
}

// Graph is the runtime container: every tensor and op, plus the distinguished
// ids the driver and the optimizer need.
type Graph struct {
	Tensors   []*tensor.Tensor
	ops       []op
	InputID   int
	TargetID  int
	OutputID  int
	LossID    int
	Trainable []int

	// AccSteps counts backward calls since the last ResetGrad; the optimizer
	// divides accumulated param grads by max(1, AccSteps) before its update.
	AccSteps int

	def Def // retained so SaveAll can re-emit the graph definition
}

// Load parses graphDef into a Graph. If weights is non-nil, every param
// tensor whose id and shape match an entry in weights has its data
// overwritten from the checkpoint.
func Load(graphDef Def, weights *WeightsDef) (*Graph, error) {
	g := &Graph{def: graphDef}

	if err := g.loadTensors(graphDef, weights); err != nil {
		return nil, err
	}
	if err := g.loadOps(graphDef); err != nil {
		return nil, err
	}

	g.LossID = graphDef.Loss
	g.OutputID = graphDef.Output
	g.Trainable = append([]int(nil), graphDef.Trainable...)

	if g.LossID < 0 || g.LossID >= len(g.Tensors) {
		return nil, rterrors.NewLoadError("graph", rterrors.NewIndexError(g.LossID))
	}
	if g.OutputID < 0 || g.OutputID >= len(g.Tensors) {
		return nil, rterrors.NewLoadError("graph", rterrors.NewIndexError(g.OutputID))
	}

	return g, nil
}

// LoadFromJSON is a convenience wrapper around Load that parses the graph
// and (optional) weights definitions from raw JSON bytes — used by the FFI
// test handle, which builds a graph directly from a JSON string.
func LoadFromJSON(graphJSON []byte, weightsJSON []byte) (*Graph, error) {
	var def Def
	if err := json.Unmarshal(graphJSON, &def); err != nil {
		return nil, rterrors.NewLoadError("graph json", err)
	}

	var weights *WeightsDef
	if len(weightsJSON) > 0 {
		var w WeightsDef
		if err := json.Unmarshal(weightsJSON, &w); err != nil {
			return nil, rterrors.NewLoadError("weights json", err)
		}
		weights = &w
	}

	return Load(def, weights)
}

func (g *Graph) loadTensors(def Def, weights *WeightsDef) error {
	g.Tensors = make([]*tensor.Tensor, len(def.Tensors))

	for _, td := range def.Tensors {
		if td.ID < 0 || td.ID >= len(def.Tensors) {
			return rterrors.NewLoadError("tensor", rterrors.NewIndexError(td.ID))
		}
		if g.Tensors[td.ID] != nil {
			return rterrors.NewLoadError("tensor", rterrors.NewStateError("duplicate tensor id"))
		}

		t := &tensor.Tensor{ID: td.ID, Shape: append([]int(nil), td.Shape...), Kind: td.Kind, Name: td.Name}

		if td.Data != nil {
			t.Data = append([]tensor.Scalar(nil), td.Data...)
		} else {
			t.Data = make([]tensor.Scalar, tensor.Product(t.Shape))
		}

		if weights != nil && t.Kind == tensor.Param {
			if wt, ok := weights.Tensors[itoa(t.ID)]; ok && shapeEqual(wt.Shape, t.Shape) {
				t.Data = append([]tensor.Scalar(nil), wt.Data...)
			}
		}

		t.Grad = make([]tensor.Scalar, len(t.Data))

		switch t.Kind {
		case tensor.Input:
			g.InputID = t.ID
		case tensor.Target:
			g.TargetID = t.ID
		}

		g.Tensors[td.ID] = t
	}

	for id, t := range g.Tensors {
		if t == nil {
			return rterrors.NewLoadError("tensor", rterrors.NewStateError("missing tensor id in sequence"))
		}
		_ = id
	}

	return nil
}

func (g *Graph) loadOps(def Def) error {
	g.ops = make([]op, 0, len(def.Ops))

	for _, od := range def.Ops {
		kind, err := ops.Parse(od.Op)
		if err != nil {
			return rterrors.NewLoadError("op", err)
		}

		for _, in := range od.Inputs {
			if in < 0 || in >= len(g.Tensors) {
				return rterrors.NewLoadError("op", rterrors.NewIndexError(in))
			}
		}
		if od.Output < 0 || od.Output >= len(g.Tensors) {
			return rterrors.NewLoadError("op", rterrors.NewIndexError(od.Output))
		}

		g.ops = append(g.ops, op{
			id:       od.ID,
			kind:     kind,
			selector: od.Op,
			inputs:   append([]int(nil), od.Inputs...),
			output:   od.Output,
		})
	}

	return nil
}

// SetInput copies x into the input tensor's data.
func (g *Graph) SetInput(x []tensor.Scalar) error {
	return g.setBuffer(g.InputID, x)
}

// SetTarget copies y into the target tensor's data.
func (g *Graph) SetTarget(y []tensor.Scalar) error {
	return g.setBuffer(g.TargetID, y)
}

func (g *Graph) setBuffer(id int, x []tensor.Scalar) error {
	t := g.Tensors[id]
	if len(t.Data) != len(x) {
		return rterrors.NewShapeError("setInput/setTarget", "incompatible dimensions")
	}
	copy(t.Data, x)
	return nil
}

// Forward runs every op in the declared (topological) order.
func (g *Graph) Forward() error {
	for _, o := range g.ops {
		if err := ops.Forward(o.kind, g.Tensors, o.inputs, o.output); err != nil {
			return err
		}
	}
	return nil
}

// Backward zeroes every non-param tensor's grad, seeds the loss tensor's grad
// with 1.0, and runs every op in reverse order accumulating into input grads.
func (g *Graph) Backward() error {
	for _, t := range g.Tensors {
		if t.Kind != tensor.Param {
			t.ZeroGrad()
		}
	}

	loss := g.Tensors[g.LossID]
	for i := range loss.Grad {
		loss.Grad[i] = 1
	}

	for i := len(g.ops) - 1; i >= 0; i-- {
		o := g.ops[i]
		if err := ops.Backward(o.kind, g.Tensors, o.inputs, o.output); err != nil {
			return err
		}
	}

	g.AccSteps++

	return nil
}

// ResetGrad zeroes every tensor's grad (including params) and resets
// AccSteps to 0; used by the optimizer after it applies a step.
func (g *Graph) ResetGrad() {
	for _, t := range g.Tensors {
		t.ZeroGrad()
	}
	g.AccSteps = 0
}

// GetLoss returns the mean over the loss tensor's entries, or its single
// element when there is exactly one.
func (g *Graph) GetLoss() tensor.Scalar {
	t := g.Tensors[g.LossID]
	if len(t.Data) == 0 {
		return 0
	}
	if len(t.Data) == 1 {
		return t.Data[0]
	}
	var sum tensor.Scalar
	for _, v := range t.Data {
		sum += v
	}
	return sum / tensor.Scalar(len(t.Data))
}

// GetOutput returns the output tensor's data, or a zero vector sized to its
// shape product when the data buffer is empty.
func (g *Graph) GetOutput() []tensor.Scalar {
	t := g.Tensors[g.OutputID]
	if len(t.Data) == 0 {
		return make([]tensor.Scalar, tensor.Product(t.Shape))
	}
	return append([]tensor.Scalar(nil), t.Data...)
}

// InputSize returns the element count of the input tensor's shape.
func (g *Graph) InputSize() int {
	return tensor.Product(g.Tensors[g.InputID].Shape)
}

// OutputSize returns the element count of the output tensor's shape.
func (g *Graph) OutputSize() int {
	return tensor.Product(g.Tensors[g.OutputID].Shape)
}

// SaveWeights writes a JSON object with the data and shape of every
// trainable tensor, keyed by id.
func (g *Graph) SaveWeights(path string) error {
	out := WeightsDef{Tensors: make(map[string]weightsTensorDef, len(g.Trainable))}
	for _, id := range g.Trainable {
		t := g.Tensors[id]
		out.Tensors[itoa(id)] = weightsTensorDef{
			Data:  append([]tensor.Scalar(nil), t.Data...),
			Shape: append([]int(nil), t.Shape...),
		}
	}
	return writeJSONAtomic(path, out)
}

// SaveAll writes the graph definition together with a map from every tensor
// id to its current data.
func (g *Graph) SaveAll(path string) error {
	out := AllDef{Graph: g.def, Tensors: make(map[string][]tensor.Scalar, len(g.Tensors))}
	for _, t := range g.Tensors {
		out.Tensors[itoa(t.ID)] = append([]tensor.Scalar(nil), t.Data...)
	}
	return writeJSONAtomic(path, out)
}

func writeJSONAtomic(path string, v interface{}) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return rterrors.NewLoadError("save", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0o644); err != nil {
		return rterrors.NewLoadError("save", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return rterrors.NewLoadError("save", err)
	}
	return nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func itoa(id int) string {
	return strconv.Itoa(id)
}
