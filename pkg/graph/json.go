package graph

import "github.com/Hirogava/graphrt/pkg/tensor"

// tensorDef mirrors one entry of graph.tensors in the configuration JSON.
type tensorDef struct {
	ID    int             `json:"id"`
	Kind  tensor.Kind     `json:"kind"`
	Shape []int           `json:"shape"`
	Name  string          `json:"name,omitempty"`
	Data  []tensor.Scalar `json:"data,omitempty"`
}

// opDef mirrors one entry of graph.ops in the configuration JSON.
type opDef struct {
	ID     int    `json:"id"`
	Op     string `json:"op"`
	Inputs []int  `json:"inputs"`
	Output int    `json:"output"`
}

// Def is the `graph` object of the configuration JSON: tensors, ops, and the
// distinguished loss/output/trainable ids.
type Def struct {
	Tensors   []tensorDef `json:"tensors"`
	Ops       []opDef     `json:"ops"`
	Loss      int         `json:"loss"`
	Output    int         `json:"output"`
	Trainable []int       `json:"trainable"`
}

// weightsTensorDef mirrors one entry of the "tensors" map in a weights JSON
// checkpoint: {"data": [...], "shape": [...]}.
type weightsTensorDef struct {
	Data  []tensor.Scalar `json:"data"`
	Shape []int           `json:"shape"`
}

// WeightsDef is the top-level shape of a weights JSON checkpoint.
type WeightsDef struct {
	Tensors map[string]weightsTensorDef `json:"tensors"`
}

// AllDef is the shape written by SaveAll: the graph definition plus every
// tensor's current data, keyed by id.
type AllDef struct {
	Graph   Def                        `json:"graph"`
	Tensors map[string][]tensor.Scalar `json:"tensors"`
}
