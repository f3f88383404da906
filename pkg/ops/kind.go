// Package ops implements the closed set of differentiable operators the
// graph runtime can execute: a forward rule and a backward (reverse-mode
// accumulation) rule for each.
//
// Dispatch is by a closed Kind enum rather than a per-call string switch —
// the JSON loader resolves an op's string selector to a Kind once, at load
// time, so an unsupported selector is rejected before training starts and
// forward/backward never re-parse a string.
package ops

import "github.com/Hirogava/graphrt/pkg/rterrors"

// Kind is the closed tag for a supported op selector.
type Kind int

const (
	MatMul Kind = iota
	Add
	Sub
	Dot
	Dropout
	Sigmoid
	ReLU
	LReLU
	MSE
	MAE
	Mean
	Softmax
	CE
	SoftmaxCELogits
	SoftmaxCELogitsLabelInt
)

// selectors maps every accepted JSON string to its Kind. Two selectors
// ("relu"/"ReLU") map to the same Kind, matching the original runtime.
var selectors = map[string]Kind{
	"matmul":                      MatMul,
	"add":                         Add,
	"sub":                         Sub,
	"dot":                         Dot,
	"dropout":                     Dropout,
	"sig":                         Sigmoid,
	"relu":                        ReLU,
	"ReLU":                        ReLU,
	"LReLU":                       LReLU,
	"MSE":                         MSE,
	"MAE":                         MAE,
	"mean":                        Mean,
	"softmax":                     Softmax,
	"CE":                          CE,
	"softmax_ce_logits":           SoftmaxCELogits,
	"softmax_ce_logits_label_int": SoftmaxCELogitsLabelInt,
}

// Parse resolves a JSON op selector to its Kind, or an UnknownOpError if the
// selector is not in the closed table.
func Parse(selector string) (Kind, error) {
	k, ok := selectors[selector]
	if !ok {
		return 0, rterrors.NewUnknownOpError(selector)
	}
	return k, nil
}

// String returns the canonical selector for a Kind (the display form, not
// necessarily the only accepted alias).
func (k Kind) String() string {
	switch k {
	case MatMul:
		return "matmul"
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Dot:
		return "dot"
	case Dropout:
		return "dropout"
	case Sigmoid:
		return "sig"
	case ReLU:
		return "relu"
	case LReLU:
		return "LReLU"
	case MSE:
		return "MSE"
	case MAE:
		return "MAE"
	case Mean:
		return "mean"
	case Softmax:
		return "softmax"
	case CE:
		return "CE"
	case SoftmaxCELogits:
		return "softmax_ce_logits"
	case SoftmaxCELogitsLabelInt:
		return "softmax_ce_logits_label_int"
	default:
		return "?"
	}
}
