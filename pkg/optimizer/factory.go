package optimizer

import (
	"github.com/Hirogava/graphrt/pkg/config"
	"github.com/Hirogava/graphrt/pkg/rterrors"
)

// New builds the Optimizer named by cfg.Name with hyperparameters drawn
// from cfg.Params, falling back to the reference defaults for any missing
// Adam parameter.
func New(cfg config.OptimizerConfig) (Optimizer, error) {
	switch cfg.Name {
	case "", "Fixed":
		return NewFixed(), nil
	case "Adam":
		return NewAdam(
			param(cfg.Params, "learningRate", 0.1),
			param(cfg.Params, "beta1", 0.9),
			param(cfg.Params, "beta2", 0.999),
			param(cfg.Params, "eps", 1e-8),
		), nil
	default:
		return nil, rterrors.NewLoadError("optimizer", rterrors.NewStateError("unsupported optimizer.name: "+cfg.Name))
	}
}

func param(params map[string]float64, key string, fallback float32) float32 {
	if v, ok := params[key]; ok {
		return float32(v)
	}
	return fallback
}
