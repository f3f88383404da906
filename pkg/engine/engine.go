// Package engine is the embeddable predictor and trainer: it loads a
// configuration file into a graph, optimizer, and dataset, and exposes the
// operations an embedder (CLI or FFI caller) needs — train, measure
// validation loss, and predict.
package engine

import (
	"github.com/Hirogava/graphrt/pkg/config"
	"github.com/Hirogava/graphrt/pkg/dataset"
	"github.com/Hirogava/graphrt/pkg/graph"
	"github.com/Hirogava/graphrt/pkg/metrics"
	"github.com/Hirogava/graphrt/pkg/optimizer"
	"github.com/Hirogava/graphrt/pkg/profiling"
	"github.com/Hirogava/graphrt/pkg/rterrors"
	"github.com/Hirogava/graphrt/pkg/tensor"
	"github.com/Hirogava/graphrt/pkg/train"
)

// Engine wraps a loaded graph plus whatever optimizer and dataset its
// configuration declared. Dataset is nil when the config omitted the data
// fields — such an Engine can still Predict but not Train. A config without
// an optimizer section gets a Fixed optimizer.
type Engine struct {
	Graph     *graph.Graph
	Optimizer optimizer.Optimizer
	Dataset   *dataset.TrainValidateDataset
	Config    config.Config

	// Profile mirrors Config.Profile but can be overridden after New (e.g.
	// by a CLI flag) to force forward/backward timing on for one run.
	Profile bool
}

// New loads configPath and, if weightsPath is non-empty, overlays the
// checkpoint at weightsPath onto the graph's param tensors.
func New(configPath, weightsPath string) (*Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	var weights *graph.WeightsDef
	if weightsPath != "" {
		weights, err = loadWeightsFile(weightsPath)
		if err != nil {
			return nil, err
		}
	}

	g, err := graph.Load(cfg.Graph, weights)
	if err != nil {
		return nil, err
	}

	e := &Engine{Graph: g, Config: cfg, Profile: cfg.Profile}

	if cfg.Optimizer.Name != "" {
		opt, err := optimizer.New(cfg.Optimizer)
		if err != nil {
			return nil, err
		}
		e.Optimizer = opt
	}

	if cfg.TrainDataFile != "" && cfg.ValDataFile != "" && cfg.BatchSize > 0 {
		ds, err := dataset.NewTrainValidateDataset(cfg.TrainDataFile, cfg.ValDataFile, cfg.BatchSize, '|', 42)
		if err != nil {
			return nil, err
		}
		e.Dataset = ds
	}

	return e, nil
}

// Train runs the full training loop described by the loaded configuration.
func (e *Engine) Train() error {
	if e.Dataset == nil || e.Optimizer == nil {
		return rterrors.NewStateError("engine not initialized for training: missing dataset or optimizer")
	}

	tr := &train.Trainer{
		Graph:           e.Graph,
		Optimizer:       e.Optimizer,
		Dataset:         e.Dataset,
		EpochsNumber:    e.Config.EpochsNumber,
		SavePath:        e.Config.SavePath,
		LogOnEachXBatch: e.Config.LogOnEachXBatch,
	}
	if e.Profile {
		tr.Profiler = profiling.NewProfiler(profiling.DefaultConfig())
	}
	return tr.Train()
}

// ValidationLoss runs one pass over the validation dataset.
func (e *Engine) ValidationLoss() (float32, error) {
	if e.Dataset == nil {
		return 0, rterrors.NewStateError("engine not initialized: missing dataset")
	}
	tr := &train.Trainer{Graph: e.Graph, Dataset: e.Dataset}
	return tr.ValidationLoss()
}

// ValidationAccuracy runs one pass over the validation dataset and returns
// the fraction of samples whose argmax output label matches the target
// vector's first element treated as a class index. Intended for graphs
// trained against a classification loss (e.g. softmax cross-entropy), where
// the validation file's y column holds an integer label.
func (e *Engine) ValidationAccuracy() (float64, error) {
	if e.Dataset == nil {
		return 0, rterrors.NewStateError("engine not initialized: missing dataset")
	}
	if err := e.Dataset.Val.ResetEpoch(); err != nil {
		return 0, err
	}

	acc := metrics.NewAccuracy()
	for {
		ok, err := e.Dataset.Val.NextBatch()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		for {
			x, y, ok, err := e.Dataset.Val.NextSampleInBatch()
			if err != nil {
				return 0, err
			}
			if !ok {
				break
			}
			predicted, err := e.PredictLabelInt(x)
			if err != nil {
				return 0, err
			}
			acc.Update(predicted, int(y[0]))
		}
	}
	return acc.Value(), nil
}

// Predict sets x as the graph's input, runs forward, and returns the output
// tensor's data.
func (e *Engine) Predict(x []tensor.Scalar) ([]tensor.Scalar, error) {
	if e.Graph == nil {
		return nil, rterrors.NewStateError("engine not initialized")
	}
	if err := e.Graph.SetInput(x); err != nil {
		return nil, err
	}
	if err := e.Graph.Forward(); err != nil {
		return nil, err
	}
	return e.Graph.GetOutput(), nil
}

// PredictLabelInt runs Predict and returns the index of the largest output
// element.
func (e *Engine) PredictLabelInt(x []tensor.Scalar) (int, error) {
	out, err := e.Predict(x)
	if err != nil {
		return 0, err
	}
	return argmax(out), nil
}

// InputSize returns the element count of the graph's input tensor.
func (e *Engine) InputSize() int {
	return e.Graph.InputSize()
}

// OutputSize returns the element count of the graph's output tensor.
func (e *Engine) OutputSize() int {
	return e.Graph.OutputSize()
}

// Close releases the dataset's file handles, if any were opened.
func (e *Engine) Close() error {
	if e.Dataset == nil {
		return nil
	}
	return e.Dataset.Close()
}

func argmax(v []tensor.Scalar) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
