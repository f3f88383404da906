// Package train drives the epoch loop: shuffle the training set, run
// forward/backward per sample, step the optimizer at each batch boundary,
// run a validation pass, and persist the best-epoch weights.
package train

import (
	"math"

	"github.com/Hirogava/graphrt/pkg/dataset"
	"github.com/Hirogava/graphrt/pkg/graph"
	"github.com/Hirogava/graphrt/pkg/optimizer"
	"github.com/Hirogava/graphrt/pkg/profiling"
	"github.com/Hirogava/graphrt/pkg/rtlog"
)

// Trainer drives one graph through one or more epochs against a paired
// train/validation dataset, saving the best-validation-loss checkpoint.
type Trainer struct {
	Graph     *graph.Graph
	Optimizer optimizer.Optimizer
	Dataset   *dataset.TrainValidateDataset

	EpochsNumber    int
	SavePath        string
	LogOnEachXBatch int

	// Profiler, if set, times every training forward/backward call and logs a
	// report through rtlog when Train returns. Validation forwards are not
	// timed.
	Profiler *profiling.Profiler
}

func (t *Trainer) timeOp(name string, fn func() error) error {
	if t.Profiler == nil {
		return fn()
	}
	timer := t.Profiler.OperationMetrics.StartOperation(name)
	defer timer.Stop()
	return fn()
}

// Train runs EpochsNumber epochs, logging batch error every LogOnEachXBatch
// batches (0 disables batch logging) and writing SavePath whenever an
// epoch's validation loss improves on every prior epoch's.
func (t *Trainer) Train() error {
	bestValidationLoss := float32(math.MaxFloat32)

	if t.Profiler != nil {
		if err := t.Profiler.Start(); err != nil {
			return err
		}
		defer func() {
			t.Profiler.Stop()
			t.Profiler.Report()
		}()
	}

	for epoch := 0; epoch < t.EpochsNumber; epoch++ {
		rtlog.Log.Info().Int("epoch", epoch+1).Msg("epoch begin")

		t.Dataset.Train.ShuffleEpoch()

		batchIndex := 0
		for {
			ok, err := t.Dataset.Train.NextBatch()
			if err != nil {
				return err
			}
			if !ok {
				break
			}

			if err := t.runBatch(); err != nil {
				return err
			}

			batchError := t.Optimizer.GetError()
			t.Optimizer.Step(t.Graph)
			t.Optimizer.ZeroGrads(t.Graph)

			batchIndex++
			if t.LogOnEachXBatch > 0 && batchIndex%t.LogOnEachXBatch == 0 {
				rtlog.Log.Info().Int("batch", batchIndex).Float32("error", batchError).Msg("train batch")
			}
		}

		valLoss, err := t.ValidationLoss()
		if err != nil {
			return err
		}
		rtlog.Log.Info().Int("epoch", epoch+1).Float32("validation_loss", valLoss).Msg("epoch end")

		if t.SavePath != "" {
			if valLoss < bestValidationLoss {
				bestValidationLoss = valLoss
				if err := t.Graph.SaveWeights(t.SavePath); err != nil {
					return err
				}
			} else {
				rtlog.Log.Info().Msg("validation error increased, checkpoint not updated")
			}
		}
	}

	return nil
}

// runBatch feeds every sample of the current training batch through
// forward/backward, accumulating loss into the optimizer's error counter.
func (t *Trainer) runBatch() error {
	for {
		x, y, ok, err := t.Dataset.Train.NextSampleInBatch()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := t.Graph.SetInput(x); err != nil {
			return err
		}
		if err := t.Graph.SetTarget(y); err != nil {
			return err
		}
		if err := t.timeOp("forward", t.Graph.Forward); err != nil {
			return err
		}

		t.Optimizer.AddError(float32(t.Graph.GetLoss()))

		if err := t.timeOp("backward", t.Graph.Backward); err != nil {
			return err
		}
	}
}

// ValidationLoss runs one un-shuffled pass over the validation dataset and
// returns the mean per-sample loss.
func (t *Trainer) ValidationLoss() (float32, error) {
	if err := t.Dataset.Val.ResetEpoch(); err != nil {
		return 0, err
	}

	var loss float32
	var count int

	for {
		ok, err := t.Dataset.Val.NextBatch()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}

		for {
			x, y, ok, err := t.Dataset.Val.NextSampleInBatch()
			if err != nil {
				return 0, err
			}
			if !ok {
				break
			}

			if err := t.Graph.SetInput(x); err != nil {
				return 0, err
			}
			if err := t.Graph.SetTarget(y); err != nil {
				return 0, err
			}
			if err := t.Graph.Forward(); err != nil {
				return 0, err
			}

			loss += t.Graph.GetLoss()
			count++
		}
	}

	if count == 0 {
		return 0, nil
	}
	return loss / float32(count), nil
}
