package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fmtSprintfConfig(trainPath, valPath string) string {
	return fmt.Sprintf(identityWithDataConfigJSON, trainPath, valPath)
}

const identityGraphJSON = `{
  "graph": {
    "tensors": [
      {"id": 0, "kind": "input", "shape": [2]},
      {"id": 1, "kind": "param", "shape": [2], "name": "w", "data": [1, 1]},
      {"id": 2, "kind": "intermediate", "shape": [2]}
    ],
    "ops": [{"id": 0, "op": "add", "inputs": [0, 1], "output": 2}],
    "loss": 2,
    "output": 2,
    "trainable": [1]
  }
}`

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestNewLoadsGraphWithoutDatasetOrOptimizer(t *testing.T) {
	cfgPath := writeFile(t, "config.json", identityGraphJSON)

	e, err := New(cfgPath, "")
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 2, e.InputSize())
	assert.Equal(t, 2, e.OutputSize())
	assert.Nil(t, e.Dataset)
}

func TestPredictAddsParamToInput(t *testing.T) {
	cfgPath := writeFile(t, "config.json", identityGraphJSON)
	e, err := New(cfgPath, "")
	require.NoError(t, err)
	defer e.Close()

	out, err := e.Predict([]float32{10, 20})
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 21}, out)
}

func TestPredictLabelIntReturnsArgmax(t *testing.T) {
	cfgPath := writeFile(t, "config.json", identityGraphJSON)
	e, err := New(cfgPath, "")
	require.NoError(t, err)
	defer e.Close()

	label, err := e.PredictLabelInt([]float32{1, 100})
	require.NoError(t, err)
	assert.Equal(t, 1, label)
}

func TestNewOverlaysWeightsFile(t *testing.T) {
	cfgPath := writeFile(t, "config.json", identityGraphJSON)
	weightsPath := writeFile(t, "weights.json", `{"tensors": {"1": {"data": [5, 5], "shape": [2]}}}`)

	e, err := New(cfgPath, weightsPath)
	require.NoError(t, err)
	defer e.Close()

	out, err := e.Predict([]float32{0, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 5}, out)
}

const identityWithDataConfigJSON = `{
  "graph": {
    "tensors": [
      {"id": 0, "kind": "input", "shape": [2]},
      {"id": 1, "kind": "param", "shape": [2], "name": "w", "data": [1, 1]},
      {"id": 2, "kind": "intermediate", "shape": [2]}
    ],
    "ops": [{"id": 0, "op": "add", "inputs": [0, 1], "output": 2}],
    "loss": 2,
    "output": 2,
    "trainable": [1]
  },
  "train_data_file": "%s",
  "val_data_file": "%s",
  "batch_size": 1
}`

func TestValidationAccuracyComparesArgmaxLabels(t *testing.T) {
	// output = x + w, w=[1,1]: x=[0,0] -> [1,1] (argmax 0, tie broken low);
	// x=[0,100] -> [1,101] (argmax 1). Both match their y-column label.
	valPath := writeFile(t, "val.txt", "0 0|0\n0 100|1\n")
	trainPath := writeFile(t, "train.txt", "0 0|0\n")
	cfgPath := writeFile(t, "config.json", fmtSprintfConfig(trainPath, valPath))

	e, err := New(cfgPath, "")
	require.NoError(t, err)
	defer e.Close()

	acc, err := e.ValidationAccuracy()
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

const trainableConfigJSON = `{
  "graph": {
    "tensors": [
      {"id": 0, "kind": "input", "shape": [1]},
      {"id": 1, "kind": "target", "shape": [1]},
      {"id": 2, "kind": "param", "shape": [1], "data": [0]},
      {"id": 3, "kind": "intermediate", "shape": [1]},
      {"id": 4, "kind": "intermediate"}
    ],
    "ops": [
      {"id": 0, "op": "sub", "inputs": [1, 2], "output": 3},
      {"id": 1, "op": "MSE", "inputs": [3], "output": 4}
    ],
    "loss": 4,
    "output": 2,
    "trainable": [2]
  },
  "optimizer": {"name": "Fixed"},
  "train_data_file": "%s",
  "val_data_file": "%s",
  "batch_size": 1,
  "epochs_number": 1,
  "profile": true
}`

func TestTrainWithProfileEnabledSucceeds(t *testing.T) {
	trainPath := writeFile(t, "train.txt", "0|1\n")
	valPath := writeFile(t, "val.txt", "0|1\n")
	cfgPath := writeFile(t, "config.json", fmt.Sprintf(trainableConfigJSON, trainPath, valPath))

	e, err := New(cfgPath, "")
	require.NoError(t, err)
	defer e.Close()

	require.True(t, e.Profile)
	require.NoError(t, e.Train())
}

func TestProfileFlagOverridesConfigAfterNew(t *testing.T) {
	trainPath := writeFile(t, "train.txt", "0|1\n")
	valPath := writeFile(t, "val.txt", "0|1\n")
	cfgJSON := fmt.Sprintf(trainableConfigJSON, trainPath, valPath)
	cfgJSON = strings.Replace(cfgJSON, `"profile": true`, `"profile": false`, 1)
	cfgPath := writeFile(t, "config.json", cfgJSON)

	e, err := New(cfgPath, "")
	require.NoError(t, err)
	defer e.Close()

	require.False(t, e.Profile)
	e.Profile = true
	require.NoError(t, e.Train())
}

func TestTrainFailsWithoutDatasetOrOptimizer(t *testing.T) {
	cfgPath := writeFile(t, "config.json", identityGraphJSON)
	e, err := New(cfgPath, "")
	require.NoError(t, err)
	defer e.Close()

	assert.Error(t, e.Train())
}
