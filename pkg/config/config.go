// Package config loads the single JSON configuration object that describes
// a graph, its optimizer, and its training data, with an optional YAML
// override file and environment-variable overrides layered on top.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Hirogava/graphrt/pkg/graph"
	"github.com/Hirogava/graphrt/pkg/rterrors"
)

// OptimizerConfig selects an optimizer variant and its hyperparameters.
type OptimizerConfig struct {
	Name   string             `json:"name" yaml:"name"`
	Params map[string]float64 `json:"params" yaml:"params"`
}

// Config is the top-level configuration JSON object.
type Config struct {
	Graph graph.Def `json:"graph" yaml:"graph"`

	Optimizer OptimizerConfig `json:"optimizer" yaml:"optimizer"`

	TrainDataFile string `json:"train_data_file" yaml:"train_data_file"`
	ValDataFile   string `json:"val_data_file" yaml:"val_data_file"`
	BatchSize     int    `json:"batch_size" yaml:"batch_size"`

	SavePath        string `json:"save_Path" yaml:"save_Path"`
	EpochsNumber    int    `json:"epochs_number" yaml:"epochs_number"`
	LogOnEachXBatch int    `json:"log_on_each_x_batch" yaml:"log_on_each_x_batch"`

	// Profile enables timing of every training forward/backward call,
	// reported through rtlog when training finishes. Optional, default false.
	Profile bool `json:"profile" yaml:"profile"`
}

// defaults fills in the fields the spec marks optional.
func defaults() Config {
	return Config{
		Optimizer: OptimizerConfig{
			Name:   "Fixed",
			Params: map[string]float64{},
		},
		EpochsNumber:    0,
		LogOnEachXBatch: 1,
	}
}

// Load reads path (JSON, or YAML when the extension is .yaml/.yml) into a
// Config seeded with defaults, validates it, then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	bs, err := os.ReadFile(path)
	if err != nil {
		return cfg, rterrors.NewLoadError("config read", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(bs, &cfg); err != nil {
			return cfg, rterrors.NewLoadError("config yaml", err)
		}
	default:
		if err := json.Unmarshal(bs, &cfg); err != nil {
			return cfg, rterrors.NewLoadError("config json", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadWithOverride reads the primary config at path, then — if overridePath
// is non-empty — merges a YAML file on top of it field by field, for
// deployments that keep per-environment knobs out of the checked-in config.
func LoadWithOverride(path, overridePath string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if overridePath == "" {
		return cfg, nil
	}

	bs, err := os.ReadFile(overridePath)
	if err != nil {
		return cfg, rterrors.NewLoadError("config override read", err)
	}
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return cfg, rterrors.NewLoadError("config override yaml", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Validate checks the required-together fields and fills in defaults that a
// partial JSON/YAML document left zero.
func (c *Config) Validate() error {
	if len(c.Graph.Tensors) == 0 {
		return rterrors.NewLoadError("config validate", rterrors.NewStateError("graph.tensors must be non-empty"))
	}

	haveAnyDataField := c.TrainDataFile != "" || c.ValDataFile != "" || c.BatchSize != 0
	haveAllDataFields := c.TrainDataFile != "" && c.ValDataFile != "" && c.BatchSize > 0
	if haveAnyDataField && !haveAllDataFields {
		return rterrors.NewLoadError("config validate", rterrors.NewStateError(
			"train_data_file, val_data_file, and batch_size must all be set together"))
	}

	if c.Optimizer.Name == "" {
		c.Optimizer.Name = "Fixed"
	}
	if c.Optimizer.Params == nil {
		c.Optimizer.Params = map[string]float64{}
	}
	switch c.Optimizer.Name {
	case "Adam", "Fixed":
	default:
		return rterrors.NewLoadError("config validate", rterrors.NewStateError("unsupported optimizer.name: "+c.Optimizer.Name))
	}

	return nil
}

// applyEnvOverrides lets deployment environments override a handful of
// fields without editing the checked-in config file.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("GRAPHRT_SAVE_PATH"); v != "" {
		c.SavePath = v
	}
	if v := os.Getenv("GRAPHRT_TRAIN_DATA_FILE"); v != "" {
		c.TrainDataFile = v
	}
	if v := os.Getenv("GRAPHRT_VAL_DATA_FILE"); v != "" {
		c.ValDataFile = v
	}
	if v := os.Getenv("GRAPHRT_BATCH_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.BatchSize = i
		}
	}
	if v := os.Getenv("GRAPHRT_EPOCHS_NUMBER"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.EpochsNumber = i
		}
	}
	if v := os.Getenv("GRAPHRT_LEARNING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			if c.Optimizer.Params == nil {
				c.Optimizer.Params = map[string]float64{}
			}
			c.Optimizer.Params["learningRate"] = f
		}
	}
}
