package engine

import (
	"encoding/json"
	"os"

	"github.com/Hirogava/graphrt/pkg/graph"
	"github.com/Hirogava/graphrt/pkg/rterrors"
)

func loadWeightsFile(path string) (*graph.WeightsDef, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, rterrors.NewLoadError("weights read", err)
	}
	var w graph.WeightsDef
	if err := json.Unmarshal(bs, &w); err != nil {
		return nil, rterrors.NewLoadError("weights parse", err)
	}
	return &w, nil
}
