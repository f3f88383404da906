// Command graphrt loads a configuration file describing a computation graph,
// its optimizer, and its training data, then either trains it or runs a
// single prediction.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Hirogava/graphrt/pkg/engine"
	"github.com/Hirogava/graphrt/pkg/rtlog"
	"github.com/Hirogava/graphrt/pkg/tensor"
)

func main() {
	weights := flag.String("weights", "", "path to a weights JSON checkpoint to preload")
	predict := flag.String("predict", "", "comma or whitespace-separated input vector; skips training and prints one prediction")
	quiet := flag.Bool("quiet", false, "suppress info-level logging")
	profile := flag.Bool("profile", false, "time every training forward/backward call and log a report when training finishes")
	flag.Parse()

	if *quiet {
		rtlog.Quiet()
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: graphrt [-weights path] [-predict \"x1,x2,...\"] [-profile] <config.json>")
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *weights, *predict, *profile); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(configPath, weightsPath, predictArg string, profile bool) error {
	e, err := engine.New(configPath, weightsPath)
	if err != nil {
		return err
	}
	defer e.Close()

	if profile {
		e.Profile = true
	}

	if predictArg != "" {
		x, err := parseVector(predictArg)
		if err != nil {
			return err
		}
		out, err := e.Predict(x)
		if err != nil {
			return err
		}
		fmt.Println(formatVector(out))
		return nil
	}

	return e.Train()
}

func parseVector(s string) ([]tensor.Scalar, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]tensor.Scalar, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("predict: invalid value %q: %w", f, err)
		}
		out = append(out, tensor.Scalar(v))
	}
	return out, nil
}

func formatVector(x []tensor.Scalar) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, " ")
}
