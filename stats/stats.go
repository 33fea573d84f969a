// Package stats reduces per-trial totals into summary statistics.
package stats

import (
	"fmt"
	"math"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/weiihann/propbench/errs"
)

// Timing summarizes a list of trial totals.
type Timing struct {
	Mean     float64
	StdDev   float64
	Min      float64
	Max      float64
	RunCount int
}

// Compute returns the mean, sample standard deviation, minimum and maximum
// of values. The standard deviation of a single value is zero.
func Compute(values []float64) (Timing, error) {
	if len(values) == 0 {
		return Timing{}, errs.ErrEmptySampleSet
	}

	t := Timing{
		Min:      values[0],
		Max:      values[0],
		RunCount: len(values),
	}

	var sum float64
	for _, v := range values {
		sum += v
		t.Min = math.Min(t.Min, v)
		t.Max = math.Max(t.Max, v)
	}

	// Rounding in the sum can push the mean of identical values past them.
	t.Mean = math.Min(math.Max(sum/float64(len(values)), t.Min), t.Max)

	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			d := v - t.Mean
			sq += d * d
		}
		t.StdDev = math.Sqrt(sq / float64(len(values)-1))
	}

	return t, nil
}

// Mean returns the arithmetic mean of values.
func Mean(values []float64) (float64, error) {
	t, err := Compute(values)
	if err != nil {
		return 0, err
	}

	return t.Mean, nil
}

// Quantiles holds approximate percentiles of trial totals.
type Quantiles struct {
	P50 float64
	P90 float64
	P99 float64
}

// DefaultAccuracy is the relative accuracy of Percentiles.
const DefaultAccuracy = 0.01

// Percentiles estimates the median, 90th and 99th percentiles of values
// with a DDSketch of the given relative accuracy. Values must be positive
// for the sketch to track them; non-positive values are counted as zero.
func Percentiles(values []float64, accuracy float64) (Quantiles, error) {
	if len(values) == 0 {
		return Quantiles{}, errs.ErrEmptySampleSet
	}

	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return Quantiles{}, fmt.Errorf("create sketch: %w", err)
	}

	for _, v := range values {
		if err := sketch.Add(math.Max(v, 0)); err != nil {
			return Quantiles{}, fmt.Errorf("add %g: %w", v, err)
		}
	}

	qs, err := sketch.GetValuesAtQuantiles([]float64{0.5, 0.9, 0.99})
	if err != nil {
		return Quantiles{}, fmt.Errorf("quantiles: %w", err)
	}

	return Quantiles{P50: qs[0], P90: qs[1], P99: qs[2]}, nil
}
