package engine

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/montanaflynn/stats"
	"modernc.org/sqlite"
)

const (
	funcMedian     = "median"
	funcStdDev     = "stddev"
	funcPercentile = "approx_percentile_cont"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions installs the Go aggregates on the sqlite driver. The
// driver keeps a process-wide registry, so this runs once.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = errors.Join(
			sqlite.RegisterFunction(funcMedian, &sqlite.FunctionImpl{
				NArgs:         1,
				Deterministic: true,
				MakeAggregate: func(sqlite.FunctionContext) (sqlite.AggregateFunction, error) {
					return &sampleAggregate{final: medianOf}, nil
				},
			}),
			sqlite.RegisterFunction(funcStdDev, &sqlite.FunctionImpl{
				NArgs:         1,
				Deterministic: true,
				MakeAggregate: func(sqlite.FunctionContext) (sqlite.AggregateFunction, error) {
					return &sampleAggregate{final: stdDevOf}, nil
				},
			}),
			sqlite.RegisterFunction(funcPercentile, &sqlite.FunctionImpl{
				NArgs:         2,
				Deterministic: true,
				MakeAggregate: func(sqlite.FunctionContext) (sqlite.AggregateFunction, error) {
					agg := &sampleAggregate{}
					agg.final = func(values []float64) (driver.Value, error) {
						return percentileOf(values, agg.fraction)
					}
					return agg, nil
				},
			}),
		)
	})
	return registerErr
}

// sampleAggregate collects the numeric inputs of a group and computes the
// result once at the end. Non-numeric and NULL inputs are skipped.
type sampleAggregate struct {
	values   []float64
	fraction float64
	final    func([]float64) (driver.Value, error)
}

func (a *sampleAggregate) Step(_ *sqlite.FunctionContext, args []driver.Value) error {
	if len(args) > 1 {
		p, ok := toFloat(args[1])
		if !ok || p < 0 || p > 1 {
			return fmt.Errorf("%s: percentile must be between 0 and 1, got %v", funcPercentile, args[1])
		}
		a.fraction = p
	}
	if v, ok := toFloat(args[0]); ok {
		a.values = append(a.values, v)
	}
	return nil
}

func (a *sampleAggregate) WindowInverse(_ *sqlite.FunctionContext, args []driver.Value) error {
	v, ok := toFloat(args[0])
	if !ok {
		return nil
	}
	if i := slices.Index(a.values, v); i >= 0 {
		a.values = slices.Delete(a.values, i, i+1)
	}
	return nil
}

func (a *sampleAggregate) WindowValue(_ *sqlite.FunctionContext) (driver.Value, error) {
	return a.final(a.values)
}

func (a *sampleAggregate) Final(_ *sqlite.FunctionContext) {}

func toFloat(v driver.Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func medianOf(values []float64) (driver.Value, error) {
	if len(values) == 0 {
		return nil, nil
	}
	m, err := stats.Median(values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", funcMedian, err)
	}
	return m, nil
}

func stdDevOf(values []float64) (driver.Value, error) {
	if len(values) < 2 {
		return nil, nil
	}
	sd, err := stats.StandardDeviationSample(values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", funcStdDev, err)
	}
	return sd, nil
}

// percentileOf interpolates linearly between the closest ranks.
func percentileOf(values []float64, fraction float64) (driver.Value, error) {
	if len(values) == 0 {
		return nil, nil
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	rank := fraction * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower], nil
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight, nil
}
