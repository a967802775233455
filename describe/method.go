package describe

import (
	"fmt"

	"github.com/nao1215/tabsh/domain/model"
	"github.com/nao1215/tabsh/engine"
)

type methodKind int

const (
	kindTotal methodKind = iota
	kindNullTotal
	kindMin
	kindMax
	kindMean
	kindMedian
	kindStdDev
	kindPercentile
)

// Method is one summary statistic. Each method contributes one row to the
// describe output.
type Method struct {
	kind methodKind
	p    int
}

var (
	// Total counts the non-null values of a field.
	Total = Method{kind: kindTotal}
	// NullTotal counts the null values of a field.
	NullTotal = Method{kind: kindNullTotal}
	// Min is the smallest value. Strings compare lexicographically.
	Min = Method{kind: kindMin}
	// Max is the largest value. Strings compare lexicographically.
	Max = Method{kind: kindMax}
	// Mean is the arithmetic mean of a numeric field.
	Mean = Method{kind: kindMean}
	// Median is the median of a numeric field.
	Median = Method{kind: kindMedian}
	// StdDev is the sample standard deviation of a numeric field.
	StdDev = Method{kind: kindStdDev}
)

// Percentile is the continuous percentile p, given in 0..100.
func Percentile(p int) Method {
	return Method{kind: kindPercentile, p: p}
}

// DefaultMethods returns the statistics computed when none are configured.
func DefaultMethods() []Method {
	return MethodsWithPercentiles(25, 75)
}

// MethodsWithPercentiles returns the fixed statistics followed by one
// Percentile per entry of ps.
func MethodsWithPercentiles(ps ...int) []Method {
	methods := []Method{Total, NullTotal, Min, Max, Mean, Median, StdDev}
	for _, p := range ps {
		methods = append(methods, Percentile(p))
	}
	return methods
}

// String returns the label of the method's output row.
func (m Method) String() string {
	switch m.kind {
	case kindTotal:
		return "Total"
	case kindNullTotal:
		return "NullTotal"
	case kindMin:
		return "Min"
	case kindMax:
		return "Max"
	case kindMean:
		return "Mean"
	case kindMedian:
		return "Median"
	case kindStdDev:
		return "StdDev"
	case kindPercentile:
		return fmt.Sprintf("Percentile(%d)", m.p)
	default:
		return "Unknown"
	}
}

func (m Method) validate() error {
	if m.kind == kindPercentile && (m.p < 0 || m.p > 100) {
		return fmt.Errorf("%w: %d", ErrInvalidPercentile, m.p)
	}
	return nil
}

// eligible reports whether a field of type ct takes part in the method.
func (m Method) eligible(ct model.ColumnType) bool {
	switch m.kind {
	case kindMin, kindMax:
		return ct.IsOrderable()
	case kindMean, kindMedian, kindStdDev:
		return ct.IsNumeric()
	default:
		return true
	}
}

// ordered reports whether the method runs on the ordered view instead of
// the normalized one.
func (m Method) ordered() bool {
	return m.kind == kindMin || m.kind == kindMax
}

// valueDomain reports whether the method's result is a value of the field
// rather than a count or a moment.
func (m Method) valueDomain() bool {
	return m.kind == kindMin || m.kind == kindMax || m.kind == kindPercentile
}

func (m Method) aggregate(e engine.Expr) engine.Expr {
	switch m.kind {
	case kindTotal:
		return engine.Count(e)
	case kindNullTotal:
		return engine.Sum(engine.IsNullIndicator(e))
	case kindMin:
		return engine.Min(e)
	case kindMax:
		return engine.Max(e)
	case kindMean:
		return engine.Avg(e)
	case kindMedian:
		return engine.Median(e)
	case kindStdDev:
		return engine.StdDev(e)
	default:
		return engine.ApproxPercentileCont(e, float64(m.p)/100.0)
	}
}
