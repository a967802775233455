package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/tabsh/domain/model"
)

func numbersFrame(t *testing.T) (*Engine, *Frame) {
	t.Helper()
	e := newTestEngine(t)
	path := writeTestFile(t, t.TempDir(), "numbers.csv", []byte("g,x\na,1\na,2\nb,3\nb,4\nb,\n"))
	register(t, e, "numbers", path)
	frame, err := e.Table(context.Background(), "numbers")
	require.NoError(t, err)
	return e, frame
}

func TestAggregateRequiresExpressions(t *testing.T) {
	t.Parallel()

	_, frame := numbersFrame(t)
	_, err := frame.Aggregate(nil, nil)
	require.ErrorIs(t, err, ErrEmptyAggregate)
}

func TestAggregateWithoutGrouping(t *testing.T) {
	t.Parallel()

	_, frame := numbersFrame(t)
	agg, err := frame.Aggregate(nil, []Expr{
		Count(Col("x")).As("count"),
		Sum(IsNullIndicator(Col("x"))).As("nulls"),
		Min(Col("x")).As("min"),
		Max(Col("x")).As("max"),
		Avg(Col("x")).As("mean"),
		Median(Col("x")).As("median"),
		StdDev(Col("x")).As("stddev"),
		ApproxPercentileCont(Col("x"), 0.25).As("p25"),
	})
	require.NoError(t, err)

	result, err := agg.Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.NumRows())

	assert.Equal(t, model.ColumnTypeInteger, result.Columns[2].Type)
	assert.Equal(t, []string{"4", "1", "1", "4", "2.5", "2.5", "1.2909944487358056", "1.75"}, result.Strings()[0])
}

func TestAggregateWithGrouping(t *testing.T) {
	t.Parallel()

	_, frame := numbersFrame(t)
	agg, err := frame.Aggregate([]Expr{Col("g")}, []Expr{Median(Col("x")).As("median"), StdDev(Col("x")).As("sd")})
	require.NoError(t, err)

	result, err := agg.Sort(Asc("g")).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"a", "1.5", "0.7071067811865476"},
		{"b", "3.5", "0.7071067811865476"},
	}, result.Strings())
}

func TestStdDevOfSingleValueIsNull(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	register(t, e, "one", writeTestFile(t, t.TempDir(), "one.csv", []byte("x\n5\n")))
	frame, err := e.Table(context.Background(), "one")
	require.NoError(t, err)

	agg, err := frame.Aggregate(nil, []Expr{StdDev(Col("x")).As("sd"), Median(Col("x")).As("m")})
	require.NoError(t, err)
	result, err := agg.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"null", "5.0"}}, result.Strings())
}

func TestValuesUnionSortLimit(t *testing.T) {
	t.Parallel()

	_, frame := numbersFrame(t)
	first := frame.Values(Lit("z").As("label"), Lit(1).As("n"))
	second := frame.Values(Lit(2).As("n"), Lit("a").As("label"))

	union, err := first.Union(second)
	require.NoError(t, err)
	assert.Equal(t, []string{"label", "n"}, fieldNames(union.Fields()))

	result, err := union.Sort(Asc("label")).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "2"}, {"z", "1"}}, result.Strings())

	result, err = union.Sort(Desc("n")).Limit(1).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "2"}}, result.Strings())
}

func TestUnionSchemaMismatch(t *testing.T) {
	t.Parallel()

	_, frame := numbersFrame(t)
	tests := []struct {
		name  string
		other *Frame
	}{
		{name: "column count", other: frame.Values(Lit(1).As("a"))},
		{name: "column name", other: frame.Values(Lit(1).As("g"), Lit(2).As("y"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := frame.Union(tt.other)
			require.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestSelectKeepsColumnTypes(t *testing.T) {
	t.Parallel()

	_, frame := numbersFrame(t)
	selected := frame.Select(Col("x"), Length(Col("g")).As("len"), Null().As("nothing"))
	assert.Equal(t, []model.ColumnInfo{
		{Name: "x", Type: model.ColumnTypeInteger},
		{Name: "len", Type: model.ColumnTypeInteger},
		{Name: "nothing", Type: model.ColumnTypeText},
	}, selected.Fields())

	result, err := selected.Limit(1).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "1", "null"}}, result.Strings())
}

func TestEpochRoundTrip(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	register(t, e, "days", writeTestFile(t, t.TempDir(), "days.csv", []byte("d\n2023-01-15\n2023-01-17\n")))
	frame, err := e.Table(context.Background(), "days")
	require.NoError(t, err)

	agg, err := frame.Aggregate(nil, []Expr{
		Min(Epoch(Col("d"))).As("lo"),
		Max(Epoch(Col("d"))).As("hi"),
	})
	require.NoError(t, err)
	back := agg.Select(FromEpoch(Col("lo")).As("lo"), FromEpoch(Col("hi")).As("hi"))

	result, err := back.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"2023-01-15 00:00:00", "2023-01-17 00:00:00"}}, result.Strings())
}

func fieldNames(fields []model.ColumnInfo) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
