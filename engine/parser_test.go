package engine

import (
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/tabsh/domain/model"
)

func TestValidateColumnNames(t *testing.T) {
	t.Parallel()

	t.Run("fills blanks and strips bom", func(t *testing.T) {
		t.Parallel()

		got, err := validateColumnNames([]string{"\ufeffid", " name ", ""})
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "column3"}, got)
	})

	t.Run("duplicates", func(t *testing.T) {
		t.Parallel()

		_, err := validateColumnNames([]string{"a", "b", "a "})
		require.ErrorIs(t, err, model.ErrDuplicateColumnName)
	})

	t.Run("duplicates differing in case", func(t *testing.T) {
		t.Parallel()

		_, err := validateColumnNames([]string{"X", "x"})
		require.ErrorIs(t, err, model.ErrDuplicateColumnName)
	})
}

func TestJSONColumnType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []any
		want   model.ColumnType
	}{
		{name: "all null", values: []any{nil, nil}, want: model.ColumnTypeText},
		{name: "integers", values: []any{json.Number("1"), nil, json.Number("2")}, want: model.ColumnTypeInteger},
		{name: "mixed numbers", values: []any{json.Number("1"), json.Number("2.5")}, want: model.ColumnTypeReal},
		{name: "booleans", values: []any{true, false}, want: model.ColumnTypeBoolean},
		{name: "dates", values: []any{"2023-01-01", "2023-02-01"}, want: model.ColumnTypeDatetime},
		{name: "lists", values: []any{[]any{1}, []any{}}, want: model.ColumnTypeList},
		{name: "objects", values: []any{map[string]any{"a": 1}}, want: model.ColumnTypeText},
		{name: "number and text", values: []any{json.Number("1"), "x"}, want: model.ColumnTypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, jsonColumnType(tt.values))
		})
	}
}

func TestArrowColumnType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dt   arrow.DataType
		want model.ColumnType
	}{
		{name: "int32", dt: arrow.PrimitiveTypes.Int32, want: model.ColumnTypeInteger},
		{name: "float64", dt: arrow.PrimitiveTypes.Float64, want: model.ColumnTypeReal},
		{name: "bool", dt: arrow.FixedWidthTypes.Boolean, want: model.ColumnTypeBoolean},
		{name: "string", dt: arrow.BinaryTypes.String, want: model.ColumnTypeText},
		{name: "binary", dt: arrow.BinaryTypes.Binary, want: model.ColumnTypeBinary},
		{name: "date32", dt: arrow.FixedWidthTypes.Date32, want: model.ColumnTypeDatetime},
		{name: "timestamp", dt: arrow.FixedWidthTypes.Timestamp_ms, want: model.ColumnTypeDatetime},
		{name: "list", dt: arrow.ListOf(arrow.PrimitiveTypes.Int64), want: model.ColumnTypeList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, arrowColumnType(tt.dt))
		})
	}
}
