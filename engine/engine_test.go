package engine

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"

	"github.com/nao1215/tabsh/domain/model"
)

const sampleCSV = "id,name,score\n1,Alice,9.5\n2,Bob,7\n3,,8.25\n"

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = e.Close()
	})
	return e
}

func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func mustConn(t *testing.T, path string) model.DatasetConn {
	t.Helper()
	conn, err := model.ParseDatasetConn(path)
	require.NoError(t, err)
	return conn
}

func register(t *testing.T, e *Engine, name, path string) *LoadInfo {
	t.Helper()
	info, err := e.Register(context.Background(), name, mustConn(t, path), RegisterOptions{})
	require.NoError(t, err)
	return info
}

func collectTable(t *testing.T, e *Engine, name string) *Result {
	t.Helper()
	frame, err := e.Table(context.Background(), name)
	require.NoError(t, err)
	result, err := frame.Collect(context.Background())
	require.NoError(t, err)
	return result
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestRegisterCSV(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	path := writeTestFile(t, t.TempDir(), "people.csv", []byte(sampleCSV))

	info := register(t, e, "people", path)
	assert.Equal(t, &LoadInfo{Name: "people", Rows: 3, Columns: 3}, info)

	result := collectTable(t, e, "people")
	require.Len(t, result.Columns, 3)
	assert.Equal(t, model.ColumnInfo{Name: "id", Type: model.ColumnTypeInteger}, result.Columns[0])
	assert.Equal(t, model.ColumnInfo{Name: "name", Type: model.ColumnTypeText}, result.Columns[1])
	assert.Equal(t, model.ColumnInfo{Name: "score", Type: model.ColumnTypeReal}, result.Columns[2])

	assert.Equal(t, [][]string{
		{"1", "Alice", "9.5"},
		{"2", "Bob", "7.0"},
		{"3", "null", "8.25"},
	}, result.Strings())
}

func TestRegisterCompressedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := []byte(sampleCSV)
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{name: "gzip", file: "people.csv.gz", data: gzipBytes(t, data)},
		{name: "zstd", file: "people.csv.zst", data: zstdBytes(t, data)},
		{name: "xz", file: "people.csv.xz", data: xzBytes(t, data)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestEngine(t)
			path := writeTestFile(t, dir, tt.file, tt.data)
			info := register(t, e, "people", path)
			assert.Equal(t, int64(3), info.Rows)
			assert.Equal(t, 3, info.Columns)
		})
	}
}

func TestRegisterTSV(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	path := writeTestFile(t, t.TempDir(), "events.tsv", []byte("event\tat\tok\nstart\t2023-01-15\ttrue\nstop\t2023-01-16\tfalse\n"))
	register(t, e, "events", path)

	result := collectTable(t, e, "events")
	assert.Equal(t, model.ColumnTypeDatetime, result.Columns[1].Type)
	assert.Equal(t, model.ColumnTypeBoolean, result.Columns[2].Type)
	assert.Equal(t, [][]string{
		{"start", "2023-01-15", "true"},
		{"stop", "2023-01-16", "false"},
	}, result.Strings())
}

func TestRegisterNDJSON(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	content := `{"id": 1, "tags": ["a", "b"], "active": true}
{"id": 2, "tags": [], "active": false, "note": "late"}
`
	path := writeTestFile(t, t.TempDir(), "items.ndjson", []byte(content))
	info := register(t, e, "items", path)
	assert.Equal(t, int64(2), info.Rows)

	result := collectTable(t, e, "items")
	assert.Equal(t, []model.ColumnInfo{
		{Name: "active", Type: model.ColumnTypeBoolean},
		{Name: "id", Type: model.ColumnTypeInteger},
		{Name: "tags", Type: model.ColumnTypeList},
		{Name: "note", Type: model.ColumnTypeText},
	}, result.Columns)
	assert.Equal(t, [][]string{
		{"true", "1", `["a","b"]`, "null"},
		{"false", "2", "[]", "late"},
	}, result.Strings())
}

func TestRegisterJSONArray(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	path := writeTestFile(t, t.TempDir(), "items.json", []byte(`[{"x": 1.5}, {"x": 2}]`))
	register(t, e, "items", path)

	result := collectTable(t, e, "items")
	assert.Equal(t, model.ColumnTypeReal, result.Columns[0].Type)
	assert.Equal(t, [][]string{{"1.5"}, {"2.0"}}, result.Strings())
}

func TestRegisterXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sales.xlsx")
	book := excelize.NewFile()
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]any{"region", "amount"}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A2", &[]any{"east", 10}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A3", &[]any{"west", 20}))
	require.NoError(t, book.SaveAs(path))
	require.NoError(t, book.Close())

	e := newTestEngine(t)
	info := register(t, e, "sales", path)
	assert.Equal(t, int64(2), info.Rows)

	result := collectTable(t, e, "sales")
	assert.Equal(t, model.ColumnTypeInteger, result.Columns[1].Type)
	assert.Equal(t, [][]string{{"east", "10"}, {"west", "20"}}, result.Strings())
}

func TestRegisterParquet(t *testing.T) {
	t.Parallel()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	builder.Field(1).(*array.StringBuilder).AppendValues([]string{"a", "b", "c"}, []bool{true, false, true})
	record := builder.NewRecord()
	defer record.Release()
	table := array.NewTableFromRecords(schema, []arrow.Record{record})
	defer table.Release()

	var buf bytes.Buffer
	require.NoError(t, pqarrow.WriteTable(table, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))

	dir := t.TempDir()
	tests := []struct {
		file string
		data []byte
	}{
		{file: "rows.parquet", data: buf.Bytes()},
		{file: "rows.parquet.gz", data: gzipBytes(t, buf.Bytes())},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			t.Parallel()

			e := newTestEngine(t)
			register(t, e, "rows", writeTestFile(t, dir, tt.file, tt.data))

			result := collectTable(t, e, "rows")
			assert.Equal(t, model.ColumnTypeInteger, result.Columns[0].Type)
			assert.Equal(t, [][]string{{"1", "a"}, {"2", "null"}, {"3", "c"}}, result.Strings())
		})
	}
}

func TestRegisterInChunks(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, WithChunkSize(2))
	path := writeTestFile(t, t.TempDir(), "people.csv", []byte(sampleCSV))
	info := register(t, e, "people", path)
	assert.Equal(t, int64(3), info.Rows)
	assert.Equal(t, 3, collectTable(t, e, "people").NumRows())
}

func TestRegisterHeaderOnly(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	path := writeTestFile(t, t.TempDir(), "empty.csv", []byte("a,b\n"))
	info := register(t, e, "empty", path)
	assert.Equal(t, int64(0), info.Rows)
	assert.Equal(t, 2, info.Columns)

	result := collectTable(t, e, "empty")
	assert.Equal(t, 0, result.NumRows())
	assert.Len(t, result.Columns, 2)
}

func TestRegisterReplacesExisting(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	dir := t.TempDir()
	register(t, e, "data", writeTestFile(t, dir, "first.csv", []byte("a\n1\n2\n")))
	register(t, e, "data", writeTestFile(t, dir, "second.csv", []byte("b,c\nx,y\n")))

	result := collectTable(t, e, "data")
	assert.Equal(t, "b", result.Columns[0].Name)
	assert.Equal(t, 1, result.NumRows())

	list, err := e.List(context.Background())
	require.NoError(t, err)
	tables, err := list.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, tables.NumRows())
}

func TestRegisterFailureKeepsExisting(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	dir := t.TempDir()
	register(t, e, "data", writeTestFile(t, dir, "good.csv", []byte("a\n1\n")))

	bad := writeTestFile(t, dir, "bad.csv", []byte("a,a\n1,2\n"))
	_, err := e.Register(context.Background(), "data", mustConn(t, bad), RegisterOptions{})
	require.ErrorIs(t, err, model.ErrDuplicateColumnName)

	result := collectTable(t, e, "data")
	assert.Equal(t, [][]string{{"1"}}, result.Strings())
}

func TestRegisterErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := writeTestFile(t, dir, "empty.csv", nil)
	mixedCase := writeTestFile(t, dir, "mixed_case.csv", []byte("X,x\n1,2\n"))
	folder := filepath.Join(dir, "folder.csv")
	require.NoError(t, os.Mkdir(folder, 0750))

	tests := []struct {
		name    string
		dataset string
		conn    model.DatasetConn
		opts    RegisterOptions
		wantErr error
	}{
		{
			name:    "missing file",
			dataset: "x",
			conn:    mustConn(t, filepath.Join(dir, "missing.csv")),
			wantErr: ErrFileNotFound,
		},
		{
			name:    "empty file",
			dataset: "x",
			conn:    mustConn(t, empty),
			wantErr: ErrEmptyData,
		},
		{
			name:    "directory",
			dataset: "x",
			conn:    mustConn(t, folder),
			wantErr: ErrUnsupportedSource,
		},
		{
			name:    "blank name",
			dataset: " ",
			conn:    mustConn(t, empty),
			wantErr: ErrInvalidName,
		},
		{
			name:    "database without table",
			dataset: "x",
			conn:    mustConn(t, "postgres://localhost/db"),
			wantErr: ErrMissingTable,
		},
		{
			name:    "columns differing only in case",
			dataset: "x",
			conn:    mustConn(t, mixedCase),
			wantErr: model.ErrDuplicateColumnName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestEngine(t)
			_, err := e.Register(context.Background(), tt.dataset, tt.conn, tt.opts)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTableNotFound(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	_, err := e.Table(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTableNotFound)

	_, err = e.Schema(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestListAndSchema(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	dir := t.TempDir()
	register(t, e, "b_first", writeTestFile(t, dir, "one.csv", []byte(sampleCSV)))
	register(t, e, "a_second", writeTestFile(t, dir, "two.csv", []byte("x\n1\n")))

	ctx := context.Background()
	list, err := e.List(ctx)
	require.NoError(t, err)
	tables, err := list.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"b_first", "BASE TABLE"},
		{"a_second", "BASE TABLE"},
	}, tables.Strings())

	schema, err := e.Schema(ctx, "b_first")
	require.NoError(t, err)
	columns, err := schema.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "INTEGER", "YES"},
		{"name", "TEXT", "YES"},
		{"score", "REAL", "YES"},
	}, columns.Strings())
}

func TestSQL(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	register(t, e, "people", writeTestFile(t, t.TempDir(), "people.csv", []byte(sampleCSV)))
	ctx := context.Background()

	t.Run("select", func(t *testing.T) {
		frame, err := e.SQL(ctx, "SELECT name, score * 2 AS doubled FROM people WHERE id < 3 ORDER BY id;")
		require.NoError(t, err)
		result, err := frame.Collect(ctx)
		require.NoError(t, err)
		assert.Equal(t, "doubled", result.Columns[1].Name)
		assert.Equal(t, [][]string{{"Alice", "19.0"}, {"Bob", "14.0"}}, result.Strings())
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := e.SQL(ctx, "SELEC 1")
		require.ErrorIs(t, err, ErrInvalidSQL)
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := e.SQL(ctx, "SELECT * FROM missing")
		require.ErrorIs(t, err, ErrInvalidSQL)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := e.SQL(ctx, " ; ")
		require.ErrorIs(t, err, ErrInvalidSQL)
	})
}
