package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"

	"github.com/nao1215/tabsh/domain/model"
)

// chunk is a batch of rows together with the column layout of its source.
type chunk struct {
	columns []model.ColumnInfo
	rows    [][]any
}

// chunkProcessor consumes chunks in source order.
type chunkProcessor func(*chunk) error

// source yields the rows of a dataset in chunks. The processor is called at
// least once, with an empty chunk for a source that has columns but no rows.
type source interface {
	processInChunks(ctx context.Context, chunkSize int, fn chunkProcessor) error
	Close() error
}

// fileSource reads a local, possibly compressed, file.
type fileSource struct {
	conn   model.DatasetConn
	file   *os.File
	reader io.ReadCloser
}

// openFileSource validates the path and opens a decompressed reader on it.
func openFileSource(conn model.DatasetConn) (*fileSource, error) {
	path := conn.Source
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedSource, path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyData, path)
	}

	file, err := os.Open(path) //nolint:gosec // path is supplied by the shell user
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	reader, err := decompress(file, conn.Compression)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &fileSource{conn: conn, file: file, reader: reader}, nil
}

func (s *fileSource) processInChunks(ctx context.Context, chunkSize int, fn chunkProcessor) error {
	switch s.conn.Kind {
	case model.DatasetKindCSV:
		return processDelimited(s.reader, ',', chunkSize, fn)
	case model.DatasetKindTSV:
		return processDelimited(s.reader, '\t', chunkSize, fn)
	case model.DatasetKindNDJSON:
		return processJSON(s.reader, chunkSize, fn)
	case model.DatasetKindParquet:
		return processParquet(ctx, s.reader, chunkSize, fn)
	case model.DatasetKindXLSX:
		return processXLSX(s.reader, chunkSize, fn)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedSource, s.conn.Kind)
	}
}

func (s *fileSource) Close() error {
	return multierr.Append(s.reader.Close(), s.file.Close())
}

// validateColumnNames rejects duplicate names, ignoring case, and fills in
// blank ones.
func validateColumnNames(names []string) ([]string, error) {
	out := make([]string, len(names))
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = "column" + strconv.Itoa(i+1)
		}
		// SQLite compares column names case-insensitively.
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s", model.ErrDuplicateColumnName, name)
		}
		seen[key] = struct{}{}
		out[i] = name
	}
	return out, nil
}

// textChunker buffers text records and infers column types from the first
// chunk, in the same way for every text-based format.
type textChunker struct {
	header  model.Header
	columns []model.ColumnInfo
	buf     []model.Record
	size    int
	fn      chunkProcessor
}

func newTextChunker(header []string, size int, fn chunkProcessor) (*textChunker, error) {
	names, err := validateColumnNames(header)
	if err != nil {
		return nil, err
	}
	return &textChunker{
		header: model.NewHeader(names),
		buf:    make([]model.Record, 0, size),
		size:   size,
		fn:     fn,
	}, nil
}

func (c *textChunker) add(values []string) error {
	record := make(model.Record, len(c.header))
	copy(record, values)
	c.buf = append(c.buf, record)
	if len(c.buf) >= c.size {
		return c.flush()
	}
	return nil
}

func (c *textChunker) flush() error {
	if c.columns == nil {
		c.columns = model.InferColumnsInfo(c.header, c.buf)
	}
	rows := make([][]any, len(c.buf))
	for i, record := range c.buf {
		row := make([]any, len(c.columns))
		for j, col := range c.columns {
			row[j] = model.ConvertValue(col.Type, record[j])
		}
		rows[i] = row
	}
	c.buf = c.buf[:0]
	return c.fn(&chunk{columns: c.columns, rows: rows})
}

// finish emits the remaining rows, or an empty chunk for a header-only source.
func (c *textChunker) finish() error {
	if len(c.buf) > 0 || c.columns == nil {
		return c.flush()
	}
	return nil
}

// processDelimited parses CSV or TSV data.
func processDelimited(reader io.Reader, comma rune, chunkSize int, fn chunkProcessor) error {
	r := csv.NewReader(reader)
	r.Comma = comma
	r.FieldsPerRecord = -1
	if comma == '\t' {
		r.LazyQuotes = true
	}

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return ErrEmptyData
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	chunker, err := newTextChunker(header, chunkSize, fn)
	if err != nil {
		return err
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("parse error: %w", err)
		}
		if err := chunker.add(record); err != nil {
			return err
		}
	}
	return chunker.finish()
}

// processJSON parses newline delimited JSON objects. A document whose first
// token is an array is read as an array of objects instead.
func processJSON(reader io.Reader, chunkSize int, fn chunkProcessor) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read json data: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrEmptyData
	}

	var objects []map[string]any
	if data[0] == '[' {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&objects); err != nil {
			return fmt.Errorf("parse error: %w", err)
		}
	} else {
		for n, line := range bytes.Split(data, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			var obj map[string]any
			dec := json.NewDecoder(bytes.NewReader(line))
			dec.UseNumber()
			if err := dec.Decode(&obj); err != nil {
				return fmt.Errorf("parse error at line %d: %w", n+1, err)
			}
			objects = append(objects, obj)
		}
	}

	// Keys keep first-seen order across objects; keys new in the same
	// object are sorted.
	var keys []string
	seen := make(map[string]struct{})
	for _, obj := range objects {
		fresh := make([]string, 0, len(obj))
		for k := range obj {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				fresh = append(fresh, k)
			}
		}
		slices.Sort(fresh)
		keys = append(keys, fresh...)
	}
	if len(keys) == 0 {
		return ErrEmptyData
	}

	columns := make([]model.ColumnInfo, len(keys))
	for j, k := range keys {
		values := make([]any, len(objects))
		for i, obj := range objects {
			values[i] = obj[k]
		}
		columns[j] = model.ColumnInfo{Name: k, Type: jsonColumnType(values)}
	}

	if len(objects) == 0 {
		return fn(&chunk{columns: columns})
	}
	for start := 0; start < len(objects); start += chunkSize {
		end := min(start+chunkSize, len(objects))
		rows := make([][]any, 0, end-start)
		for _, obj := range objects[start:end] {
			row := make([]any, len(columns))
			for j, col := range columns {
				row[j] = jsonValue(obj[col.Name], col.Type)
			}
			rows = append(rows, row)
		}
		if err := fn(&chunk{columns: columns, rows: rows}); err != nil {
			return err
		}
	}
	return nil
}

// jsonColumnType picks one type for a column of decoded JSON values. Mixed
// kinds fall back to text.
func jsonColumnType(values []any) model.ColumnType {
	var kinds []model.ColumnType
	var texts []string
	add := func(ct model.ColumnType) {
		if !slices.Contains(kinds, ct) {
			kinds = append(kinds, ct)
		}
	}

	for _, v := range values {
		switch val := v.(type) {
		case nil:
		case json.Number:
			if _, err := val.Int64(); err == nil {
				add(model.ColumnTypeInteger)
			} else {
				add(model.ColumnTypeReal)
			}
		case bool:
			add(model.ColumnTypeBoolean)
		case string:
			texts = append(texts, val)
			add(model.ColumnTypeText)
		case []any:
			add(model.ColumnTypeList)
		default:
			add(model.ColumnTypeText)
		}
	}

	switch {
	case len(kinds) == 0:
		return model.ColumnTypeText
	case len(kinds) == 1 && kinds[0] == model.ColumnTypeText:
		if len(texts) > 0 && model.InferColumnType(texts) == model.ColumnTypeDatetime {
			return model.ColumnTypeDatetime
		}
		return model.ColumnTypeText
	case len(kinds) == 1:
		return kinds[0]
	case len(kinds) == 2 && slices.Contains(kinds, model.ColumnTypeInteger) && slices.Contains(kinds, model.ColumnTypeReal):
		return model.ColumnTypeReal
	default:
		return model.ColumnTypeText
	}
}

func jsonValue(v any, ct model.ColumnType) any {
	switch val := v.(type) {
	case nil:
		return nil
	case json.Number:
		switch ct {
		case model.ColumnTypeInteger:
			if i, err := val.Int64(); err == nil {
				return i
			}
		case model.ColumnTypeReal:
			if f, err := val.Float64(); err == nil {
				return f
			}
		}
		return val.String()
	case bool:
		if ct == model.ColumnTypeBoolean {
			if val {
				return int64(1)
			}
			return int64(0)
		}
		return strconv.FormatBool(val)
	case string:
		if ct == model.ColumnTypeDatetime {
			return model.NormalizeDatetime(val)
		}
		return val
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}

// processParquet reads Parquet data. Parquet requires random access, so the
// whole stream is buffered first.
func processParquet(ctx context.Context, reader io.Reader, chunkSize int, fn chunkProcessor) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read parquet data: %w", err)
	}
	if len(data) == 0 {
		return ErrEmptyData
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create parquet reader from bytes: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return fmt.Errorf("failed to create arrow reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return fmt.Errorf("failed to read table: %w", err)
	}
	defer table.Release()

	schema := table.Schema()
	names := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		names[i] = field.Name
	}
	if _, err := validateColumnNames(names); err != nil {
		return err
	}
	columns := make([]model.ColumnInfo, schema.NumFields())
	for i, field := range schema.Fields() {
		columns[i] = model.ColumnInfo{Name: field.Name, Type: arrowColumnType(field.Type)}
	}

	tableReader := array.NewTableReader(table, int64(chunkSize))
	defer tableReader.Release()

	emitted := false
	for tableReader.Next() {
		batch := tableReader.Record()
		rows := make([][]any, batch.NumRows())
		for i := range rows {
			row := make([]any, batch.NumCols())
			for j, col := range batch.Columns() {
				row[j] = arrowValue(col, i, columns[j].Type)
			}
			rows[i] = row
		}
		if err := fn(&chunk{columns: columns, rows: rows}); err != nil {
			return err
		}
		emitted = true
	}
	if err := tableReader.Err(); err != nil {
		return fmt.Errorf("error reading table records: %w", err)
	}
	if !emitted {
		return fn(&chunk{columns: columns})
	}
	return nil
}

// arrowColumnType maps an arrow type to a column type.
func arrowColumnType(dt arrow.DataType) model.ColumnType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return model.ColumnTypeInteger
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128, arrow.DECIMAL256:
		return model.ColumnTypeReal
	case arrow.BOOL:
		return model.ColumnTypeBoolean
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return model.ColumnTypeBinary
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
		return model.ColumnTypeDatetime
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		return model.ColumnTypeList
	default:
		return model.ColumnTypeText
	}
}

// arrowValue extracts row i of col as a value insertable into SQLite.
func arrowValue(col arrow.Array, i int, ct model.ColumnType) any {
	if col.IsNull(i) {
		return nil
	}

	switch arr := col.(type) {
	case *array.Int8:
		return int64(arr.Value(i))
	case *array.Int16:
		return int64(arr.Value(i))
	case *array.Int32:
		return int64(arr.Value(i))
	case *array.Int64:
		return arr.Value(i)
	case *array.Uint8:
		return int64(arr.Value(i))
	case *array.Uint16:
		return int64(arr.Value(i))
	case *array.Uint32:
		return int64(arr.Value(i))
	case *array.Uint64:
		return int64(arr.Value(i)) //nolint:gosec // values above MaxInt64 wrap
	case *array.Float32:
		return float64(arr.Value(i))
	case *array.Float64:
		return arr.Value(i)
	case *array.Boolean:
		if arr.Value(i) {
			return int64(1)
		}
		return int64(0)
	case *array.String:
		return arr.Value(i)
	case *array.LargeString:
		return arr.Value(i)
	case *array.Binary:
		return bytes.Clone(arr.Value(i))
	case *array.LargeBinary:
		return bytes.Clone(arr.Value(i))
	case *array.FixedSizeBinary:
		return bytes.Clone(arr.Value(i))
	case *array.Date32:
		return arr.Value(i).ToTime().Format("2006-01-02")
	case *array.Date64:
		return arr.Value(i).ToTime().Format("2006-01-02")
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return formatDatetime(arr.Value(i).ToTime(unit))
	}

	switch ct {
	case model.ColumnTypeList:
		raw, err := json.Marshal(col.GetOneForMarshal(i))
		if err != nil {
			return col.ValueStr(i)
		}
		return string(raw)
	case model.ColumnTypeInteger, model.ColumnTypeReal:
		return model.ConvertValue(ct, col.ValueStr(i))
	default:
		return col.ValueStr(i)
	}
}

// formatDatetime renders t in the ISO8601 form used for DATETIME columns.
func formatDatetime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02 15:04:05.000")
	}
	return t.Format("2006-01-02 15:04:05")
}

// processXLSX reads the first sheet of a workbook. The first non-empty row
// is the header.
func processXLSX(reader io.Reader, chunkSize int, fn chunkProcessor) error {
	xlsxFile, err := excelize.OpenReader(reader)
	if err != nil {
		return fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer func() {
		_ = xlsxFile.Close() // Ignore close error
	}()

	sheetNames := xlsxFile.GetSheetList()
	if len(sheetNames) == 0 {
		return errors.New("no sheets found in XLSX file")
	}

	sheetName := sheetNames[0]
	rows, err := xlsxFile.Rows(sheetName)
	if err != nil {
		return fmt.Errorf("failed to open rows iterator for sheet %s: %w", sheetName, err)
	}
	defer rows.Close()

	var chunker *textChunker
	for rows.Next() {
		row, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("failed to read row in sheet %s: %w", sheetName, err)
		}
		if chunker == nil {
			if len(row) == 0 {
				continue
			}
			if chunker, err = newTextChunker(row, chunkSize, fn); err != nil {
				return err
			}
			continue
		}
		if err := chunker.add(row); err != nil {
			return err
		}
	}
	if chunker == nil {
		return fmt.Errorf("%w: sheet %s is empty", ErrEmptyData, sheetName)
	}
	return chunker.finish()
}
