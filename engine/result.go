package engine

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"

	"github.com/nao1215/tabsh/domain/model"
)

// nullText is how NULL cells are displayed.
const nullText = "null"

// Result is a materialized frame.
type Result struct {
	Columns []model.ColumnInfo
	Rows    [][]any
}

// NumRows returns the number of rows.
func (r *Result) NumRows() int { return len(r.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (r *Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row i of the named column.
func (r *Result) Value(i int, column string) (any, bool) {
	j := r.ColumnIndex(column)
	if j < 0 || i < 0 || i >= len(r.Rows) {
		return nil, false
	}
	return r.Rows[i][j], true
}

// Strings renders every cell as display text.
func (r *Result) Strings() [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatValue(v, r.Columns[j].Type)
		}
		out[i] = cells
	}
	return out
}

// String renders the result as a bordered text table. Cells spanning
// several lines keep the borders aligned.
func (r *Result) String() string {
	if len(r.Columns) == 0 {
		return ""
	}

	names := make([]string, len(r.Columns))
	for j, c := range r.Columns {
		names[j] = c.Name
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader(names)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(r.Strings())
	table.Render()
	return sb.String()
}

func formatValue(v any, typ model.ColumnType) string {
	switch val := v.(type) {
	case nil:
		return nullText
	case string:
		return val
	case []byte:
		if utf8.Valid(val) && typ != model.ColumnTypeBinary {
			return string(val)
		}
		return "0x" + hex.EncodeToString(val)
	case int64:
		if typ == model.ColumnTypeBoolean {
			return strconv.FormatBool(val != 0)
		}
		return strconv.FormatInt(val, 10)
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eInN") {
			s += ".0"
		}
		return s
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return formatTime(val)
	default:
		return fmt.Sprint(val)
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02 15:04:05.000")
	}
	return t.Format("2006-01-02 15:04:05")
}
