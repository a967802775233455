package model

import (
	"strconv"
	"strings"
	"time"
)

// datetimeLayout is a layout accepted for DATETIME cells. Fractional seconds
// are accepted after any seconds field without being spelled out.
type datetimeLayout struct {
	layout string
	date   bool
	clock  bool
}

var datetimeLayouts = []datetimeLayout{
	{layout: time.RFC3339, date: true, clock: true},
	{layout: "2006-01-02T15:04:05", date: true, clock: true},
	{layout: "2006-01-02 15:04:05", date: true, clock: true},
	{layout: "2006-01-02", date: true},
	{layout: "1/2/2006 15:04:05", date: true, clock: true},
	{layout: "1/2/2006 3:04:05 PM", date: true, clock: true},
	{layout: "1/2/2006", date: true},
	{layout: "2.1.2006 15:04:05", date: true, clock: true},
	{layout: "2.1.2006", date: true},
	{layout: "15:04:05", clock: true},
	{layout: "15:04", clock: true},
}

// parseDatetime returns the parsed time and the layout that matched.
func parseDatetime(value string) (time.Time, datetimeLayout, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value[0] < '0' || value[0] > '9' || !strings.ContainsAny(value, "-/.:") {
		return time.Time{}, datetimeLayout{}, false
	}
	for _, l := range datetimeLayouts {
		if t, err := time.Parse(l.layout, value); err == nil {
			return t, l, true
		}
	}
	return time.Time{}, datetimeLayout{}, false
}

func isDatetime(value string) bool {
	_, _, ok := parseDatetime(value)
	return ok
}

// NormalizeDatetime rewrites a recognized datetime into the ISO8601 form
// understood by SQLite date functions. Time-only values and unrecognized
// text are returned unchanged.
func NormalizeDatetime(value string) string {
	t, l, ok := parseDatetime(value)
	switch {
	case !ok || !l.date:
		return value
	case !l.clock:
		return t.Format("2006-01-02")
	}
	t = t.UTC()
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02 15:04:05.000")
	}
	return t.Format("2006-01-02 15:04:05")
}

// cellKind is a bit set of the kinds seen in a column.
type cellKind uint8

const (
	kindInteger cellKind = 1 << iota
	kindReal
	kindDatetime
	kindBoolean
	kindText
)

func classifyCell(value string) cellKind {
	if _, ok := parseBool(value); ok {
		return kindBoolean
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return kindInteger
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return kindReal
	}
	if isDatetime(value) {
		return kindDatetime
	}
	return kindText
}

// columnType resolves the kinds seen in a column. Numbers widen to REAL;
// any other mix of kinds falls back to TEXT.
func (k cellKind) columnType() ColumnType {
	switch {
	case k == 0, k&kindText != 0:
		return ColumnTypeText
	case k == kindBoolean:
		return ColumnTypeBoolean
	case k == kindDatetime:
		return ColumnTypeDatetime
	case k == kindInteger:
		return ColumnTypeInteger
	case k&^(kindInteger|kindReal) == 0:
		return ColumnTypeReal
	default:
		return ColumnTypeText
	}
}

// InferColumnType infers the column type of a sample of text cells. Blank
// cells are ignored; a column with no values is TEXT.
func InferColumnType(values []string) ColumnType {
	var seen cellKind
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen |= classifyCell(v)
		if seen&kindText != 0 {
			break
		}
	}
	return seen.columnType()
}

// InferColumnsInfo infers the columns of a header from sample records.
func InferColumnsInfo(header Header, records []Record) []ColumnInfo {
	if len(header) == 0 {
		return nil
	}
	columns := make([]ColumnInfo, len(header))
	sample := make([]string, 0, len(records))
	for i, name := range header {
		sample = sample[:0]
		for _, r := range records {
			if i < len(r) {
				sample = append(sample, r[i])
			}
		}
		columns[i] = ColumnInfo{Name: name, Type: InferColumnType(sample)}
	}
	return columns
}
