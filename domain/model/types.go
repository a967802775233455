// Package model provides domain model for tabsh
package model

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Header is the ordered list of column names of a source.
type Header []string

// NewHeader create new Header.
func NewHeader(h []string) Header {
	return Header(h)
}

// Record is one row of a text source.
type Record []string

// NewRecord create new Record.
func NewRecord(r []string) Record {
	return Record(r)
}

// ColumnType represents the semantic type of a column.
type ColumnType int

const (
	// ColumnTypeText represents TEXT column type
	ColumnTypeText ColumnType = iota
	// ColumnTypeInteger represents INTEGER column type
	ColumnTypeInteger
	// ColumnTypeReal represents REAL column type
	ColumnTypeReal
	// ColumnTypeDatetime represents datetime stored as ISO8601 text
	ColumnTypeDatetime
	// ColumnTypeBoolean represents a boolean stored as 0/1
	ColumnTypeBoolean
	// ColumnTypeList represents a list stored as a JSON array
	ColumnTypeList
	// ColumnTypeBinary represents raw bytes
	ColumnTypeBinary
)

const (
	sqlTypeText     = "TEXT"
	sqlTypeInteger  = "INTEGER"
	sqlTypeReal     = "REAL"
	sqlTypeDatetime = "DATETIME"
	sqlTypeBoolean  = "BOOLEAN"
	sqlTypeList     = "LIST"
	sqlTypeBinary   = "BLOB"
)

// String returns the declared SQL column type. The declared name is what
// carries the semantic type through the SQLite catalog.
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeText:
		return sqlTypeText
	case ColumnTypeInteger:
		return sqlTypeInteger
	case ColumnTypeReal:
		return sqlTypeReal
	case ColumnTypeDatetime:
		return sqlTypeDatetime
	case ColumnTypeBoolean:
		return sqlTypeBoolean
	case ColumnTypeList:
		return sqlTypeList
	case ColumnTypeBinary:
		return sqlTypeBinary
	default:
		return sqlTypeText
	}
}

// ParseColumnType maps a declared SQL type back to a ColumnType.
// Unknown declarations are treated as text.
func ParseColumnType(declared string) ColumnType {
	declared = strings.ToUpper(strings.TrimSpace(declared))
	switch {
	case declared == sqlTypeDatetime, declared == "DATE", declared == "TIMESTAMP",
		strings.HasPrefix(declared, "TIMESTAMP"):
		return ColumnTypeDatetime
	case declared == sqlTypeBoolean, declared == "BOOL":
		return ColumnTypeBoolean
	case declared == sqlTypeList:
		return ColumnTypeList
	case declared == sqlTypeBinary:
		return ColumnTypeBinary
	case strings.HasPrefix(declared, "INTERVAL"), strings.Contains(declared, "POINT"):
		return ColumnTypeText
	case strings.Contains(declared, "INT"):
		return ColumnTypeInteger
	case strings.Contains(declared, "REAL"), strings.Contains(declared, "FLOA"),
		strings.Contains(declared, "DOUB"), strings.Contains(declared, "NUMERIC"),
		strings.Contains(declared, "DECIMAL"):
		return ColumnTypeReal
	default:
		return ColumnTypeText
	}
}

// IsNumeric reports whether the type holds integer or floating-point values.
func (ct ColumnType) IsNumeric() bool {
	return ct == ColumnTypeInteger || ct == ColumnTypeReal
}

// IsTemporal reports whether the type holds date/time values.
func (ct ColumnType) IsTemporal() bool {
	return ct == ColumnTypeDatetime
}

// IsList reports whether the type holds list values.
func (ct ColumnType) IsList() bool {
	return ct == ColumnTypeList
}

// IsOrderable reports whether min/max are meaningful for the type.
func (ct ColumnType) IsOrderable() bool {
	return ct != ColumnTypeBoolean && ct != ColumnTypeBinary
}

// ColumnInfo represents column information with name and type
type ColumnInfo struct {
	Name string
	Type ColumnType
}

// ConvertValue converts a text cell into the value inserted for a column of
// type ct. Empty cells become NULL.
func ConvertValue(ct ColumnType, value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	switch ct {
	case ColumnTypeInteger:
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return i
		}
	case ColumnTypeReal:
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	case ColumnTypeDatetime:
		return NormalizeDatetime(trimmed)
	case ColumnTypeBoolean:
		if b, ok := parseBool(trimmed); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
	case ColumnTypeList:
		var list []any
		if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
			return trimmed
		}
	}
	return value
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
