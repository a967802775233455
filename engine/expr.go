package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/tabsh/domain/model"
)

// unixEpochJulianDay is the Julian day number of 1970-01-01T00:00:00Z.
const unixEpochJulianDay = 2440587.5

// Expr is a column expression used to build frames. The zero value is not
// usable; create expressions with the constructors in this file.
type Expr struct {
	sql  string
	name string
	typ  model.ColumnType
	// typed is false when the type must be resolved from the input frame.
	typed bool
}

// As renames the output column.
func (e Expr) As(name string) Expr {
	e.name = name
	return e
}

func typedExpr(sql string, typ model.ColumnType) Expr {
	return Expr{sql: sql, name: sql, typ: typ, typed: true}
}

// Col references a column of the input frame.
func Col(name string) Expr {
	return Expr{sql: quoteIdent(name), name: name}
}

// Lit is a literal value. Strings are quoted; numbers and booleans are
// written as-is.
func Lit(v any) Expr {
	switch val := v.(type) {
	case nil:
		return Null()
	case string:
		return typedExpr(quoteLiteral(val), model.ColumnTypeText)
	case int:
		return typedExpr(strconv.Itoa(val), model.ColumnTypeInteger)
	case int64:
		return typedExpr(strconv.FormatInt(val, 10), model.ColumnTypeInteger)
	case float64:
		return typedExpr(strconv.FormatFloat(val, 'g', -1, 64), model.ColumnTypeReal)
	case bool:
		if val {
			return typedExpr("1", model.ColumnTypeBoolean)
		}
		return typedExpr("0", model.ColumnTypeBoolean)
	default:
		return typedExpr(quoteLiteral(fmt.Sprint(val)), model.ColumnTypeText)
	}
}

// Null is the NULL literal.
func Null() Expr {
	return typedExpr("NULL", model.ColumnTypeText)
}

func call(fn string, typ model.ColumnType, args ...Expr) Expr {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.sql
	}
	return typedExpr(fn+"("+strings.Join(parts, ", ")+")", typ)
}

// Count counts non-null values.
func Count(e Expr) Expr { return call("count", model.ColumnTypeInteger, e) }

// Sum adds values.
func Sum(e Expr) Expr { return call("sum", model.ColumnTypeReal, e) }

// Min is the smallest value.
func Min(e Expr) Expr { return inherit(call("min", e.typ, e), e) }

// Max is the largest value.
func Max(e Expr) Expr { return inherit(call("max", e.typ, e), e) }

// Avg is the arithmetic mean.
func Avg(e Expr) Expr { return call("avg", model.ColumnTypeReal, e) }

// Median is the middle value of the numeric inputs.
func Median(e Expr) Expr { return call(funcMedian, model.ColumnTypeReal, e) }

// StdDev is the sample standard deviation of the numeric inputs.
func StdDev(e Expr) Expr { return call(funcStdDev, model.ColumnTypeReal, e) }

// ApproxPercentileCont is the continuous percentile at fraction p in [0,1].
func ApproxPercentileCont(e Expr, p float64) Expr {
	return call(funcPercentile, model.ColumnTypeReal, e, Lit(p))
}

// IsNullIndicator is 1 when e is NULL and 0 otherwise.
func IsNullIndicator(e Expr) Expr {
	return typedExpr("CASE WHEN "+e.sql+" IS NULL THEN 1 ELSE 0 END", model.ColumnTypeInteger)
}

// Length is the character length of text or the byte length of a blob.
func Length(e Expr) Expr { return call("length", model.ColumnTypeInteger, e) }

// BoolText renders a 0/1 value as 'true' or 'false'.
func BoolText(e Expr) Expr {
	return typedExpr("CASE WHEN "+e.sql+" IS NULL THEN NULL WHEN "+e.sql+" THEN 'true' ELSE 'false' END",
		model.ColumnTypeText)
}

// ArrayLength is the element count of a JSON array.
func ArrayLength(e Expr) Expr { return call("json_array_length", model.ColumnTypeInteger, e) }

// Epoch converts a datetime to seconds since the Unix epoch.
func Epoch(e Expr) Expr {
	return typedExpr(fmt.Sprintf("((julianday(%s) - %s) * 86400.0)", e.sql,
		strconv.FormatFloat(unixEpochJulianDay, 'f', -1, 64)), model.ColumnTypeReal)
}

// FromEpoch converts seconds since the Unix epoch to a datetime.
func FromEpoch(e Expr) Expr {
	return typedExpr("datetime("+e.sql+", 'unixepoch')", model.ColumnTypeDatetime)
}

// CastInteger casts to INTEGER.
func CastInteger(e Expr) Expr {
	return typedExpr("CAST("+e.sql+" AS INTEGER)", model.ColumnTypeInteger)
}

// InList is true when e equals one of the text values.
func InList(e Expr, values ...string) Expr {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteLiteral(v)
	}
	return typedExpr(e.sql+" IN ("+strings.Join(quoted, ", ")+")", model.ColumnTypeBoolean)
}

// CaseWhen is then when cond holds and otherwise elsewhere.
func CaseWhen(cond, then, otherwise Expr) Expr {
	out := typedExpr("CASE WHEN "+cond.sql+" THEN "+then.sql+" ELSE "+otherwise.sql+" END", then.typ)
	out.typed = then.typed
	return out
}

func inherit(out, in Expr) Expr {
	out.typed = in.typed
	out.typ = in.typ
	return out
}

// resolve returns the output type of e against the input fields.
func (e Expr) resolve(input []model.ColumnInfo) model.ColumnType {
	if e.typed {
		return e.typ
	}
	for _, f := range input {
		if strings.Contains(e.sql, quoteIdent(f.Name)) {
			return f.Type
		}
	}
	return model.ColumnTypeText
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a SQLite string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
