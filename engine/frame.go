package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/tabsh/domain/model"
)

// Frame is a lazy, immutable query over the engine's catalog. Building a
// frame never touches data; every Collect re-runs the query.
type Frame struct {
	engine *Engine
	query  string
	fields []model.ColumnInfo
	// raw frames come from user SQL and may not be valid subqueries until
	// their fields are known.
	raw bool
}

// Fields returns the output columns. Raw SQL frames report no fields until
// collected.
func (f *Frame) Fields() []model.ColumnInfo {
	out := make([]model.ColumnInfo, len(f.fields))
	copy(out, f.fields)
	return out
}

func (f *Frame) derive(query string, fields []model.ColumnInfo) *Frame {
	return &Frame{engine: f.engine, query: query, fields: fields}
}

func (f *Frame) from() string {
	return "(" + f.query + ")"
}

func selectList(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.sql + " AS " + quoteIdent(e.name)
	}
	return strings.Join(parts, ", ")
}

func (f *Frame) outputFields(exprs []Expr) []model.ColumnInfo {
	fields := make([]model.ColumnInfo, len(exprs))
	for i, e := range exprs {
		fields[i] = model.ColumnInfo{Name: e.name, Type: e.resolve(f.fields)}
	}
	return fields
}

// Select projects the frame onto exprs.
func (f *Frame) Select(exprs ...Expr) *Frame {
	query := fmt.Sprintf("SELECT %s FROM %s", selectList(exprs), f.from())
	return f.derive(query, f.outputFields(exprs))
}

// Values is a single-row frame of constant expressions sharing f's engine.
func (f *Frame) Values(exprs ...Expr) *Frame {
	return f.derive("SELECT "+selectList(exprs), f.outputFields(exprs))
}

// Aggregate groups by groupBy and evaluates aggs per group. Without
// grouping keys the result is a single row.
func (f *Frame) Aggregate(groupBy []Expr, aggs []Expr) (*Frame, error) {
	if len(groupBy) == 0 && len(aggs) == 0 {
		return nil, ErrEmptyAggregate
	}

	exprs := make([]Expr, 0, len(groupBy)+len(aggs))
	exprs = append(exprs, groupBy...)
	exprs = append(exprs, aggs...)

	query := fmt.Sprintf("SELECT %s FROM %s", selectList(exprs), f.from())
	if len(groupBy) > 0 {
		keys := make([]string, len(groupBy))
		for i, g := range groupBy {
			keys[i] = g.sql
		}
		query += " GROUP BY " + strings.Join(keys, ", ")
	}
	return f.derive(query, f.outputFields(exprs)), nil
}

// Union stacks other below f. Columns are matched by name, so other may
// list them in a different order.
func (f *Frame) Union(other *Frame) (*Frame, error) {
	if len(f.fields) != len(other.fields) {
		return nil, fmt.Errorf("%w: %d columns vs %d", ErrSchemaMismatch, len(f.fields), len(other.fields))
	}

	left := make([]string, len(f.fields))
	right := make([]string, len(f.fields))
	for i, field := range f.fields {
		if !hasField(other.fields, field.Name) {
			return nil, fmt.Errorf("%w: column %q missing on the right", ErrSchemaMismatch, field.Name)
		}
		left[i] = quoteIdent(field.Name)
		right[i] = quoteIdent(field.Name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s UNION ALL SELECT %s FROM %s",
		strings.Join(left, ", "), f.from(), strings.Join(right, ", "), other.from())
	return f.derive(query, f.Fields()), nil
}

func hasField(fields []model.ColumnInfo, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// SortKey orders a frame by one column.
type SortKey struct {
	Column     string
	Descending bool
}

// Asc sorts by column in ascending order.
func Asc(column string) SortKey { return SortKey{Column: column} }

// Desc sorts by column in descending order.
func Desc(column string) SortKey { return SortKey{Column: column, Descending: true} }

// Sort orders the frame by keys.
func (f *Frame) Sort(keys ...SortKey) *Frame {
	if len(keys) == 0 {
		return f
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		dir := "ASC"
		if k.Descending {
			dir = "DESC"
		}
		parts[i] = quoteIdent(k.Column) + " " + dir
	}
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", f.from(), strings.Join(parts, ", "))
	return f.derive(query, f.Fields())
}

// Limit keeps at most n rows.
func (f *Frame) Limit(n int) *Frame {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %s", f.from(), strconv.Itoa(n))
	return f.derive(query, f.Fields())
}

// Collect runs the query and materializes the result.
func (f *Frame) Collect(ctx context.Context) (*Result, error) {
	rows, err := f.engine.db.QueryContext(ctx, f.query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSQL, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	columns := make([]model.ColumnInfo, len(names))
	if !f.raw && len(f.fields) == len(names) {
		copy(columns, f.fields)
	} else {
		types, err := rows.ColumnTypes()
		if err != nil {
			return nil, err
		}
		for i, name := range names {
			columns[i] = model.ColumnInfo{Name: name, Type: model.ParseColumnType(types[i].DatabaseTypeName())}
		}
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
