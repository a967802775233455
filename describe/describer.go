// Package describe computes summary statistics over every field of a
// frame, whatever the field types.
package describe

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nao1215/tabsh/domain/model"
	"github.com/nao1215/tabsh/engine"
)

// LabelColumn is the name of the column holding the statistic label.
const LabelColumn = "describe"

// Describer builds the summary frame of one input frame.
type Describer struct {
	frame   *engine.Frame
	methods []Method
	logger  *zap.Logger
}

// Option configures a Describer.
type Option func(*Describer)

// WithMethods replaces the default statistics.
func WithMethods(methods ...Method) Option {
	return func(d *Describer) {
		if len(methods) > 0 {
			d.methods = methods
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Describer) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a Describer for frame.
func New(frame *engine.Frame, opts ...Option) *Describer {
	d := &Describer{
		frame:   frame,
		methods: DefaultMethods(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Describe returns a lazy frame with one row per statistic and one column
// per field, after a leading label column. Rows are sorted by label.
func (d *Describer) Describe() (*engine.Frame, error) {
	if len(d.methods) == 0 {
		return nil, ErrNoMethods
	}
	fields := d.frame.Fields()
	for _, f := range fields {
		if f.Name == LabelColumn {
			return nil, fmt.Errorf("%w: %s", ErrLabelConflict, f.Name)
		}
	}
	for _, m := range d.methods {
		if err := m.validate(); err != nil {
			return nil, err
		}
	}

	normalized := d.frame.Select(project(fields, normalizers)...)
	ordered := d.frame.Select(project(fields, orderers)...)

	var summary *engine.Frame
	var valueLabels []string
	for _, m := range d.methods {
		view := normalized
		if m.ordered() {
			view = ordered
		}
		row, err := d.statistic(view, fields, m)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s: %w", m, err)
		}
		if m.valueDomain() {
			valueLabels = append(valueLabels, m.String())
		}

		if summary == nil {
			summary = row
			continue
		}
		if summary, err = summary.Union(row); err != nil {
			return nil, fmt.Errorf("failed to combine %s: %w", m, err)
		}
	}
	exprs := make([]engine.Expr, 0, len(fields)+1)
	exprs = append(exprs, engine.Col(LabelColumn))
	for _, f := range fields {
		exprs = append(exprs, castBack(f, LabelColumn, valueLabels))
	}
	return summary.Select(exprs...).Sort(engine.Asc(LabelColumn)), nil
}

// statistic computes one labelled row of m over view. Fields m does not
// apply to are NULL.
func (d *Describer) statistic(view *engine.Frame, fields []model.ColumnInfo, m Method) (*engine.Frame, error) {
	label := engine.Lit(m.String()).As(LabelColumn)

	aggs := make([]engine.Expr, 0, len(fields))
	for _, f := range fields {
		if m.eligible(f.Type) {
			aggs = append(aggs, m.aggregate(engine.Col(f.Name)).As(f.Name))
		}
	}

	agg, err := view.Aggregate(nil, aggs)
	if errors.Is(err, engine.ErrEmptyAggregate) {
		d.logger.Debug("no eligible fields, using null placeholders", zap.Stringer("method", m))
		exprs := []engine.Expr{label}
		for _, f := range fields {
			exprs = append(exprs, engine.Null().As(f.Name))
		}
		return view.Values(exprs...), nil
	}
	if err != nil {
		return nil, err
	}

	exprs := []engine.Expr{label}
	for _, f := range fields {
		if m.eligible(f.Type) {
			exprs = append(exprs, engine.Col(f.Name))
		} else {
			exprs = append(exprs, engine.Null().As(f.Name))
		}
	}
	return agg.Select(exprs...), nil
}

func project(fields []model.ColumnInfo, table map[model.ColumnType]transform) []engine.Expr {
	exprs := make([]engine.Expr, len(fields))
	for i, f := range fields {
		exprs[i] = lookup(table, f.Type)(engine.Col(f.Name)).As(f.Name)
	}
	return exprs
}
