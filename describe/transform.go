package describe

import (
	"github.com/nao1215/tabsh/domain/model"
	"github.com/nao1215/tabsh/engine"
)

type transform func(engine.Expr) engine.Expr

func identity(e engine.Expr) engine.Expr { return e }

func boolLength(e engine.Expr) engine.Expr { return engine.Length(engine.BoolText(e)) }

// normalizers rewrite each field into a number so that one aggregation
// pipeline serves every column type.
var normalizers = map[model.ColumnType]transform{
	model.ColumnTypeInteger:  identity,
	model.ColumnTypeReal:     identity,
	model.ColumnTypeDatetime: engine.Epoch,
	model.ColumnTypeList:     engine.ArrayLength,
	model.ColumnTypeBoolean:  boolLength,
	model.ColumnTypeText:     engine.Length,
	model.ColumnTypeBinary:   engine.Length,
}

// orderers prepare fields for Min and Max. Text keeps its raw values so
// that the extremes are lexicographic.
var orderers = map[model.ColumnType]transform{
	model.ColumnTypeInteger:  identity,
	model.ColumnTypeReal:     identity,
	model.ColumnTypeDatetime: engine.Epoch,
	model.ColumnTypeList:     engine.ArrayLength,
	model.ColumnTypeText:     identity,
}

func lookup(table map[model.ColumnType]transform, ct model.ColumnType) transform {
	if fn, ok := table[ct]; ok {
		return fn
	}
	return engine.Length
}

// castBack restores a summary column. valueLabels are the rows whose
// cells are values of the field, as opposed to counts.
func castBack(field model.ColumnInfo, label string, valueLabels []string) engine.Expr {
	col := engine.Col(field.Name)
	switch {
	case field.Type.IsTemporal() && len(valueLabels) > 0:
		return engine.CaseWhen(
			engine.InList(engine.Col(label), valueLabels...),
			engine.FromEpoch(col),
			col,
		).As(field.Name)
	case field.Type.IsList():
		return engine.CastInteger(col).As(field.Name)
	default:
		return col
	}
}
