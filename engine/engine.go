package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/nao1215/tabsh/domain/model"
)

// DefaultChunkSize is the number of rows inserted per chunk when loading.
const DefaultChunkSize = 1000

// Engine is the query engine adapter. It owns a private in-memory SQLite
// database whose tables form the dataset catalog.
//
// Engine is not safe for concurrent use; callers serialize access.
type Engine struct {
	db        *sql.DB
	chunkSize int
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithChunkSize sets the number of rows inserted per chunk.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New opens an empty catalog.
func New(opts ...Option) (*Engine, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("failed to register aggregate functions: %w", err)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	e := &Engine{
		db:        db,
		chunkSize: DefaultChunkSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the catalog.
func (e *Engine) Close() error {
	return e.db.Close()
}

// RegisterOptions holds per-registration settings.
type RegisterOptions struct {
	// Table is the source table of a database connection.
	Table string
}

// LoadInfo describes a completed registration.
type LoadInfo struct {
	Name    string
	Rows    int64
	Columns int
}

// Register loads conn into the catalog under name. A table already
// registered under name is replaced; if loading fails it is left intact.
func (e *Engine) Register(ctx context.Context, name string, conn model.DatasetConn, opts RegisterOptions) (*LoadInfo, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	fail := loadFailure(name, conn.Source)

	src, err := e.openSource(ctx, conn, opts)
	if err != nil {
		return nil, fail("", err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			e.logger.Warn("failed to close source", zap.String("source", conn.Source), zap.Error(closeErr))
		}
	}()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fail("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := dropExisting(ctx, tx, name); err != nil {
		return nil, fail("drop previous dataset", err)
	}

	loader := newTableLoader(tx, name)
	err = src.processInChunks(ctx, e.chunkSize, func(c *chunk) error {
		return loader.load(ctx, c)
	})
	closeErr := loader.close()
	if err != nil {
		return nil, fail("", err)
	}
	if closeErr != nil {
		return nil, fail("", closeErr)
	}
	if !loader.created {
		return nil, fail("", ErrEmptyData)
	}

	if err := tx.Commit(); err != nil {
		return nil, fail("commit", err)
	}
	committed = true

	e.logger.Debug("registered dataset",
		zap.String("name", name),
		zap.Stringer("kind", conn.Kind),
		zap.Int64("rows", loader.rows),
		zap.Int("columns", loader.columns))

	return &LoadInfo{Name: name, Rows: loader.rows, Columns: loader.columns}, nil
}

func (e *Engine) openSource(ctx context.Context, conn model.DatasetConn, opts RegisterOptions) (source, error) {
	if conn.IsDatabase() && strings.TrimSpace(opts.Table) == "" {
		return nil, ErrMissingTable
	}

	switch conn.Kind {
	case model.DatasetKindPostgres:
		return openPostgresSource(ctx, conn.Source, opts.Table)
	case model.DatasetKindMySQL:
		dsn, err := mysqlDSN(conn.Source)
		if err != nil {
			return nil, err
		}
		return openSQLSource(ctx, "mysql", dsn, opts.Table)
	case model.DatasetKindSQLServer:
		return openSQLSource(ctx, "sqlserver", conn.Source, opts.Table)
	case model.DatasetKindCSV, model.DatasetKindTSV, model.DatasetKindNDJSON,
		model.DatasetKindParquet, model.DatasetKindXLSX:
		return openFileSource(conn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, conn.Kind)
	}
}

// dropExisting removes a table or view registered under name.
func dropExisting(ctx context.Context, tx *sql.Tx, name string) error {
	var kind string
	err := tx.QueryRowContext(ctx,
		`SELECT type FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`,
		name,
	).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "DROP "+strings.ToUpper(kind)+" "+quoteIdent(name))
	return err
}

// exists reports whether a table or view is registered under name.
func (e *Engine) exists(ctx context.Context, name string) (bool, error) {
	var count int
	err := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`,
		name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

// columns reads the declared schema of a table.
func (e *Engine) columns(ctx context.Context, name string) ([]model.ColumnInfo, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of %s: %w", name, err)
	}
	defer rows.Close()

	var columns []model.ColumnInfo
	for rows.Next() {
		var colName, declared string
		if err := rows.Scan(&colName, &declared); err != nil {
			return nil, err
		}
		columns = append(columns, model.ColumnInfo{Name: colName, Type: model.ParseColumnType(declared)})
	}
	return columns, rows.Err()
}

func (e *Engine) requireTable(ctx context.Context, name string) error {
	ok, err := e.exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return nil
}

// Table returns a frame over a registered dataset.
func (e *Engine) Table(ctx context.Context, name string) (*Frame, error) {
	if err := e.requireTable(ctx, name); err != nil {
		return nil, err
	}
	columns, err := e.columns(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Frame{engine: e, query: "SELECT * FROM " + quoteIdent(name), fields: columns}, nil
}

// SQL returns a frame over an arbitrary statement. The statement is
// prepared immediately so syntax errors and unknown tables surface here.
func (e *Engine) SQL(ctx context.Context, query string) (*Frame, error) {
	query = strings.TrimRight(strings.TrimSpace(query), "; \t\n")
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidSQL)
	}

	stmt, err := e.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSQL, err)
	}
	if err := stmt.Close(); err != nil {
		return nil, err
	}
	return &Frame{engine: e, query: query, raw: true}, nil
}

// List returns the registered datasets in registration order.
func (e *Engine) List(_ context.Context) (*Frame, error) {
	return &Frame{
		engine: e,
		query: `SELECT name AS table_name, ` +
			`CASE type WHEN 'view' THEN 'VIEW' ELSE 'BASE TABLE' END AS table_type ` +
			`FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite\_%' ESCAPE '\'`,
		fields: []model.ColumnInfo{
			{Name: "table_name", Type: model.ColumnTypeText},
			{Name: "table_type", Type: model.ColumnTypeText},
		},
	}, nil
}

// Schema returns the columns of a registered dataset.
func (e *Engine) Schema(ctx context.Context, name string) (*Frame, error) {
	if err := e.requireTable(ctx, name); err != nil {
		return nil, err
	}
	return &Frame{
		engine: e,
		query: `SELECT name AS column_name, type AS data_type, ` +
			`CASE WHEN "notnull" = 0 THEN 'YES' ELSE 'NO' END AS is_nullable ` +
			`FROM pragma_table_info(` + quoteLiteral(name) + `) ORDER BY cid`,
		fields: []model.ColumnInfo{
			{Name: "column_name", Type: model.ColumnTypeText},
			{Name: "data_type", Type: model.ColumnTypeText},
			{Name: "is_nullable", Type: model.ColumnTypeText},
		},
	}, nil
}
