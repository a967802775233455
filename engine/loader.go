package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// tableLoader creates a table from the first chunk it sees and inserts the
// rows of every chunk with one prepared statement.
type tableLoader struct {
	tx      *sql.Tx
	name    string
	stmt    *sql.Stmt
	created bool
	rows    int64
	columns int
}

func newTableLoader(tx *sql.Tx, name string) *tableLoader {
	return &tableLoader{tx: tx, name: name}
}

func (l *tableLoader) load(ctx context.Context, c *chunk) error {
	if !l.created {
		if err := l.createTable(ctx, c); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
		stmt, err := l.prepareInsertStatement(ctx, len(c.columns))
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		l.stmt = stmt
		l.created = true
		l.columns = len(c.columns)
	}

	for _, row := range c.rows {
		if _, err := l.stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		l.rows++
	}
	return nil
}

// createTable creates the table from the column layout of a chunk
func (l *tableLoader) createTable(ctx context.Context, c *chunk) error {
	if len(c.columns) == 0 {
		return ErrEmptyData
	}
	columns := make([]string, 0, len(c.columns))
	for _, col := range c.columns {
		columns = append(columns, quoteIdent(col.Name)+" "+col.Type.String())
	}

	query := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(l.name), strings.Join(columns, ", "))
	_, err := l.tx.ExecContext(ctx, query)
	return err
}

// prepareInsertStatement prepares an insert statement for the table
func (l *tableLoader) prepareInsertStatement(ctx context.Context, n int) (*sql.Stmt, error) {
	placeholders := make([]string, n)
	for i := range placeholders {
		placeholders[i] = "?"
	}

	query := fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, quoteIdent(l.name), strings.Join(placeholders, ", "))
	return l.tx.PrepareContext(ctx, query)
}

func (l *tableLoader) close() error {
	if l.stmt == nil {
		return nil
	}
	return l.stmt.Close()
}
