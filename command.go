package tabsh

import (
	"fmt"
	"strings"

	"github.com/nao1215/tabsh/domain/model"
)

// Command is a request executed by the Shell worker. The set of commands is
// closed: only the types in this package implement it.
type Command interface {
	// Keyword is the command name, used in logs and metrics.
	Keyword() string
	// Validate checks the arguments before the command is queued.
	Validate() error

	command()
}

// ConnectCommand registers a dataset under Name.
type ConnectCommand struct {
	Conn model.DatasetConn
	// Table is the source table for database connections.
	Table string
	Name  string
}

// ListCommand lists the registered datasets.
type ListCommand struct{}

// SchemaCommand shows the columns of a dataset.
type SchemaCommand struct {
	Name string
}

// DescribeCommand summarizes every column of a dataset.
type DescribeCommand struct {
	Name string
}

// HeadCommand shows the first N rows of a dataset.
type HeadCommand struct {
	Name string
	N    int
}

// SQLCommand runs a query.
type SQLCommand struct {
	Query string
}

func (ConnectCommand) Keyword() string  { return "connect" }
func (ListCommand) Keyword() string     { return "list" }
func (SchemaCommand) Keyword() string   { return "schema" }
func (DescribeCommand) Keyword() string { return "describe" }
func (HeadCommand) Keyword() string     { return "head" }
func (SQLCommand) Keyword() string      { return "sql" }

func (ConnectCommand) command()  {}
func (ListCommand) command()     {}
func (SchemaCommand) command()   {}
func (DescribeCommand) command() {}
func (HeadCommand) command()     {}
func (SQLCommand) command()      {}

// Validate implements Command.
func (c ConnectCommand) Validate() error {
	if strings.TrimSpace(c.Conn.Source) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, model.ErrEmptyConnection)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: connect requires --name", ErrInvalidCommand)
	}
	if c.Conn.IsDatabase() && strings.TrimSpace(c.Table) == "" {
		return fmt.Errorf("%w: %s source requires --table", ErrInvalidCommand, c.Conn.Kind)
	}
	return nil
}

// Validate implements Command.
func (ListCommand) Validate() error { return nil }

// Validate implements Command.
func (c SchemaCommand) Validate() error { return requireName(c) }

// Validate implements Command.
func (c DescribeCommand) Validate() error { return requireName(c) }

// Validate implements Command.
func (c HeadCommand) Validate() error {
	if c.N <= 0 {
		return fmt.Errorf("%w: head row count must be positive, got %d", ErrInvalidCommand, c.N)
	}
	return requireName(c)
}

// Validate implements Command.
func (c SQLCommand) Validate() error {
	if strings.TrimSpace(c.Query) == "" {
		return fmt.Errorf("%w: sql requires a query", ErrInvalidCommand)
	}
	return nil
}

func requireName(c Command) error {
	var name string
	switch v := c.(type) {
	case SchemaCommand:
		name = v.Name
	case DescribeCommand:
		name = v.Name
	case HeadCommand:
		name = v.Name
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s requires a dataset name", ErrInvalidCommand, c.Keyword())
	}
	return nil
}
