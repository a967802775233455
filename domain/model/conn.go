package model

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// DatasetKind identifies how a dataset is loaded.
type DatasetKind int

const (
	// DatasetKindPostgres is a PostgreSQL table
	DatasetKindPostgres DatasetKind = iota
	// DatasetKindMySQL is a MySQL table
	DatasetKindMySQL
	// DatasetKindSQLServer is a SQL Server table
	DatasetKindSQLServer
	// DatasetKindParquet is a Parquet file
	DatasetKindParquet
	// DatasetKindCSV is a comma separated file
	DatasetKindCSV
	// DatasetKindTSV is a tab separated file
	DatasetKindTSV
	// DatasetKindNDJSON is a newline delimited JSON file
	DatasetKindNDJSON
	// DatasetKindXLSX is an Excel workbook
	DatasetKindXLSX
)

// String returns the kind name.
func (k DatasetKind) String() string {
	switch k {
	case DatasetKindPostgres:
		return "Postgres"
	case DatasetKindMySQL:
		return "MySQL"
	case DatasetKindSQLServer:
		return "SQLServer"
	case DatasetKindParquet:
		return "Parquet"
	case DatasetKindCSV:
		return "Csv"
	case DatasetKindTSV:
		return "Tsv"
	case DatasetKindNDJSON:
		return "NdJson"
	case DatasetKindXLSX:
		return "Xlsx"
	default:
		return "Unknown"
	}
}

// DatasetConn is a classified connection string.
type DatasetConn struct {
	// Kind is the dataset kind.
	Kind DatasetKind
	// Source is the connection string as given by the user.
	Source string
	// Extension is the format token of a file source, e.g. "csv" or "jsonl".
	Extension string
	// Compression is the codec of a file source.
	Compression CompressionType
}

// IsDatabase reports whether the dataset lives in a database server.
func (c DatasetConn) IsDatabase() bool {
	switch c.Kind {
	case DatasetKindPostgres, DatasetKindMySQL, DatasetKindSQLServer:
		return true
	default:
		return false
	}
}

// String returns a short description such as "Csv(data.csv.gz, csv, GZIP)".
func (c DatasetConn) String() string {
	if c.IsDatabase() || c.Extension == "" {
		return fmt.Sprintf("%s(%s)", c.Kind, c.Source)
	}
	return fmt.Sprintf("%s(%s, %s, %s)", c.Kind, c.Source, c.Extension, c.Compression)
}

var databaseSchemes = []struct {
	prefix string
	kind   DatasetKind
}{
	{prefix: "postgres://", kind: DatasetKindPostgres},
	{prefix: "postgresql://", kind: DatasetKindPostgres},
	{prefix: "mysql://", kind: DatasetKindMySQL},
	{prefix: "sqlserver://", kind: DatasetKindSQLServer},
}

const extParquet = ".parquet"

// formatTokens maps a filename format suffix to its dataset kind.
var formatTokens = map[string]DatasetKind{
	"csv":     DatasetKindCSV,
	"tsv":     DatasetKindTSV,
	"json":    DatasetKindNDJSON,
	"jsonl":   DatasetKindNDJSON,
	"ndjson":  DatasetKindNDJSON,
	"parquet": DatasetKindParquet,
	"xlsx":    DatasetKindXLSX,
}

// ParseDatasetConn classifies a connection string. Database URLs are
// recognized by scheme; file paths by their last one or two suffixes, read
// as [format][.compression].
func ParseDatasetConn(conn string) (DatasetConn, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return DatasetConn{}, ErrEmptyConnection
	}

	lower := strings.ToLower(conn)
	for _, scheme := range databaseSchemes {
		if strings.HasPrefix(lower, scheme.prefix) {
			return DatasetConn{Kind: scheme.kind, Source: conn}, nil
		}
	}

	if strings.HasSuffix(lower, extParquet) {
		return DatasetConn{
			Kind:      DatasetKindParquet,
			Source:    conn,
			Extension: strings.TrimPrefix(extParquet, "."),
		}, nil
	}

	parts := strings.Split(path.Base(filepath.ToSlash(lower)), ".")
	if len(parts) < 2 {
		return DatasetConn{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, conn)
	}

	formatToken := parts[len(parts)-1]
	compression := CompressionNone
	if codec, ok := compressionTokens[formatToken]; ok {
		if len(parts) < 3 {
			return DatasetConn{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, conn)
		}
		compression = codec
		formatToken = parts[len(parts)-2]
	}

	kind, ok := formatTokens[formatToken]
	if !ok {
		// "data.csv.rar": the format is known but the codec is not.
		if _, known := formatTokens[parts[len(parts)-2]]; known && compression == CompressionNone && len(parts) >= 3 {
			return DatasetConn{}, fmt.Errorf("%w: %s", ErrUnsupportedCompression, conn)
		}
		return DatasetConn{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, conn)
	}

	return DatasetConn{
		Kind:        kind,
		Source:      conn,
		Extension:   formatToken,
		Compression: compression,
	}, nil
}
