package model

import "errors"

var (
	// ErrDuplicateColumnName is returned when a source contains duplicate column names
	ErrDuplicateColumnName = errors.New("tabsh: duplicate column name")

	// ErrEmptyConnection is returned when the connection string is blank
	ErrEmptyConnection = errors.New("tabsh: empty connection string")

	// ErrUnsupportedFormat is returned when the file format token is not recognized
	ErrUnsupportedFormat = errors.New("tabsh: unsupported file format")

	// ErrUnsupportedCompression is returned when the compression token is not recognized
	ErrUnsupportedCompression = errors.New("tabsh: unsupported compression")
)
