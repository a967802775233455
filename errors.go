package tabsh

import "errors"

var (
	// ErrShellClosed is returned when a command is submitted after Close
	ErrShellClosed = errors.New("tabsh: shell is closed")

	// ErrInvalidCommand indicates a command that failed validation or parsing
	ErrInvalidCommand = errors.New("tabsh: invalid command")

	// ErrUnknownCommand indicates a command variant the worker cannot run
	ErrUnknownCommand = errors.New("tabsh: unknown command")

	// ErrCommandPanic indicates a command that panicked while executing
	ErrCommandPanic = errors.New("tabsh: command panicked")
)
