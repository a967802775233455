package tabsh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"github.com/mattn/go-isatty"
	"go.uber.org/multierr"
)

const (
	// DefaultPrompt is the REPL prompt.
	DefaultPrompt = "tabsh> "
	// DefaultHistoryLimit is the number of history entries kept.
	DefaultHistoryLimit = 1024
)

// REPL reads commands line by line and submits them to a Shell. With a
// terminal on stdin it offers line editing and persistent history.
type REPL struct {
	shell        *Shell
	in           io.Reader
	out          io.Writer
	prompt       string
	historyFile  string
	historyLimit int
	headRows     int
	interactive  bool
}

// REPLOption configures a REPL.
type REPLOption func(*REPL)

// WithInput reads commands from r instead of stdin, without line editing.
func WithInput(r io.Reader) REPLOption {
	return func(repl *REPL) {
		repl.in = r
		repl.interactive = false
	}
}

// WithOutput writes results to w.
func WithOutput(w io.Writer) REPLOption {
	return func(repl *REPL) {
		repl.out = w
	}
}

// WithPrompt sets the prompt shown in interactive mode.
func WithPrompt(prompt string) REPLOption {
	return func(repl *REPL) {
		repl.prompt = prompt
	}
}

// WithHistory sets the history file and the number of entries kept.
func WithHistory(file string, limit int) REPLOption {
	return func(repl *REPL) {
		repl.historyFile = file
		if limit > 0 {
			repl.historyLimit = limit
		}
	}
}

// WithHeadRows sets the default row count of head.
func WithHeadRows(n int) REPLOption {
	return func(repl *REPL) {
		if n > 0 {
			repl.headRows = n
		}
	}
}

// NewREPL returns a REPL reading from stdin.
func NewREPL(shell *Shell, opts ...REPLOption) *REPL {
	r := &REPL{
		shell:        shell,
		in:           os.Stdin,
		out:          os.Stdout,
		prompt:       DefaultPrompt,
		historyLimit: DefaultHistoryLimit,
		headRows:     DefaultHeadRows,
		interactive:  isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until exit, quit or end of input.
func (r *REPL) Run() error {
	if r.interactive {
		return r.runInteractive()
	}
	return r.runLines()
}

func (r *REPL) runInteractive() (err error) {
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          r.prompt,
		HistoryFile:     r.historyFile,
		HistoryLimit:    r.historyLimit,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to start line editor: %w", err)
	}
	defer func() {
		err = multierr.Append(err, rl.Close())
	}()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.handle(line) {
			return nil
		}
	}
}

func (r *REPL) runLines() error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if r.handle(scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// handle executes one line and reports whether the REPL should stop.
func (r *REPL) handle(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit":
		return true
	}

	cmd, err := ParseLine(line, r.headRows, r.out)
	if err != nil {
		r.printError(err)
		return false
	}
	if cmd == nil {
		return false
	}

	out, err := r.shell.Submit(cmd)
	if err != nil {
		r.printError(err)
		return false
	}
	_, _ = fmt.Fprintln(r.out, strings.TrimRight(out.String(), "\n"))
	return false
}

func (r *REPL) printError(err error) {
	_, _ = fmt.Fprintf(r.out, "Error: %v\n", err)
}
