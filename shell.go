package tabsh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nao1215/tabsh/describe"
	"github.com/nao1215/tabsh/engine"
)

// State is the state of the Shell worker.
type State int32

const (
	// StateIdle means the worker is waiting for a command.
	StateIdle State = iota
	// StateExecuting means the worker is running a command.
	StateExecuting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateExecuting:
		return "Executing"
	default:
		return "Unknown"
	}
}

// Output is the result of a successful command.
type Output struct {
	// Message is set by commands that do not produce a table.
	Message string
	Table   *engine.Result
}

// String renders the output for display.
func (o Output) String() string {
	if o.Table != nil {
		return o.Table.String()
	}
	return o.Message
}

// FatalFunc handles conditions the shell cannot recover from. It is
// expected not to return; the default logs and exits.
type FatalFunc func(msg string, fields ...zap.Field)

// Shell serializes commands against one engine. Submit may be called from
// any number of goroutines; a single worker goroutine executes the commands
// in arrival order and is the only user of the engine.
type Shell struct {
	engine          *engine.Engine
	queue           *requestQueue
	state           atomic.Int32
	done            chan struct{}
	closeOnce       sync.Once
	closeErr        error
	logger          *zap.Logger
	fatal           FatalFunc
	metrics         *metrics
	registerer      prometheus.Registerer
	describeMethods []describe.Method
}

// ShellOption configures a Shell.
type ShellOption func(*Shell)

// WithLogger sets the logger. The default fatal handler uses it too.
func WithLogger(l *zap.Logger) ShellOption {
	return func(s *Shell) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFatalHandler replaces the handler called on unrecoverable conditions.
func WithFatalHandler(fn FatalFunc) ShellOption {
	return func(s *Shell) {
		if fn != nil {
			s.fatal = fn
		}
	}
}

// WithRegisterer exports the worker metrics to reg.
func WithRegisterer(reg prometheus.Registerer) ShellOption {
	return func(s *Shell) {
		s.registerer = reg
	}
}

// WithDescribeMethods sets the statistics computed by describe.
func WithDescribeMethods(methods ...describe.Method) ShellOption {
	return func(s *Shell) {
		if len(methods) > 0 {
			s.describeMethods = methods
		}
	}
}

// NewShell takes ownership of eng and starts the worker.
func NewShell(eng *engine.Engine, opts ...ShellOption) *Shell {
	s := &Shell{
		engine:          eng,
		queue:           newRequestQueue(),
		done:            make(chan struct{}),
		logger:          zap.NewNop(),
		describeMethods: describe.DefaultMethods(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fatal == nil {
		s.fatal = s.logger.Fatal
	}
	s.metrics = newMetrics(s.registerer)

	go s.run()
	return s
}

// State reports whether the worker is idle or executing.
func (s *Shell) State() State {
	return State(s.state.Load())
}

// Submit queues cmd and blocks until the worker has executed it. Invalid
// commands are rejected before they are queued. Submitting after Close is
// fatal.
func (s *Shell) Submit(cmd Command) (Output, error) {
	if cmd == nil {
		return Output{}, fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}
	if err := cmd.Validate(); err != nil {
		return Output{}, err
	}

	req := &request{cmd: cmd, reply: make(chan reply, 1)}
	if err := s.queue.push(req); err != nil {
		s.fatal("request queue is closed", zap.String("command", cmd.Keyword()), zap.Error(err))
		return Output{}, err
	}
	s.metrics.queueDepth.Set(float64(s.queue.len()))

	r := <-req.reply
	return r.out, r.err
}

// Close stops accepting commands, waits for the queued ones to finish and
// closes the engine.
func (s *Shell) Close() error {
	s.closeOnce.Do(func() {
		s.queue.close()
		<-s.done
		s.closeErr = s.engine.Close()
	})
	return s.closeErr
}

func (s *Shell) run() {
	defer close(s.done)
	for {
		req, ok := s.queue.pop()
		if !ok {
			return
		}
		s.metrics.queueDepth.Set(float64(s.queue.len()))

		s.state.Store(int32(StateExecuting))
		out, err := s.execute(req.cmd)
		s.deliver(req, reply{out: out, err: err})
		s.state.Store(int32(StateIdle))
	}
}

// deliver sends the single reply of req. The reply channel has room for
// exactly one value, so a blocked send means the request was answered twice.
func (s *Shell) deliver(req *request, r reply) {
	select {
	case req.reply <- r:
	default:
		s.fatal("reply could not be delivered", zap.String("command", req.cmd.Keyword()))
	}
}

func (s *Shell) execute(cmd Command) (out Output, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrCommandPanic, cmd.Keyword(), r)
		}
		elapsed := time.Since(start)
		s.metrics.observe(cmd.Keyword(), err, elapsed)
		if err != nil {
			s.logger.Debug("command failed", zap.String("command", cmd.Keyword()), zap.Error(err))
			return
		}
		s.logger.Debug("command executed", zap.String("command", cmd.Keyword()), zap.Duration("elapsed", elapsed))
	}()

	ctx := context.Background()
	switch c := cmd.(type) {
	case ConnectCommand:
		return s.connect(ctx, c)
	case ListCommand:
		return s.list(ctx)
	case SchemaCommand:
		return s.schema(ctx, c)
	case DescribeCommand:
		return s.describe(ctx, c)
	case HeadCommand:
		return s.head(ctx, c)
	case SQLCommand:
		return s.sql(ctx, c)
	default:
		return Output{}, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func (s *Shell) connect(ctx context.Context, c ConnectCommand) (Output, error) {
	info, err := s.engine.Register(ctx, c.Name, c.Conn, engine.RegisterOptions{Table: c.Table})
	if err != nil {
		return Output{}, err
	}
	return Output{Message: fmt.Sprintf("connected %s as %q (%s rows, %d columns)",
		c.Conn, info.Name, humanize.Comma(info.Rows), info.Columns)}, nil
}

func (s *Shell) list(ctx context.Context) (Output, error) {
	frame, err := s.engine.List(ctx)
	if err != nil {
		return Output{}, err
	}
	return collect(ctx, frame)
}

func (s *Shell) schema(ctx context.Context, c SchemaCommand) (Output, error) {
	frame, err := s.engine.Schema(ctx, c.Name)
	if err != nil {
		return Output{}, err
	}
	return collect(ctx, frame)
}

func (s *Shell) describe(ctx context.Context, c DescribeCommand) (Output, error) {
	frame, err := s.engine.Table(ctx, c.Name)
	if err != nil {
		return Output{}, err
	}
	summary, err := describe.New(frame,
		describe.WithMethods(s.describeMethods...),
		describe.WithLogger(s.logger),
	).Describe()
	if err != nil {
		return Output{}, err
	}
	return collect(ctx, summary)
}

func (s *Shell) head(ctx context.Context, c HeadCommand) (Output, error) {
	frame, err := s.engine.Table(ctx, c.Name)
	if err != nil {
		return Output{}, err
	}
	return collect(ctx, frame.Limit(c.N))
}

func (s *Shell) sql(ctx context.Context, c SQLCommand) (Output, error) {
	frame, err := s.engine.SQL(ctx, c.Query)
	if err != nil {
		return Output{}, err
	}
	return collect(ctx, frame)
}

func collect(ctx context.Context, frame *engine.Frame) (Output, error) {
	result, err := frame.Collect(ctx)
	if err != nil {
		return Output{}, err
	}
	return Output{Table: result}, nil
}
