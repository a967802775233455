package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nao1215/tabsh"
	"github.com/nao1215/tabsh/describe"
	"github.com/nao1215/tabsh/engine"
	"github.com/nao1215/tabsh/internal/config"
	"github.com/nao1215/tabsh/internal/logger"
)

var version = "0.1.0"

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "tabsh",
		Short: "tabsh - interactive SQL shell over files and databases",
		Long: `tabsh loads CSV, TSV, NDJSON, Parquet and XLSX files (optionally
compressed) and tables from PostgreSQL, MySQL and SQL Server into an
in-memory catalog, then lets you query them with SQL.

Example:
  tabsh --head-rows 20
  tabsh> connect data/sales.csv.gz --name sales
  tabsh> describe sales`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tabsh v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	flags := root.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a YAML config file (default $HOME/.tabsh.yaml)")
	flags.String("prompt", tabsh.DefaultPrompt, "Prompt shown before each line")
	flags.String("history-file", "", "File that keeps line history")
	flags.Int("history-limit", tabsh.DefaultHistoryLimit, "Maximum number of history entries")
	flags.Int("head-rows", tabsh.DefaultHeadRows, "Rows shown by head when --n is not given")
	flags.Int("chunk-size", engine.DefaultChunkSize, "Rows inserted per chunk while loading a dataset")
	flags.IntSlice("describe-percentiles", []int{25, 75}, "Percentiles reported by describe")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("log-encoding", "console", "Log encoding (console, json)")
	flags.String("log-file", "", "Write logs to a rotating file instead of stderr")
	flags.String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")

	return root
}

func run(cmd *cobra.Command, cfg *config.Config) (err error) {
	if err := logger.Init(logger.Config{
		Level:    cfg.Log.Level,
		Encoding: cfg.Log.Encoding,
		File:     cfg.Log.File,
		Console:  cmd.ErrOrStderr(),
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	eng, err := engine.New(engine.WithChunkSize(cfg.ChunkSize), engine.WithLogger(log))
	if err != nil {
		return err
	}

	shellOpts := []tabsh.ShellOption{
		tabsh.WithLogger(log),
		tabsh.WithDescribeMethods(describe.MethodsWithPercentiles(cfg.Describe.Percentiles...)...),
	}

	var server *http.Server
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		shellOpts = append(shellOpts, tabsh.WithRegisterer(reg))
		server = serveMetrics(cfg.Metrics.Addr, reg, log)
	}

	shell := tabsh.NewShell(eng, shellOpts...)
	defer func() {
		err = multierr.Append(err, shell.Close())
		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err = multierr.Append(err, server.Shutdown(ctx))
		}
	}()

	replOpts := []tabsh.REPLOption{
		tabsh.WithOutput(cmd.OutOrStdout()),
		tabsh.WithPrompt(cfg.Prompt),
		tabsh.WithHistory(cfg.HistoryFile, cfg.HistoryLimit),
		tabsh.WithHeadRows(cfg.HeadRows),
	}
	if in := cmd.InOrStdin(); in != io.Reader(os.Stdin) {
		replOpts = append(replOpts, tabsh.WithInput(in))
	}

	log.Debug("starting shell", zap.String("version", version), zap.Int("chunk_size", cfg.ChunkSize))
	return tabsh.NewREPL(shell, replOpts...).Run()
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return server
}
