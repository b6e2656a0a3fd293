package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	_ "gocloud.dev/blob/gcsblob" // gs:// outputs
	_ "gocloud.dev/blob/s3blob"  // s3:// outputs

	"github.com/handiism/spritefetch/internal/config"
	"github.com/handiism/spritefetch/internal/download"
	"github.com/handiism/spritefetch/internal/logger"
	"github.com/handiism/spritefetch/internal/report"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// metricsAddr serves /metrics while the run is in progress.
	metricsAddr string

	// showReport prints a per-category table after the summary line.
	showReport bool
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so SPRITEFETCH_* variables are visible to config.Load.
	_ = godotenv.Load()

	return newRootCommand().ExecuteContext(context.Background())
}

func newRootCommand() *cobra.Command {
	defaults := config.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "spritefetch [flags] <output_dir> <input> [input...]",
		Short: "Download sprites into a directory tree organized by category",
		Long: `spritefetch reads records (name, category, sprite URL) from one or more
CSV or XLSX files, fetches every sprite once and stores it as
<output_dir>/<category>/<name>.png.

output_dir may also be a bucket URL such as s3://bucket/prefix,
gs://bucket or file:///abs/path.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDownload,
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.Bool("clean", false, "remove everything under output_dir before running")
	flags.String("strategy", defaults.Strategy, "execution strategy: sequential, threads, processes or async")
	flags.Int("concurrency", defaults.Concurrency, "maximum records in flight")
	flags.Duration("timeout", defaults.Timeout, "per-fetch timeout")
	flags.String("user-agent", defaults.UserAgent, "User-Agent header sent with every request")
	flags.String("extension", defaults.Extension, "extension of stored files")
	flags.Bool("verify", false, "fail records whose body is not a decodable image")
	flags.Int("max-size", 0, "scale images down so no side exceeds this many pixels (0 keeps them)")
	flags.String("journal", "", "record the run in this SQLite journal")
	flags.String("log-level", defaults.Log.Level, "log level: debug, info, warn or error")
	flags.String("log-format", defaults.Log.Format, "log format: console or json")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.BoolVar(&showReport, "report", false, "print a per-category report")

	cmd.AddCommand(newWorkerCommand())
	return cmd
}

// newWorkerCommand is the entry point of worker processes started by the
// processes strategy.
func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    download.WorkerArg,
		Short:  "Serve fetch requests from a parent run on stdin/stdout",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.DecodeWorkerEnv()
			if err != nil {
				return err
			}

			// Interrupted by the parent on cancel, or by Ctrl-C through the
			// process group. The in-flight record still completes.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return download.RunWorker(ctx, settings, os.Stdin, os.Stdout)
		},
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadWithFlags(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	settings.Output = args[0]

	log, err := logger.New(settings.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := download.NewManager(settings, progressLogger(log))
	if err != nil {
		return err
	}
	defer manager.Close()

	if metricsAddr != "" {
		shutdown, err := serveMetrics(metricsAddr, manager, log)
		if err != nil {
			return fmt.Errorf("%w: metrics: %w", download.ErrSetup, err)
		}
		defer shutdown()
	}

	if err := manager.Initialize(ctx, args[1:]); err != nil {
		return err
	}

	summary, err := manager.StartDownloads(ctx)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		log.Warn("Run interrupted, pending records were marked failed")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summary.Line())
	if showReport {
		report.Render(out, summary)
	}
	return nil
}

// progressLogger routes manager events to the logger. Stdout is kept for
// the summary line.
func progressLogger(log logger.Logger) func(download.ProgressEvent) {
	return func(event download.ProgressEvent) {
		var fields []logger.Field
		if event.Record != nil {
			fields = append(fields, logger.String("record", event.Record.Key()), logger.String("url", event.Record.URL))
		}
		if event.Err != nil {
			fields = append(fields, logger.Err(event.Err))
		}

		switch event.Level {
		case download.LevelError:
			log.Error(event.Message, fields...)
		case download.LevelWarning:
			log.Warn(event.Message, fields...)
		case download.LevelVerbose:
			log.Debug(event.Message, fields...)
		default:
			log.Info(event.Message, fields...)
		}
	}
}

func serveMetrics(addr string, manager *download.Manager, log logger.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", manager.Metrics().Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", logger.Err(err))
		}
	}()
	log.Info("Serving metrics", logger.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
