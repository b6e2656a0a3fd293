// Command spritefetch-tui is the interactive front end of spritefetch.
//
// Usage:
//
//	spritefetch-tui [flags] <output_dir> <input> [input...]
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/handiism/spritefetch/internal/config"
	"github.com/handiism/spritefetch/internal/download"
	"github.com/handiism/spritefetch/internal/tui"
)

func main() {
	_ = godotenv.Load()

	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var cfgFile string
	defaults := config.DefaultSettings()

	cmd := &cobra.Command{
		Use:           "spritefetch-tui [flags] <output_dir> <input> [input...]",
		Short:         "Download sprites interactively",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadWithFlags(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			settings.Output = args[0]
			return tui.Run(settings, args[1:])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.Bool("clean", false, "remove everything under output_dir before running")
	flags.String("strategy", defaults.Strategy, "initial strategy: sequential, threads, processes or async")
	flags.Int("concurrency", defaults.Concurrency, "maximum records in flight")
	flags.Duration("timeout", defaults.Timeout, "per-fetch timeout")
	flags.Bool("verify", false, "fail records whose body is not a decodable image")
	flags.String("journal", "", "record runs in this SQLite journal")

	// Worker processes re-execute this binary too.
	cmd.AddCommand(&cobra.Command{
		Use:    download.WorkerArg,
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.DecodeWorkerEnv()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return download.RunWorker(ctx, settings, os.Stdin, os.Stdout)
		},
	})
	return cmd
}
