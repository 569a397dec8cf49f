package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/extpack/internal/config"
	"github.com/oshokin/extpack/internal/exitcode"
	"github.com/oshokin/extpack/internal/logger"
	"github.com/oshokin/extpack/internal/service/fetcher"
	"github.com/oshokin/extpack/internal/version"
)

var (
	// options collects flag values for the fetcher.
	options = new(fetcher.Options)
	// logLevel is the minimum level of progress messages.
	logLevel string

	// rootCmd represents the base command for downloading a built package.
	rootCmd = &cobra.Command{
		Use:   "extpack-fetch down [url]",
		Short: "Download a built package and check that it is complete",
		Long: "Download a built package over HTTP and reject it when it is smaller than the configured minimum.\n" +
			"Actions other than down do nothing.\n" +
			"Exit codes: 0 ok, 1 missing arguments, 2 missing url, 3 download missing, truncated, too small or invalid.",
		// Argument validation happens in the fetcher so each case keeps its own exit code.
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logger.SetLevelFromString(logLevel)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.Args = args

			return fetcher.Run(ctx, options)
		},
	}
)

// Execute runs the extpack-fetch CLI and exits with the status of the fetch outcome.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.ErrorKV(context.Background(), "extpack-fetch failed", "error", err)
		os.Exit(exitcode.FromError(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&options.OutputPath, "output", "o", "", "local file name (defaults to the last URL segment)")
	flags.Int64Var(&options.MinSize, "min-size", 0, "minimum accepted size in bytes (defaults to the configured value)")
	flags.BoolVarP(&options.Insecure, "insecure", "k", false, "skip TLS certificate verification")
	flags.StringVar(&options.Checksum, "checksum", "", "expected base64 SHA-512 of the artifact")
	flags.DurationVar(&options.Timeout, "timeout", 0, "transfer timeout (defaults to the configured value)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}
