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
	"github.com/oshokin/extpack/internal/service/pipeline"
	"github.com/oshokin/extpack/internal/version"
)

var (
	// configPath to the configuration YAML or TOML file.
	configPath string
	// logLevel is the minimum level of progress messages.
	logLevel string
	// quiet suppresses the external tools' own output.
	quiet bool

	// rootCmd represents the base command for building the extension package.
	rootCmd = &cobra.Command{
		Use:           "extpack-pack",
		Short:         "Build the extension and generate its distributable package",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logger.SetLevelFromString(logLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &pipeline.Options{
				ConfigPath: configPath,
			}

			if !quiet {
				options.Progress = cmd.OutOrStdout()
			}

			return pipeline.Run(ctx, options)
		},
	}
)

// Execute runs the extpack-pack CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.ErrorKV(context.Background(), "extpack-pack failed", "error", err)
		os.Exit(exitcode.FromError(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not stream the output of external tools")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}
