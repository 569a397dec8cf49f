package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/oshokin/extpack/internal/config"
	"github.com/oshokin/extpack/internal/logger"
	"github.com/oshokin/extpack/internal/process"
)

// Options contains inputs for the extpack-pack entry point.
type Options struct {
	// ConfigPath is the YAML or TOML configuration (defaults to extpack.yaml, then built-in defaults).
	ConfigPath string
	// Progress receives external tool output while steps run. Nil discards it.
	Progress io.Writer
	// Runner executes external commands. Nil means os/exec.
	Runner process.Runner
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	runID := uuid.NewString()

	ctx = logger.WithName(ctx, "extpack-pack")
	ctx = logger.WithKV(ctx, "run_id", runID)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	lock, err := acquireMarker(ctx, cfg.WorkDir, runID)
	if err != nil {
		return err
	}

	defer lock.release(ctx)

	runner := opts.Runner
	if runner == nil {
		runner = process.NewExecRunner()
	}

	report, err := New(cfg, runner, WithProgress(opts.Progress)).Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Packaging failed", "error", err, "steps_completed", len(report.Steps))
		return err
	}

	banner(ctx, "Congratulations! Package generation completed")
	logger.InfoKV(ctx, "Packaging completed successfully",
		"artifact", report.Artifact.Name,
		"size", report.Artifact.Size,
		"assets_copied", len(report.Assets.Copied),
		"assets_failed", len(report.Assets.Failed))

	return nil
}
