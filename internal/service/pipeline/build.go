package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/oshokin/extpack/internal/config"
	"github.com/oshokin/extpack/internal/logger"
	"github.com/oshokin/extpack/internal/process"
)

// outputTailSize is how much of a failed command's output is logged.
const outputTailSize = 4096

// runBuild installs dependencies, the build-CLI and runs the build.
// The first failing command stops the run.
func (p *Pipeline) runBuild(ctx context.Context, report *Report) error {
	steps := []struct {
		name    string
		title   string
		command config.Command
	}{
		{StepInstall, "Installing dependencies", p.cfg.Install},
		{StepTooling, "Installing the build CLI", p.cfg.Tooling},
		{StepBuild, "Building localized output", p.cfg.Build},
	}

	for _, step := range steps {
		banner(ctx, step.title)

		if err := p.runStep(ctx, report, step.name, step.command.Name, step.command.Args); err != nil {
			return err
		}
	}

	return nil
}

// runStep executes one external command and appends it to the report.
func (p *Pipeline) runStep(ctx context.Context, report *Report, name, executable string, args []string) error {
	command := &process.Command{
		Name:     p.cfg.Executable(executable),
		Args:     slices.Clone(args),
		Dir:      p.cfg.WorkDir,
		Progress: p.progress,
	}

	stepCtx := logger.WithKV(ctx, "step", name)
	logger.InfoKV(stepCtx, "Running command", "command", command.String(), "dir", command.Dir)

	result, err := p.runner.Run(stepCtx, command)
	if err != nil {
		logger.ErrorKV(stepCtx, "Command could not run", "error", err)
		return fmt.Errorf("%s: %w: %w", name, ErrStepFailed, err)
	}

	report.Steps = append(report.Steps, StepResult{
		Name:     name,
		Command:  command.String(),
		ExitCode: result.ExitCode,
		Duration: result.Duration,
	})

	if !result.Success() {
		logger.ErrorKV(stepCtx, "Command failed",
			"exit_code", result.ExitCode,
			"output", tail(result.Output, outputTailSize))

		return fmt.Errorf("%s exited with status %d: %w", name, result.ExitCode, ErrStepFailed)
	}

	logger.InfoKV(stepCtx, "Command completed", "duration", result.Duration)

	return nil
}

func tail(output []byte, limit int) string {
	if len(output) <= limit {
		return string(output)
	}

	return "..." + string(output[len(output)-limit:])
}
