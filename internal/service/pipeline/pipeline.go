package pipeline

import (
	"context"
	"errors"
	"io"
	"runtime"
	"time"

	"github.com/oshokin/extpack/internal/config"
	"github.com/oshokin/extpack/internal/domain/artifact"
	"github.com/oshokin/extpack/internal/logger"
	"github.com/oshokin/extpack/internal/process"
)

var (
	// ErrStepFailed is returned when an external build command cannot start or exits non-zero.
	ErrStepFailed = errors.New("build step failed")
	// ErrArtifactNotProduced is returned when packaging finished but the artifact is absent or invalid.
	ErrArtifactNotProduced = errors.New("package was not produced")
	// errConfigRequired is returned by New callers passing a nil configuration.
	errConfigRequired = errors.New("configuration is required")
)

// Step names used in logs and reports.
const (
	StepInstall = "install"
	StepTooling = "tooling"
	StepBuild   = "build"
	StepPackage = "package"
)

// StepResult records one external command of the run.
type StepResult struct {
	// Name is one of the Step* constants.
	Name string
	// Command is the rendered command line.
	Command string
	// ExitCode is the process status.
	ExitCode int
	// Duration is how long the command ran.
	Duration time.Duration
}

// Report summarises a pipeline run.
type Report struct {
	// Steps are the external commands in execution order.
	Steps []StepResult
	// Assets is the outcome of the asset copy step.
	Assets *CopyReport
	// Artifact describes the produced package.
	Artifact *artifact.Description
}

// Pipeline runs the packaging steps against one configuration.
type Pipeline struct {
	cfg      *config.Config
	runner   process.Runner
	hostOS   string
	progress io.Writer
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHostOS overrides the GOOS used to select platform-specific assets.
func WithHostOS(goos string) Option {
	return func(p *Pipeline) {
		if goos != "" {
			p.hostOS = goos
		}
	}
}

// WithProgress streams external tool output to w while steps run.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) {
		p.progress = w
	}
}

// WithClock replaces the time source used for the artifact description.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a Pipeline. cfg must already be validated.
func New(cfg *config.Config, runner process.Runner, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		runner: runner,
		hostOS: runtime.GOOS,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run executes every step in order and returns what happened.
// The report is returned even on failure and holds the steps reached so far.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := new(Report)

	if p.cfg == nil {
		return report, errConfigRequired
	}

	if err := p.runBuild(ctx, report); err != nil {
		return report, err
	}

	report.Assets = p.copyAssets(ctx)

	desc, err := p.runPackage(ctx, report)
	if err != nil {
		return report, err
	}

	report.Artifact = desc

	return report, nil
}

// banner logs a step heading the same way for every step.
func banner(ctx context.Context, title string) {
	logger.Info(ctx, "===============================================")
	logger.Info(ctx, title)
	logger.Info(ctx, "===============================================")
}
