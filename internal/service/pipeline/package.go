package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/oshokin/extpack/internal/domain/artifact"
	"github.com/oshokin/extpack/internal/logger"
)

// runPackage invokes the packaging utility and checks that the artifact exists.
// The utility may exit 0 without writing the file, so its status alone is not trusted.
func (p *Pipeline) runPackage(ctx context.Context, report *Report) (*artifact.Description, error) {
	banner(ctx, "Generating the package")

	outputPath := p.cfg.Resolve(p.cfg.OutputPath)

	// A leftover package from a previous run would satisfy the post-condition.
	if err := os.Remove(outputPath); err == nil {
		logger.InfoKV(ctx, "Removed stale package", "path", outputPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale package: %w", err)
	}

	args := append(slices.Clone(p.cfg.Package.Args), p.cfg.OutputFlag, p.cfg.OutputPath)
	if err := p.runStep(ctx, report, StepPackage, p.cfg.Package.Name, args); err != nil {
		return nil, err
	}

	info, err := artifact.Verify(outputPath, p.cfg.MinArtifactSize)
	if err != nil {
		logger.ErrorKV(ctx, "Packaging utility reported success but the package is not usable",
			"path", outputPath, "error", err)

		return nil, fmt.Errorf("%w: %w", ErrArtifactNotProduced, err)
	}

	desc, err := artifact.Describe(info, p.now())
	if err != nil {
		return nil, fmt.Errorf("describe package: %w", err)
	}

	descPath := artifact.DescriptionPath(outputPath)
	if err = desc.Save(descPath); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Package generated",
		"path", outputPath,
		"size", info.Size,
		"sha512", desc.Checksum,
		"description", descPath)

	return desc, nil
}
