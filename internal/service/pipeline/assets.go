package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshokin/extpack/internal/config"
	"github.com/oshokin/extpack/internal/fsutil"
	"github.com/oshokin/extpack/internal/logger"
)

// CopyFailure is an asset that could not be copied.
type CopyFailure struct {
	// Asset is the configured entry.
	Asset config.Asset
	// Err is the reason.
	Err error
}

// CopyReport is the outcome of the asset copy step.
type CopyReport struct {
	// Copied are assets placed in the output tree.
	Copied []config.Asset
	// Skipped are assets meant for other platforms.
	Skipped []config.Asset
	// Failed are assets that could not be copied.
	Failed []CopyFailure
}

// copyAssets copies every asset applicable to the host.
// Failures are logged and recorded; they never stop the remaining copies.
func (p *Pipeline) copyAssets(ctx context.Context) *CopyReport {
	banner(ctx, "Copying prebuilt assets")

	report := new(CopyReport)

	for _, asset := range p.cfg.Assets {
		assetCtx := logger.WithKV(ctx, "source", asset.Source, "destination", asset.Destination)

		if !asset.AppliesTo(p.hostOS) {
			logger.DebugKV(assetCtx, "Asset skipped for this platform", "platforms", asset.Platforms, "host", p.hostOS)
			report.Skipped = append(report.Skipped, asset)

			continue
		}

		if err := p.copyAsset(asset); err != nil {
			logger.ErrorKV(assetCtx, "Asset copy failed, continuing", "error", err)
			report.Failed = append(report.Failed, CopyFailure{Asset: asset, Err: err})

			continue
		}

		logger.Info(assetCtx, "Asset copied")
		report.Copied = append(report.Copied, asset)
	}

	if len(report.Failed) > 0 {
		logger.WarnKV(ctx, "Some assets were not copied", "failed", len(report.Failed), "copied", len(report.Copied))
	}

	return report
}

func (p *Pipeline) copyAsset(asset config.Asset) error {
	source := p.cfg.Resolve(asset.Source)
	destination := p.cfg.Resolve(asset.Destination)

	if asset.RemoveStale {
		if err := os.Remove(destination); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale %s: %w", destination, err)
		}
	}

	if err := fsutil.CopyFile(source, destination); err != nil {
		return fmt.Errorf("copy %s: %w", source, err)
	}

	return nil
}
