package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/extpack/internal/config"
)

func saveConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "extpack.yaml")
	require.NoError(t, config.Save(path, cfg))

	return path
}

// TestRun_UsesConfigAndReleasesMarker runs the entry point with an injected runner.
func TestRun_UsesConfigAndReleasesMarker(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	runner := &fakeRunner{handle: writesPackage(t, 64)}

	err := Run(context.Background(), &Options{ConfigPath: saveConfig(t, cfg), Runner: runner})
	require.NoError(t, err)
	require.Len(t, runner.calls, 4)

	_, err = os.Stat(filepath.Join(cfg.WorkDir, "ext.vsix"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(cfg.WorkDir, MarkerFilename))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_Failures covers configuration errors, a held marker and a failing step.
func TestRun_Failures(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	cfg := testConfig(t)
	writeMarker(t, cfg.WorkDir, os.Getppid())

	runner := new(fakeRunner)

	err = Run(context.Background(), &Options{ConfigPath: saveConfig(t, cfg), Runner: runner})
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.Empty(t, runner.calls)

	cfg = testConfig(t)
	err = Run(context.Background(), &Options{ConfigPath: saveConfig(t, cfg), Runner: new(fakeRunner)})
	require.ErrorIs(t, err, ErrArtifactNotProduced)
}
