package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/extpack/internal/logger"
)

// MarkerFilename marks a working directory as being packaged right now.
const MarkerFilename = ".extpack.lock"

// ErrAlreadyRunning is returned when another live run holds the marker.
var ErrAlreadyRunning = errors.New("another packaging run is in progress")

// markerContents is persisted in the marker file.
type markerContents struct {
	PID       int       `yaml:"pid"`
	RunID     string    `yaml:"run_id"`
	StartedAt time.Time `yaml:"started_at"`
}

// marker is a held run marker.
type marker struct {
	path string
}

// acquireMarker creates the run marker in dir.
// A marker left by a process that no longer exists is replaced.
func acquireMarker(ctx context.Context, dir, runID string) (*marker, error) {
	path := filepath.Join(dir, MarkerFilename)

	logger.Debug(ctx, "Checking for the presence of a run marker")

	existing, err := readMarker(path)

	switch {
	case err == nil:
		if existing.PID != os.Getpid() && isProcessAlive(existing.PID) {
			return nil, fmt.Errorf("pid %d, run %s: %w", existing.PID, existing.RunID, ErrAlreadyRunning)
		}

		logger.InfoKV(ctx, "Removing stale run marker", "pid", existing.PID, "run_id", existing.RunID)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale marker: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		// An unreadable marker is treated as stale.
		logger.WarnKV(ctx, "Unable to read run marker, replacing it", "error", err)
		_ = os.Remove(path)
	}

	contents, err := yaml.Marshal(&markerContents{
		PID:       os.Getpid(),
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrAlreadyRunning
		}

		return nil, fmt.Errorf("create run marker: %w", err)
	}

	_, err = file.Write(contents)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write run marker: %w", err)
	}

	return &marker{path: path}, nil
}

// release removes the marker.
func (m *marker) release(ctx context.Context) {
	if m == nil {
		return
	}

	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove run marker", "path", m.path, "error", err)
	}
}

func readMarker(path string) (*markerContents, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var contents markerContents
	if err = yaml.Unmarshal(data, &contents); err != nil {
		return nil, err
	}

	return &contents, nil
}

// isProcessAlive reports whether a process with pid exists.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		// Unknown state, assume the owner is still alive.
		return true
	}

	return process != nil
}
