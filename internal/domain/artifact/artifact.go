package artifact

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/extpack/internal/fsutil"
	"github.com/oshokin/extpack/internal/version"
)

var (
	// ErrMissing is returned when the artifact file does not exist.
	ErrMissing = errors.New("artifact is missing")
	// ErrTooSmall is returned when the artifact is below the size threshold.
	ErrTooSmall = errors.New("artifact is too small")
	// ErrNotRegular is returned when the artifact path is not a regular file.
	ErrNotRegular = errors.New("artifact is not a regular file")
)

// DescriptionSuffix is appended to the artifact path to name its description file.
const DescriptionSuffix = ".yaml"

// Info is what the tools know about an artifact on disk.
type Info struct {
	// Path is the artifact location.
	Path string
	// Size is the file size in bytes.
	Size int64
}

// Verify checks that path is a regular file of at least minSize bytes.
// The returned Info is filled whenever the file exists.
func Verify(path string, minSize int64) (*Info, error) {
	stat, err := os.Stat(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrMissing)
		}

		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !stat.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	info := &Info{
		Path: path,
		Size: stat.Size(),
	}

	if info.Size < minSize {
		return info, fmt.Errorf("%s is %d bytes, want at least %d: %w", path, info.Size, minSize, ErrTooSmall)
	}

	return info, nil
}

// Description is the manifest written next to a produced artifact.
type Description struct {
	// Name is the artifact file name.
	Name string `yaml:"name"`
	// Version is the extpack version that produced the artifact.
	Version string `yaml:"version"`
	// Size is the artifact size in bytes.
	Size int64 `yaml:"size"`
	// Checksum is the base64-encoded SHA-512 of the artifact.
	Checksum string `yaml:"sha512"`
	// BuiltAt is the UTC time the description was written.
	BuiltAt time.Time `yaml:"built_at"`
}

// Describe computes the description of an existing artifact.
func Describe(info *Info, now time.Time) (*Description, error) {
	checksum, err := fsutil.Checksum(info.Path)
	if err != nil {
		return nil, err
	}

	return &Description{
		Name:     filepath.Base(info.Path),
		Version:  version.Short(),
		Size:     info.Size,
		Checksum: base64.StdEncoding.EncodeToString(checksum),
		BuiltAt:  now.UTC(),
	}, nil
}

// DescriptionPath returns the description file path for an artifact.
func DescriptionPath(artifactPath string) string {
	return artifactPath + DescriptionSuffix
}

// Save writes the description as YAML to path.
func (d *Description) Save(path string) error {
	contents, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal description: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), contents, fsutil.DefaultFileMode); err != nil {
		return fmt.Errorf("write description: %w", err)
	}

	return nil
}

// LoadDescription reads a description written by Save.
func LoadDescription(path string) (*Description, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}

	var desc Description
	if err = yaml.Unmarshal(contents, &desc); err != nil {
		return nil, fmt.Errorf("unmarshal description: %w", err)
	}

	return &desc, nil
}

// DecodeChecksum parses a base64 SHA-512 checksum as stored in a Description.
func DecodeChecksum(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}

	checksum, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode checksum: %w", err)
	}

	if len(checksum) != fsutil.ChecksumFunction.Size() {
		return nil, fmt.Errorf("decode checksum: got %d bytes, want %d", len(checksum), fsutil.ChecksumFunction.Size())
	}

	return checksum, nil
}
