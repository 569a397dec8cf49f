package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Command is an external executable with its arguments.
type Command struct {
	// Name is the executable. Names containing a path separator are resolved against the working directory.
	Name string `yaml:"name" toml:"name"`
	// Args are passed to the executable verbatim.
	Args []string `yaml:"args,omitempty" toml:"args,omitempty"`
}

// Asset is a prebuilt file copied into the output tree before packaging.
type Asset struct {
	// Source is the prebuilt file, relative to the working directory.
	Source string `yaml:"source" toml:"source"`
	// Destination is where the file is placed inside the output tree.
	Destination string `yaml:"destination" toml:"destination"`
	// Platforms limits the copy to these GOOS values. Empty means every host.
	Platforms []string `yaml:"platforms,omitempty" toml:"platforms,omitempty"`
	// RemoveStale deletes the previous destination before copying.
	RemoveStale bool `yaml:"remove_stale,omitempty" toml:"remove_stale,omitempty"`
}

// AppliesTo reports whether the asset should be copied on the given GOOS.
func (a Asset) AppliesTo(goos string) bool {
	if len(a.Platforms) == 0 {
		return true
	}

	for _, platform := range a.Platforms {
		if strings.EqualFold(strings.TrimSpace(platform), goos) {
			return true
		}
	}

	return false
}

// Fetch holds settings of the artifact fetcher.
type Fetch struct {
	// ArtifactName is the local file name used when the URL has no usable last segment.
	ArtifactName string `yaml:"artifact_name" toml:"artifact_name"`
	// MinSize is the smallest accepted artifact size in bytes.
	MinSize int64 `yaml:"min_size" toml:"min_size"`
	// Timeout bounds the whole HTTP transfer.
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
}

// Config holds every path and command of a packaging run.
type Config struct {
	// WorkDir is the extension source tree all relative paths are resolved against.
	WorkDir string `yaml:"work_dir" toml:"work_dir"`
	// Install installs the project dependencies.
	Install Command `yaml:"install" toml:"install"`
	// Tooling globally installs the build-CLI.
	Tooling Command `yaml:"tooling" toml:"tooling"`
	// Build produces the compiled and localized output.
	Build Command `yaml:"build" toml:"build"`
	// Package invokes the packaging utility. OutputFlag and OutputPath are appended.
	Package Command `yaml:"package" toml:"package"`
	// OutputFlag is the packaging utility flag that precedes the output path.
	OutputFlag string `yaml:"output_flag" toml:"output_flag"`
	// OutputPath is the produced artifact, relative to WorkDir.
	OutputPath string `yaml:"output_path" toml:"output_path"`
	// MinArtifactSize is the smallest package accepted by the post-condition check.
	MinArtifactSize int64 `yaml:"min_artifact_size" toml:"min_artifact_size"`
	// Assets are copied after the build and before packaging.
	Assets []Asset `yaml:"assets" toml:"assets"`
	// Fetch configures extpack-fetch.
	Fetch Fetch `yaml:"fetch" toml:"fetch"`
}

const (
	// DefaultConfigFilename is the configuration looked up when no path is given.
	DefaultConfigFilename = "extpack.yaml"

	// DefaultArtifactName is the package produced by the pipeline and expected by the fetcher.
	DefaultArtifactName = "autolispext.vsix"

	// DefaultMinSize is the smallest valid downloaded artifact in bytes.
	DefaultMinSize int64 = 102400

	// DefaultFetchTimeout bounds a single artifact download.
	DefaultFetchTimeout = 5 * time.Minute

	// DefaultOutputFlag is the vsce flag selecting the output file.
	DefaultOutputFlag = "-o"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errCommandRequired is returned when a pipeline command has no executable.
	errCommandRequired = errors.New("command name must be provided")
	// errOutputRequired is returned when the package output path is empty.
	errOutputRequired = errors.New("output path must be provided")
	// errAssetIncomplete is returned when an asset misses its source or destination.
	errAssetIncomplete = errors.New("asset source and destination must be provided")
	// errNegativeSize is returned for negative size thresholds.
	errNegativeSize = errors.New("size threshold must not be negative")
)

// Default returns the configuration reproducing the historical packaging scripts.
func Default() *Config {
	return &Config{
		WorkDir: ".",
		Install: Command{Name: "npm", Args: []string{"install", "--unsafe-perm"}},
		Tooling: Command{Name: "npm", Args: []string{"install", "-g", "gulp-cli"}},
		Build:   Command{Name: "gulp", Args: []string{"build"}},
		Package: Command{
			Name: filepath.Join("node_modules", ".bin", "vsce") + ScriptExtension(runtime.GOOS),
			Args: []string{"package"},
		},
		OutputFlag: DefaultOutputFlag,
		OutputPath: DefaultArtifactName,
		Assets: []Asset{
			{
				Source:      filepath.Join("utils", "acadProcessFinder", "bin", "Release", "acadProcessFinder.exe"),
				Destination: filepath.Join("out", "process", "acadProcessFinder.exe"),
				Platforms:   []string{"windows"},
				RemoveStale: true,
			},
			{
				Source:      filepath.Join("bin", "ripgrep", "windows", "rg.exe"),
				Destination: filepath.Join("out", "bin", "rg.exe"),
				Platforms:   []string{"windows"},
			},
			{
				Source:      filepath.Join("bin", "ripgrep", "darwin", "rg"),
				Destination: filepath.Join("out", "bin", "rg"),
				Platforms:   []string{"darwin"},
			},
			{
				Source:      filepath.Join("bin", "ripgrep", "linux", "rg"),
				Destination: filepath.Join("out", "bin", "rg"),
				Platforms:   []string{"linux"},
			},
			{
				Source:      filepath.Join("extension", "src", "help", "webHelpAbstraction.json"),
				Destination: filepath.Join("out", "help", "webHelpAbstraction.json"),
				RemoveStale: true,
			},
		},
		Fetch: Fetch{
			ArtifactName: DefaultArtifactName,
			MinSize:      DefaultMinSize,
			Timeout:      DefaultFetchTimeout,
		},
	}
}

// Load reads configuration from path.
// An empty path, or the default filename when it does not exist, yields Default().
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := new(Config)

	if isTOML(path) {
		err = toml.Unmarshal(contents, cfg)
	} else {
		err = yaml.Unmarshal(contents, cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	applyDefaults(cfg)

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills sections absent from a file with Default values.
// Commands are replaced as a whole so default arguments never leak into a configured command.
// An explicitly empty asset list is kept empty.
func applyDefaults(cfg *Config) {
	defaults := Default()

	for _, pair := range []struct{ target, fallback *Command }{
		{&cfg.Install, &defaults.Install},
		{&cfg.Tooling, &defaults.Tooling},
		{&cfg.Build, &defaults.Build},
		{&cfg.Package, &defaults.Package},
	} {
		if strings.TrimSpace(pair.target.Name) == "" && len(pair.target.Args) == 0 {
			*pair.target = *pair.fallback
		}
	}

	if cfg.OutputPath == "" {
		cfg.OutputPath = defaults.OutputPath
	}

	if cfg.Assets == nil {
		cfg.Assets = defaults.Assets
	}
}

// Save writes cfg to path in the format selected by its extension.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)

	if isTOML(path) {
		var builder strings.Builder
		err = toml.NewEncoder(&builder).Encode(cfg)
		data = []byte(builder.String())
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for optional ones.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}

	if cfg.OutputFlag == "" {
		cfg.OutputFlag = DefaultOutputFlag
	}

	if cfg.Fetch.ArtifactName == "" {
		cfg.Fetch.ArtifactName = DefaultArtifactName
	}

	if cfg.Fetch.MinSize == 0 {
		cfg.Fetch.MinSize = DefaultMinSize
	}

	if cfg.Fetch.Timeout <= 0 {
		cfg.Fetch.Timeout = DefaultFetchTimeout
	}

	if cfg.Fetch.MinSize < 0 || cfg.MinArtifactSize < 0 {
		return errNegativeSize
	}

	if cfg.OutputPath == "" {
		return errOutputRequired
	}

	for name, command := range map[string]Command{
		"install": cfg.Install,
		"tooling": cfg.Tooling,
		"build":   cfg.Build,
		"package": cfg.Package,
	} {
		if strings.TrimSpace(command.Name) == "" {
			return fmt.Errorf("%s: %w", name, errCommandRequired)
		}
	}

	for i, asset := range cfg.Assets {
		if asset.Source == "" || asset.Destination == "" {
			return fmt.Errorf("asset #%d: %w", i+1, errAssetIncomplete)
		}
	}

	return nil
}

// Resolve returns p anchored at WorkDir unless it is already absolute.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(c.WorkDir, p)
}

// Executable resolves a command name: bare names are left for PATH lookup,
// names with a path separator are anchored at WorkDir and made absolute.
func (c *Config) Executable(name string) string {
	if !strings.ContainsAny(name, `/\`) {
		return name
	}

	resolved := c.Resolve(name)
	if abs, err := filepath.Abs(resolved); err == nil {
		return abs
	}

	return resolved
}

// ScriptExtension returns the suffix npm uses for executable shims on goos.
func ScriptExtension(goos string) string {
	if strings.EqualFold(goos, "windows") {
		return ".cmd"
	}

	return ""
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
