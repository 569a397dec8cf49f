package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/extpack/internal/config"
	"github.com/oshokin/extpack/internal/domain/artifact"
	"github.com/oshokin/extpack/internal/exitcode"
	"github.com/oshokin/extpack/internal/fsutil"
	"github.com/oshokin/extpack/internal/logger"
)

// State is a step of the fetcher state machine.
type State string

// Fetcher states.
const (
	StateAwaitingArgs State = "awaiting-args"
	StateDownloading  State = "downloading"
	StateValidating   State = "validating"
	StateOK           State = "ok"
	StateTooSmall     State = "too-small"
	StateMissingArgs  State = "missing-args"
)

var (
	// ErrBadHTTPStatus is returned for non-200 responses.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// ErrChecksumMismatch is returned when the download does not match the expected checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Options are inputs accepted by the fetcher entry point.
type Options struct {
	// ConfigPath is the optional YAML or TOML configuration.
	ConfigPath string
	// Args are the positional arguments: action and URL.
	Args []string
	// OutputPath overrides the local file name derived from the URL.
	OutputPath string
	// MinSize overrides the configured size threshold when positive.
	MinSize int64
	// Insecure disables TLS certificate verification.
	Insecure bool
	// Checksum is an optional base64 SHA-512 the download must match.
	Checksum string
	// Timeout overrides the configured transfer timeout when positive.
	Timeout time.Duration
	// HTTPClient replaces the client built from the settings.
	HTTPClient *http.Client
}

// fetcher holds the settings of a single download.
type fetcher struct {
	client   *http.Client
	output   string
	minSize  int64
	checksum []byte
	state    State
}

// Run downloads and validates the artifact. The returned error carries the exit status.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "extpack-fetch")

	f := &fetcher{state: StateAwaitingArgs}

	if len(opts.Args) > 0 {
		logger.InfoKV(ctx, "Fetcher invoked", "action", opts.Args[0])
	}

	req, err := ParseArgs(opts.Args)
	if err != nil {
		f.transition(ctx, StateMissingArgs)
		return err
	}

	if req.Action != ActionDown {
		logger.WarnKV(ctx, "Unknown action, nothing to do", "action", req.Action, "expected", ActionDown)
		return nil
	}

	if err = f.configure(opts, req); err != nil {
		f.transition(ctx, StateMissingArgs)
		return exitcode.New(exitcode.Failure, err)
	}

	return f.run(ctx, req)
}

// configure merges the configuration file with command-line overrides.
func (f *fetcher) configure(opts *Options, req *Request) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	settings := cfg.Fetch

	if opts.MinSize > 0 {
		settings.MinSize = opts.MinSize
	}

	if opts.Timeout > 0 {
		settings.Timeout = opts.Timeout
	}

	if opts.Insecure {
		settings.InsecureSkipVerify = true
	}

	f.checksum, err = artifact.DecodeChecksum(opts.Checksum)
	if err != nil {
		return err
	}

	f.minSize = settings.MinSize

	f.output = opts.OutputPath
	if f.output == "" {
		f.output = req.FileName(settings.ArtifactName)
	}

	f.client = opts.HTTPClient
	if f.client == nil {
		f.client = newHTTPClient(settings)
	}

	return nil
}

// run drives the download through its states.
// Every failure of the transfer itself ends in the too-small state: an error page,
// a cut-off body and an unreachable host all leave no usable artifact behind.
func (f *fetcher) run(ctx context.Context, req *Request) error {
	f.transition(ctx, StateDownloading)
	logger.InfoKV(ctx, "Downloading artifact", "url", req.URL.Redacted(), "output", f.output)

	temp, err := f.createTemp()
	if err != nil {
		logger.ErrorKV(ctx, "Could not prepare the download", "error", err)
		return exitcode.New(exitcode.Failure, err)
	}

	tempPath := temp.Name()

	defer func() {
		_ = os.Remove(tempPath)
	}()

	if err = f.download(ctx, req, temp); err != nil {
		f.transition(ctx, StateTooSmall)
		logger.ErrorKV(ctx, "The artifact was not downloaded completely, the download failed", "error", err)

		return exitcode.New(exitcode.TooSmall, err)
	}

	f.transition(ctx, StateValidating)

	if err = f.validate(ctx, tempPath); err != nil {
		f.transition(ctx, StateTooSmall)
		logger.ErrorKV(ctx, "The downloaded artifact is invalid, the download failed", "error", err)

		return exitcode.New(exitcode.TooSmall, err)
	}

	if err = f.install(tempPath); err != nil {
		logger.ErrorKV(ctx, "Could not place the artifact", "path", f.output, "error", err)
		return exitcode.New(exitcode.Failure, err)
	}

	f.transition(ctx, StateOK)
	logger.InfoKV(ctx, "Artifact downloaded", "path", f.output)

	return nil
}

// createTemp creates the temporary download file next to the output.
func (f *fetcher) createTemp() (*os.File, error) {
	dir := filepath.Dir(filepath.Clean(f.output))
	if err := os.MkdirAll(dir, fsutil.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".extpack-fetch-*")
	if err != nil {
		return nil, fmt.Errorf("create temporary file: %w", err)
	}

	return temp, nil
}

// download streams the response body into temp and closes it.
// Non-200 responses fail without keeping the body.
func (f *fetcher) download(ctx context.Context, req *Request, temp *os.File) error {
	defer func() {
		_ = temp.Close()
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL.String(), http.NoBody)
	if err != nil {
		return err
	}

	response, err := f.client.Do(httpReq)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", req.URL.Redacted(), response.Status, ErrBadHTTPStatus)
	}

	if _, err = io.Copy(temp, response.Body); err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	return temp.Close()
}

// validate applies the size threshold and the optional checksum.
func (f *fetcher) validate(ctx context.Context, tempPath string) error {
	info, err := artifact.Verify(tempPath, f.minSize)
	if info != nil {
		logger.InfoKV(ctx, "Download executed", "size", info.Size, "min_size", f.minSize)
	}

	if err != nil {
		return err
	}

	if f.checksum == nil {
		return nil
	}

	sum, err := fsutil.Checksum(tempPath)
	if err != nil {
		return err
	}

	if string(sum) != string(f.checksum) {
		return ErrChecksumMismatch
	}

	return nil
}

// install atomically moves the validated download to the output path.
func (f *fetcher) install(tempPath string) error {
	source, err := os.Open(tempPath)
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	return fsutil.Replace(f.output, source, fsutil.DefaultFileMode, f.checksum)
}

func (f *fetcher) transition(ctx context.Context, next State) {
	logger.DebugKV(ctx, "Fetcher state changed", "from", f.state, "to", next)
	f.state = next
}

// newHTTPClient builds a client honouring the timeout and TLS settings.
func newHTTPClient(settings config.Fetch) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if settings.InsecureSkipVerify {
		//nolint:gosec // Opt-in through --insecure or insecure_skip_verify.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Timeout:   settings.Timeout,
		Transport: transport,
	}
}
