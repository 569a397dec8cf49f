package fetcher

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/extpack/internal/config"
	"github.com/oshokin/extpack/internal/exitcode"
)

// serve starts a server answering /pkg.vsix with body and any other path with 404.
func serve(t *testing.T, body []byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/pkg.vsix", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func options(t *testing.T, server *httptest.Server, path string) (*Options, string) {
	t.Helper()

	output := filepath.Join(t.TempDir(), "autolispext.vsix")

	return &Options{
		ConfigPath: writeConfig(t),
		Args:       []string{ActionDown, server.URL + path},
		OutputPath: output,
		HTTPClient: server.Client(),
	}, output
}

func writeConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "extpack.yaml")
	require.NoError(t, config.Save(path, config.Default()))

	return path
}

// TestRun_Success downloads a file above the threshold.
func TestRun_Success(t *testing.T) {
	t.Parallel()

	body := make([]byte, config.DefaultMinSize)
	server := serve(t, body)
	opts, output := options(t, server, "/pkg.vsix")

	require.NoError(t, Run(context.Background(), opts))

	info, err := os.Stat(output)
	require.NoError(t, err)
	require.Equal(t, config.DefaultMinSize, info.Size())

	entries, err := os.ReadDir(filepath.Dir(output))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are removed")
}

// TestRun_TooSmall exits with status 3 and leaves the output untouched.
func TestRun_TooSmall(t *testing.T) {
	t.Parallel()

	server := serve(t, []byte("<html>login required</html>"))
	opts, output := options(t, server, "/pkg.vsix")

	err := Run(context.Background(), opts)
	require.Equal(t, exitcode.TooSmall, exitcode.FromError(err))

	_, statErr := os.Stat(output)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestRun_MinSizeOverride honours a lower threshold from the command line.
func TestRun_MinSizeOverride(t *testing.T) {
	t.Parallel()

	server := serve(t, []byte("tiny"))
	opts, _ := options(t, server, "/pkg.vsix")
	opts.MinSize = 4

	require.NoError(t, Run(context.Background(), opts))
}

// TestRun_Checksum accepts a matching checksum and rejects a different one with status 3.
func TestRun_Checksum(t *testing.T) {
	t.Parallel()

	body := []byte("payload")
	sum := sha512.Sum512(body)
	server := serve(t, body)

	opts, _ := options(t, server, "/pkg.vsix")
	opts.MinSize = 1
	opts.Checksum = base64.StdEncoding.EncodeToString(sum[:])
	require.NoError(t, Run(context.Background(), opts))

	other := sha512.Sum512([]byte("other"))
	opts, _ = options(t, server, "/pkg.vsix")
	opts.MinSize = 1
	opts.Checksum = base64.StdEncoding.EncodeToString(other[:])

	err := Run(context.Background(), opts)
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.Equal(t, exitcode.TooSmall, exitcode.FromError(err))

	opts.Checksum = "not base64"
	require.Equal(t, exitcode.Failure, exitcode.FromError(Run(context.Background(), opts)))
}

// TestRun_BadStatus treats an error page as a missing artifact with status 3.
func TestRun_BadStatus(t *testing.T) {
	t.Parallel()

	server := serve(t, nil)
	opts, output := options(t, server, "/missing.vsix")

	err := Run(context.Background(), opts)
	require.ErrorIs(t, err, ErrBadHTTPStatus)
	require.Equal(t, exitcode.TooSmall, exitcode.FromError(err))

	_, statErr := os.Stat(output)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestRun_TruncatedTransfer rejects a body cut short of its announced length with status 3.
func TestRun_TruncatedTransfer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(2*int(config.DefaultMinSize)))
		_, _ = w.Write(make([]byte, 5000))
	}))
	t.Cleanup(server.Close)

	opts, output := options(t, server, "/pkg.vsix")

	err := Run(context.Background(), opts)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, exitcode.TooSmall, exitcode.FromError(err))

	_, statErr := os.Stat(output)
	require.ErrorIs(t, statErr, os.ErrNotExist)

	entries, readErr := os.ReadDir(filepath.Dir(output))
	require.NoError(t, readErr)
	require.Empty(t, entries, "temporary files are removed")
}

// TestRun_Unreachable maps a transport failure to status 3.
func TestRun_Unreachable(t *testing.T) {
	t.Parallel()

	server := serve(t, nil)
	opts, _ := options(t, server, "/pkg.vsix")
	server.Close()

	err := Run(context.Background(), opts)
	require.Error(t, err)
	require.Equal(t, exitcode.TooSmall, exitcode.FromError(err))
}

// TestRun_LocalFailure exits with status 1 when the download cannot be written locally.
func TestRun_LocalFailure(t *testing.T) {
	t.Parallel()

	server := serve(t, make([]byte, config.DefaultMinSize))
	opts, output := options(t, server, "/pkg.vsix")

	// The output directory is occupied by a regular file.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(output), "blocker"), nil, 0o600))
	opts.OutputPath = filepath.Join(filepath.Dir(output), "blocker", "autolispext.vsix")

	err := Run(context.Background(), opts)
	require.Error(t, err)
	require.Equal(t, exitcode.Failure, exitcode.FromError(err))
}

// TestRun_OtherActionIsNoop succeeds without touching the network.
func TestRun_OtherActionIsNoop(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
	}))
	t.Cleanup(server.Close)

	err := Run(context.Background(), &Options{
		Args:       []string{"up", server.URL + "/pkg.vsix"},
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)
	require.Equal(t, exitcode.OK, exitcode.FromError(err))
	require.Zero(t, requests.Load())
}

// TestRun_MissingArguments maps missing arguments before any network access.
func TestRun_MissingArguments(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{})
	require.Equal(t, exitcode.Failure, exitcode.FromError(err))

	err = Run(context.Background(), &Options{Args: []string{ActionDown}})
	require.Equal(t, exitcode.MissingURL, exitcode.FromError(err))
}

// TestRun_OutputFromURL names the download after the last URL segment.
func TestRun_OutputFromURL(t *testing.T) {
	t.Chdir(t.TempDir())

	server := serve(t, []byte("0123456789"))

	err := Run(context.Background(), &Options{
		Args:       []string{ActionDown, server.URL + "/pkg.vsix"},
		MinSize:    10,
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	_, err = os.Stat("pkg.vsix")
	require.NoError(t, err)
}

// TestNewHTTPClient applies timeout and TLS settings.
func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	settings := config.Default().Fetch
	settings.InsecureSkipVerify = true

	client := newHTTPClient(settings)
	require.Equal(t, settings.Timeout, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	require.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}
