package fetcher

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/oshokin/extpack/internal/exitcode"
)

// ActionDown is the only action the fetcher acts on. Any other action is a no-op.
const ActionDown = "down"

var (
	// ErrMissingArgs is returned when no action is given.
	ErrMissingArgs = errors.New("missing arguments: expected an action")
	// ErrMissingURL is returned when the download URL is absent or unusable.
	ErrMissingURL = errors.New("missing download url")
)

// Request is a parsed fetcher invocation.
type Request struct {
	// Action is the requested action.
	Action string
	// URL is the artifact location. It is nil for actions other than ActionDown.
	URL *url.URL
}

// ParseArgs validates positional arguments: an action, then the URL.
// Errors carry the exit status of the missing-args and missing-url states.
// Actions other than ActionDown are returned without a URL and are not validated further.
func ParseArgs(args []string) (*Request, error) {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return nil, exitcode.New(exitcode.Failure, ErrMissingArgs)
	}

	action := strings.TrimSpace(args[0])
	if action != ActionDown {
		return &Request{Action: action}, nil
	}

	if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
		return nil, exitcode.New(exitcode.MissingURL, ErrMissingURL)
	}

	rawURL := strings.TrimSpace(args[1])

	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, exitcode.New(exitcode.MissingURL, fmt.Errorf("%w: %w", ErrMissingURL, err))
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, exitcode.New(exitcode.MissingURL, fmt.Errorf("%w: unsupported scheme %q", ErrMissingURL, parsed.Scheme))
	}

	return &Request{
		Action: action,
		URL:    parsed,
	}, nil
}

// FileName returns the last URL path segment, or fallback when there is none.
func (r *Request) FileName(fallback string) string {
	name := path.Base(r.URL.Path)
	if name == "" || name == "." || name == "/" {
		return fallback
	}

	return name
}
