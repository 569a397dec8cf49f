// Package version exposes build metadata for extpack-pack and extpack-fetch.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. The packaging pipeline stamps Short into the artifact description.
package version
