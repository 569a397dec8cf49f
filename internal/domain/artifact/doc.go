// Package artifact describes the distributable package file: where it is,
// how big it is and its checksum. Existence and minimum size are the only
// invariants the tools check.
package artifact
