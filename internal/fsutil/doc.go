// Package fsutil places files atomically.
//
// Replace writes new contents next to the target and renames them into
// place with go-update, optionally verifying a SHA-512 checksum first, so a
// failed copy or download never leaves a truncated file behind.
package fsutil
