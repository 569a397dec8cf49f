package fsutil

import (
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// DefaultDirMode is used for directories created in the output tree.
	DefaultDirMode os.FileMode = 0o755

	// DefaultFileMode is used when the source mode is unknown.
	DefaultFileMode os.FileMode = 0o644

	// ChecksumFunction is used for artifact and copy verification.
	ChecksumFunction crypto.Hash = crypto.SHA512
)

var (
	// ErrNotRegular is returned when a copy source is a directory or device.
	ErrNotRegular = errors.New("not a regular file")
	// errHashUnavailable is returned when the checksum function is not linked in.
	errHashUnavailable = errors.New("hash function unavailable")
)

// Replace atomically writes the contents of r to target with the given mode.
// When checksum is not nil the contents must hash to it or target is left untouched.
// Parent directories are created as needed.
func Replace(target string, r io.Reader, mode os.FileMode, checksum []byte) error {
	target = filepath.Clean(target)

	if err := os.MkdirAll(filepath.Dir(target), DefaultDirMode); err != nil {
		return fmt.Errorf("create parent of %s: %w", target, err)
	}

	// go-update renames the current target aside, so it has to exist.
	var placeholderCreated bool

	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		placeholder, createErr := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, mode)
		if createErr != nil {
			return fmt.Errorf("create %s: %w", target, createErr)
		}

		_ = placeholder.Close()
		placeholderCreated = true
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: mode,
		Checksum:   checksum,
		Hash:       ChecksumFunction,
	}

	if err := goupdate.Apply(r, options); err != nil {
		// An empty target must not pass for a copied file.
		if placeholderCreated {
			_ = os.Remove(target)
		}

		removeLeftovers(target)

		return fmt.Errorf("replace %s: %w", target, err)
	}

	removeLeftovers(target)

	return nil
}

// CopyFile copies the regular file src to dst, preserving its permission bits.
func CopyFile(src, dst string) error {
	src = filepath.Clean(src)

	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", src, ErrNotRegular)
	}

	source, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	mode := info.Mode().Perm()
	if mode == 0 {
		mode = DefaultFileMode
	}

	return Replace(dst, source, mode, nil)
}

// Checksum returns the SHA-512 digest of the file at path.
func Checksum(path string) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// removeLeftovers deletes the backup and partial copies go-update may keep next to target.
func removeLeftovers(target string) {
	dir, name := filepath.Split(target)

	for _, leftover := range []string{
		target + ".old",
		filepath.Join(dir, "."+name+".old"),
		filepath.Join(dir, "."+name+".new"),
	} {
		if _, err := os.Stat(leftover); err == nil {
			_ = os.Remove(leftover)
		}
	}
}
