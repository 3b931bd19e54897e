package reqfile

import (
	"path/filepath"
	"strings"

	"github.com/reqlock/reqlock/pkg/errors"
)

// Requirement file suffixes. A file moves between states by suffix
// substitution, never by renaming the stem.
const (
	// SuffixIn marks an editable source requirements file.
	SuffixIn = ".in"

	// SuffixLock marks a fully pinned output (one ==version per package).
	SuffixLock = ".lock"

	// SuffixUnlock marks a loosely pinned output derived from .in sources.
	SuffixUnlock = ".unlock"
)

// ValidSuffix reports whether ext is one of the supported requirement
// file suffixes.
func ValidSuffix(ext string) bool {
	switch ext {
	case SuffixIn, SuffixLock, SuffixUnlock:
		return true
	}
	return false
}

// CheckSuffix validates the last suffix of path.
func CheckSuffix(path string) error {
	ext := filepath.Ext(path)
	if !ValidSuffix(ext) {
		return errors.New(errors.ErrCodeInvalidSuffix,
			"unsupported requirements suffix %q in %s (want .in, .lock, or .unlock)", ext, path)
	}
	return nil
}

// ReplaceSuffix substitutes the last suffix of path. Intermediate
// suffixes such as ".shared" are preserved, so "pins.shared.in" becomes
// "pins.shared.unlock".
func ReplaceSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + suffix
	}
	return strings.TrimSuffix(path, ext) + suffix
}

// IsShared reports whether the file name carries the ".shared" marker,
// meaning the file feeds multiple virtual environments.
func IsShared(name string) bool {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return strings.HasSuffix(stem, ".shared")
}

// IsSharedPins reports whether name is a shared pins input file
// (e.g. "pins.shared.in"). Shared pin sets are inputs only; write-back
// must never regenerate them.
func IsSharedPins(name string) bool {
	return strings.HasPrefix(name, "pins") && IsShared(name)
}
