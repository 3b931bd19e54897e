// Package toggle switches a venv between its locked and unlocked state
// by pointing one ".lnk" file per requirement stem at the sibling
// ".lock" or ".unlock" artifact. Build tooling reads the ".lnk" path and
// never has to know which state the project is in.
package toggle

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/reqlock/reqlock/pkg/errors"
	"github.com/reqlock/reqlock/pkg/reqfile"
	"github.com/reqlock/reqlock/pkg/venvs"
)

// SuffixLink is the indirection suffix build tooling consumes.
const SuffixLink = ".lnk"

// Lock points every ".lnk" of the venv at its ".lock" artifact.
func Lock(loader *venvs.Loader, venvKey string, logger *log.Logger) ([]string, error) {
	return retarget(loader, venvKey, reqfile.SuffixLock, logger)
}

// Unlock points every ".lnk" of the venv at its ".unlock" artifact.
func Unlock(loader *venvs.Loader, venvKey string, logger *log.Logger) ([]string, error) {
	return retarget(loader, venvKey, reqfile.SuffixUnlock, logger)
}

// retarget repoints the ".lnk" files of one venv. Every target artifact
// must exist before the first link is touched; a half-toggled venv is
// worse than a stale one.
func retarget(loader *venvs.Loader, venvKey string, suffix string, logger *log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.Default()
	}

	reqs, err := loader.Reqs(venvKey)
	if err != nil {
		return nil, err
	}

	for _, req := range reqs {
		target := req.Abspath(suffix)
		if _, err := os.Stat(target); err != nil {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				"cannot toggle %s: %s does not exist; generate it first", req.ReqRel, target)
		}
	}

	var links []string
	for _, req := range reqs {
		target := req.Abspath(suffix)
		link := req.Abspath(SuffixLink)
		if err := relink(link, target); err != nil {
			return links, err
		}
		links = append(links, link)
		logger.Debug("toggled", "link", link, "target", target)
	}
	return links, nil
}

// relink replaces link with a symlink to target, falling back to a copy
// on filesystems without symlink support.
func relink(link, target string) error {
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "remove %s", link)
	}

	if err := os.Symlink(target, link); err == nil {
		return nil
	}

	src, err := os.Open(target)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", target)
	}
	defer src.Close()

	dst, err := os.OpenFile(link, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", link)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "copy %s to %s", target, link)
	}
	return nil
}

// State reports which suffix the venv's ".lnk" files currently resolve
// to: ".lock", ".unlock", or "" when the links are absent or mixed.
func State(loader *venvs.Loader, venvKey string) (string, error) {
	reqs, err := loader.Reqs(venvKey)
	if err != nil {
		return "", err
	}

	state := ""
	for _, req := range reqs {
		link := req.Abspath(SuffixLink)
		resolved, err := os.Readlink(link)
		if err != nil {
			// Absent link, or a copy fallback with no path to read.
			return "", nil
		}
		var got string
		switch resolved {
		case req.Abspath(reqfile.SuffixLock):
			got = reqfile.SuffixLock
		case req.Abspath(reqfile.SuffixUnlock):
			got = reqfile.SuffixUnlock
		default:
			return "", nil
		}
		if state == "" {
			state = got
		} else if state != got {
			return "", nil
		}
	}
	return state, nil
}
